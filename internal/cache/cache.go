// Package cache implements token cache backends satisfying the
// [oauth.CacheHandler] contract: an in-process map, a JSON file per key, and
// a SQLite table for shared or longer-lived storage.
//
// All backends present the same two-method surface (Find returns (nil, nil)
// on a miss, Save overwrites whatever record exists under the key) and none
// of them lock across the read-modify-write cycle of a flow. Callers that
// need multi-process safety should put a transactional store behind the
// interface.
package cache

import (
	"fmt"
	"path/filepath"

	"github.com/desertthunder/ampyr/internal/oauth"
	"github.com/desertthunder/ampyr/internal/shared"
)

// Store extends the flow-facing handler contract with enumeration and
// removal, used by the CLI cache commands and the TUI.
type Store interface {
	oauth.CacheHandler
	Keys() ([]string, error)
	Clear(key string) error
}

// Backends implement the narrow contract flows persist through.
var (
	_ Store = (*MemoryHandler)(nil)
	_ Store = (*FileHandler)(nil)
	_ Store = (*SQLiteHandler)(nil)
)

// Open builds the backend named by the cache configuration. An unknown
// backend name is a configuration error.
func Open(cfg shared.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryHandler(), nil
	case "file":
		return NewFileHandler(cfg.Path), nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "ampyr.db"
		} else {
			path = filepath.Join(path, "ampyr.db")
		}
		return NewSQLiteHandler(path)
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}
