package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/ampyr/internal/oauth"
	"github.com/desertthunder/ampyr/internal/shared"
)

// FileHandler persists one JSON file per cache key inside a directory,
// surviving process restarts. Files are written with 0600 since they hold
// bearer tokens.
type FileHandler struct {
	dir string
}

// NewFileHandler creates a file-backed token cache rooted at dir. The
// directory is created on the first save.
func NewFileHandler(dir string) *FileHandler {
	if dir == "" {
		dir = ".ampyr"
	}
	return &FileHandler{dir: dir}
}

func (h *FileHandler) path(key string) string {
	return filepath.Join(h.dir, key+".json")
}

// Find reads the record for key from disk, returning (nil, nil) when no file
// exists yet. I/O failures propagate unchanged.
func (h *FileHandler) Find(key string) (*oauth.Token, error) {
	data, err := os.ReadFile(h.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCacheBackend, err)
	}

	var tok oauth.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("%w: corrupt cache file %s: %v", shared.ErrCacheBackend, h.path(key), err)
	}

	return &tok, nil
}

// Save writes the record for key to disk, overwriting any previous file.
func (h *FileHandler) Save(key string, tok *oauth.Token) error {
	if err := os.MkdirAll(h.dir, 0700); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCacheBackend, err)
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCacheBackend, err)
	}

	if err := os.WriteFile(h.path(key), data, 0600); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCacheBackend, err)
	}

	return nil
}

// Keys lists the cache keys present in the directory.
func (h *FileHandler) Keys() ([]string, error) {
	entries, err := os.ReadDir(h.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCacheBackend, err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		keys = append(keys, name[:len(name)-len(".json")])
	}

	return keys, nil
}

// Clear removes the file under key. Clearing a missing key is not an error.
func (h *FileHandler) Clear(key string) error {
	if err := os.Remove(h.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", shared.ErrCacheBackend, err)
	}
	return nil
}
