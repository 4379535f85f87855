package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/ampyr/internal/oauth"
	"github.com/desertthunder/ampyr/internal/shared"
	_ "github.com/mattn/go-sqlite3"
)

const tokensSchema = `
CREATE TABLE IF NOT EXISTS tokens (
	key        TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteHandler stores token records in a single-table SQLite database,
// serialized as JSON. Suited to callers already carrying a local database or
// wanting transactional writes across processes.
type SQLiteHandler struct {
	db *sql.DB
}

// NewSQLiteHandler opens (or creates) the database at path and ensures the
// tokens table exists. The path can be ":memory:" for an in-memory database.
func NewSQLiteHandler(path string) (*SQLiteHandler, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", shared.ErrCacheBackend, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", shared.ErrCacheBackend, err)
	}

	if _, err := db.Exec(tokensSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create tokens table: %v", shared.ErrCacheBackend, err)
	}

	return &SQLiteHandler{db: db}, nil
}

// Close releases the underlying database handle.
func (h *SQLiteHandler) Close() error {
	return h.db.Close()
}

// Find returns the record stored under key, or (nil, nil) when no row exists.
func (h *SQLiteHandler) Find(key string) (*oauth.Token, error) {
	var data string
	err := h.db.QueryRow("SELECT data FROM tokens WHERE key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCacheBackend, err)
	}

	var tok oauth.Token
	if err := json.Unmarshal([]byte(data), &tok); err != nil {
		return nil, fmt.Errorf("%w: corrupt token row for %s: %v", shared.ErrCacheBackend, key, err)
	}

	return &tok, nil
}

// Save upserts the record under key. The previous row, if any, is replaced.
func (h *SQLiteHandler) Save(key string, tok *oauth.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCacheBackend, err)
	}

	_, err = h.db.Exec(
		`INSERT INTO tokens (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCacheBackend, err)
	}

	return nil
}

// Keys lists every cache key currently stored, newest first. Used by the CLI
// cache commands and the TUI.
func (h *SQLiteHandler) Keys() ([]string, error) {
	rows, err := h.db.Query("SELECT key FROM tokens ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCacheBackend, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrCacheBackend, err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// Clear deletes the record under key. Deleting a missing key is not an error.
func (h *SQLiteHandler) Clear(key string) error {
	if _, err := h.db.Exec("DELETE FROM tokens WHERE key = ?", key); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCacheBackend, err)
	}
	return nil
}
