package cache

import (
	"sync"

	"github.com/desertthunder/ampyr/internal/oauth"
)

// MemoryHandler stores token records in an instance-owned map. Each handler
// is constructed explicitly and passed in; there is no process-wide state.
type MemoryHandler struct {
	mu     sync.RWMutex
	tokens map[string]oauth.Token
}

// NewMemoryHandler creates an empty in-memory token cache.
func NewMemoryHandler() *MemoryHandler {
	return &MemoryHandler{tokens: make(map[string]oauth.Token)}
}

// Find returns the cached record for key, or (nil, nil) when absent.
func (h *MemoryHandler) Find(key string) (*oauth.Token, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	tok, ok := h.tokens[key]
	if !ok {
		return nil, nil
	}
	return &tok, nil
}

// Save stores a copy of tok under key, overwriting any existing record.
func (h *MemoryHandler) Save(key string, tok *oauth.Token) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.tokens[key] = *tok
	return nil
}

// Keys lists every cache key currently stored.
func (h *MemoryHandler) Keys() ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	keys := make([]string, 0, len(h.tokens))
	for key := range h.tokens {
		keys = append(keys, key)
	}
	return keys, nil
}

// Clear removes the record under key. Clearing a missing key is not an error.
func (h *MemoryHandler) Clear(key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.tokens, key)
	return nil
}
