package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/pavelanni/able/internal/model"
)

// Cache stores translated batches. Get reports false on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]string, bool, error)
	Set(ctx context.Context, key string, translations []string) error
}

// Key identifies a batch in one language.
func Key(lang model.Language, texts []string) string {
	h := sha256.New()
	for _, t := range texts {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	return strings.Join([]string{"able", "tr", string(lang), hex.EncodeToString(h.Sum(nil))}, ":")
}

// MemoryCache is a process-wide map cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string][]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string][]string)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]string(nil), v...), true, nil
}

// Set keeps the first value written for a key.
func (c *MemoryCache) Set(_ context.Context, key string, translations []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		c.items[key] = append([]string(nil), translations...)
	}
	return nil
}

// Len returns the number of cached batches.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
