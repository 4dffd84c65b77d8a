package expr

import (
	"strings"
	"sync"
)

type cacheEntry struct {
	prog *Program
	err  error
}

// Cache memoizes compiled programs by (expression, variable names). One cache
// lives as long as the engine instance that owns it.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	misses  int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Compile returns the cached program, compiling on first use. Compile errors
// are cached as well.
func (c *Cache) Compile(src string, vars ...string) (*Program, error) {
	key := src + "\x00" + strings.Join(vars, "\x1f")

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.prog, e.err
	}
	c.misses++
	p, err := Compile(src, vars...)
	c.entries[key] = cacheEntry{prog: p, err: err}
	return p, err
}

// Len is the number of distinct entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Compiles counts how many times the parser actually ran.
func (c *Cache) Compiles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.misses
}
