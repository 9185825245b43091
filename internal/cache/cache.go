package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Store caches encoded response bodies.
//
// Generation and Bump version a key: readers load under
// VersionedKey(key, gen) and writers Bump, so a load that raced a write
// stores its body under a generation nobody reads anymore.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
	Delete(ctx context.Context, keys ...string)
	Generation(ctx context.Context, key string) (int64, bool)
	Bump(ctx context.Context, key string)
}

func VersionedKey(key string, gen int64) string {
	return key + "@" + strconv.FormatInt(gen, 10)
}

// Memory is a process-local TTL cache.
type Memory struct {
	mu  sync.RWMutex
	ttl time.Duration
	m    map[string]entry
	gens map[string]int64
	now  func() time.Time
}

type entry struct {
	val []byte
	exp time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &Memory{
		ttl:  ttl,
		m:    make(map[string]entry),
		gens: make(map[string]int64),
		now:  time.Now,
	}
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if now.After(e.exp) {
		c.mu.Lock()
		// re-check: a concurrent Set may have refreshed it
		if cur, ok := c.m[key]; ok && now.After(cur.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.val, true
}

func (c *Memory) Set(_ context.Context, key string, val []byte) {
	cp := make([]byte, len(val))
	copy(cp, val)

	now := c.now()
	c.mu.Lock()
	for k, e := range c.m {
		if now.After(e.exp) {
			delete(c.m, k)
		}
	}
	c.m[key] = entry{val: cp, exp: now.Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Memory) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.m, k)
	}
	c.mu.Unlock()
}

func (c *Memory) Generation(_ context.Context, key string) (int64, bool) {
	c.mu.RLock()
	gen := c.gens[key]
	c.mu.RUnlock()
	return gen, true
}

// Bump advances the generation of key and drops every body stored under an
// older one.
func (c *Memory) Bump(_ context.Context, key string) {
	prefix := key + "@"

	c.mu.Lock()
	c.gens[key]++
	for k := range c.m {
		if strings.HasPrefix(k, prefix) {
			delete(c.m, k)
		}
	}
	c.mu.Unlock()
}

func (c *Memory) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry)
	c.mu.Unlock()
}
