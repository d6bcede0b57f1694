package inmem

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Client is a key store whose entries expire after a time to live.
type Client interface {
	Get(ctx context.Context, key string) error
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

type memoryClient struct {
	mtx     sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryClient() Client {
	return &memoryClient{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (c *memoryClient) Get(_ context.Context, key string) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return ErrKeyNotFound
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return ErrKeyNotFound
	}
	return nil
}

func (c *memoryClient) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	c.sweep()
	return nil
}

func (c *memoryClient) Delete(_ context.Context, key string) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	delete(c.entries, key)
	return nil
}

// sweep drops expired entries. Callers hold mtx.
func (c *memoryClient) sweep() {
	now := c.now()
	for k, e := range c.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

var ErrKeyNotFound = errors.New("key not found")
