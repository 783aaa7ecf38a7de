package memory

import (
	"context"
	"sync"
)

// Counter is an in-process IncrBy/Get store used when neither Redis nor
// Postgres is configured.
type Counter struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewCounter() *Counter {
	return &Counter{values: make(map[string]int64)}
}

func (c *Counter) IncrBy(_ context.Context, name string, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] += delta
	return c.values[name], nil
}

func (c *Counter) Get(_ context.Context, name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[name], nil
}
