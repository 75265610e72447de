// Package pool provides keyed actor pools for projectiles, zones and visual cues.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrMissingKey is returned when an actor is requested without a key.
var ErrMissingKey = errors.New("pool: missing key")

// Provider hands out reusable actors by key.
type Provider[T any] interface {
	// Acquire returns an actor for key. It may block; ctx bounds the wait.
	Acquire(ctx context.Context, key string) (T, error)
	// Release returns item to the pool for key.
	Release(key string, item T)
}

// Factory creates a new actor for key.
type Factory[T any] func(key string) (T, error)

// Growing is a Provider that creates a new actor whenever the free list for a
// key is empty, so acquisition never fails for lack of capacity.
// All methods are safe for concurrent use.
type Growing[T any] struct {
	mu      sync.Mutex
	free    map[string][]T
	created map[string]int
	factory Factory[T]
	logger  *zap.Logger
}

// NewGrowing creates an empty pool backed by factory.
//
// Precondition: factory and logger must be non-nil.
func NewGrowing[T any](factory Factory[T], logger *zap.Logger) *Growing[T] {
	return &Growing[T]{
		free:    make(map[string][]T),
		created: make(map[string]int),
		factory: factory,
		logger:  logger,
	}
}

// Acquire implements Provider.
//
// Postcondition: returns a pooled or newly created actor, or an error when
// ctx is done, key is empty, or the factory fails.
func (g *Growing[T]) Acquire(ctx context.Context, key string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if key == "" {
		return zero, ErrMissingKey
	}

	g.mu.Lock()
	if free := g.free[key]; len(free) > 0 {
		item := free[len(free)-1]
		g.free[key] = free[:len(free)-1]
		g.mu.Unlock()
		return item, nil
	}
	g.mu.Unlock()

	item, err := g.factory(key)
	if err != nil {
		return zero, fmt.Errorf("pool: creating %q: %w", key, err)
	}
	g.mu.Lock()
	g.created[key]++
	total := g.created[key]
	g.mu.Unlock()
	g.logger.Debug("pool grew", zap.String("key", key), zap.Int("created", total))
	return item, nil
}

// Release implements Provider.
func (g *Growing[T]) Release(key string, item T) {
	if key == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.free[key] = append(g.free[key], item)
}

// Prewarm creates n actors for key ahead of use.
func (g *Growing[T]) Prewarm(key string, n int) error {
	for i := 0; i < n; i++ {
		item, err := g.factory(key)
		if err != nil {
			return fmt.Errorf("pool: prewarming %q: %w", key, err)
		}
		g.mu.Lock()
		g.created[key]++
		g.free[key] = append(g.free[key], item)
		g.mu.Unlock()
	}
	return nil
}

// Stats reports the free and total created actor counts for key.
func (g *Growing[T]) Stats(key string) (free, created int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.free[key]), g.created[key]
}
