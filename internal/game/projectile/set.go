package projectile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/cardcombat/internal/game/effect"
	"github.com/cory-johannsen/cardcombat/internal/game/entity"
	"github.com/cory-johannsen/cardcombat/internal/game/pool"
)

// Set holds the projectiles in flight and returns expired ones to the pool.
//
// It is not safe for concurrent use.
type Set struct {
	live   []*Projectile
	pool   pool.Provider[*Projectile]
	logger *zap.Logger

	fired   int
	expired int
}

// NewSet creates an empty Set releasing into p.
//
// Precondition: p and logger must be non-nil.
func NewSet(p pool.Provider[*Projectile], logger *zap.Logger) *Set {
	return &Set{pool: p, logger: logger}
}

// Add puts an initialized projectile in flight. Projectiles added while a
// Step is running are first stepped on the next Step.
func (s *Set) Add(p *Projectile) {
	s.live = append(s.live, p)
	s.fired++
}

// Len returns the number of projectiles in flight.
func (s *Set) Len() int { return len(s.live) }

// Live returns a snapshot of the projectiles in flight.
func (s *Set) Live() []*Projectile { return append([]*Projectile(nil), s.live...) }

// Fired and Released report lifetime totals.
func (s *Set) Fired() int { return s.fired }
func (s *Set) Released() int { return s.expired }

// Step advances every projectile in flight, then releases expired ones.
func (s *Set) Step(ctx context.Context, dt float64, env Env) error {
	n := len(s.live)
	for i := 0; i < n; i++ {
		if err := s.live[i].Step(ctx, dt, env); err != nil {
			return err
		}
	}

	kept := s.live[:0]
	for _, p := range s.live {
		if p.State() == Expired {
			s.pool.Release(p.PoolKey(), p)
			s.expired++
			continue
		}
		kept = append(kept, p)
	}
	clear(s.live[len(kept):])
	s.live = kept
	return nil
}

// Spawner is the effect.Launcher that acquires projectiles from the pool and
// puts them in flight.
type Spawner struct {
	pool   pool.Provider[*Projectile]
	set    *Set
	tuning Tuning
	logger *zap.Logger
}

// NewSpawner creates a Spawner adding to set.
//
// Precondition: all arguments must be non-nil.
func NewSpawner(p pool.Provider[*Projectile], set *Set, tuning Tuning, logger *zap.Logger) *Spawner {
	return &Spawner{pool: p, set: set, tuning: tuning, logger: logger}
}

// Launch acquires one projectile per spec concurrently and waits for all of
// them before initializing any. A caster that died while the acquisitions
// were pending gets its projectiles released unused.
//
// Postcondition: Returns ctx.Err() on cancellation, or a wrapped pool error;
// nothing is in flight from this call when an error is returned.
func (s *Spawner) Launch(ctx context.Context, specs []effect.LaunchSpec) error {
	acquired := make([]*Projectile, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			p, err := s.pool.Acquire(gctx, spec.PoolKey)
			if err != nil {
				return err
			}
			acquired[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.releaseAll(specs, acquired)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, pool.ErrMissingKey) {
			s.logger.Warn("projectile launch skipped: missing pool key")
			return nil
		}
		return fmt.Errorf("acquiring projectiles: %w", err)
	}

	for i, p := range acquired {
		spec := specs[i]
		if !entity.IsLive(spec.Caster) {
			s.logger.Debug("projectile launch dropped: caster gone", zap.String("pool_key", spec.PoolKey))
			s.pool.Release(spec.PoolKey, p)
			continue
		}
		p.Init(spec, s.tuning)
		s.set.Add(p)
	}
	return nil
}

func (s *Spawner) releaseAll(specs []effect.LaunchSpec, acquired []*Projectile) {
	for i, p := range acquired {
		if p != nil {
			s.pool.Release(specs[i].PoolKey, p)
		}
	}
}
