package sim_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/cardcombat/internal/sim"
)

type countdown struct {
	left    atomic.Int64
	elapsed float64
	err     error
}

func newCountdown(n int64) *countdown {
	c := &countdown{}
	c.left.Store(n)
	return c
}

func (c *countdown) Tick(_ context.Context, dt float64) error {
	if c.err != nil {
		return c.err
	}
	c.elapsed += dt
	c.left.Add(-1)
	return nil
}

func (c *countdown) Done() bool { return c.left.Load() <= 0 }

func TestNewLoop_PanicsOnZeroRate(t *testing.T) {
	assert.Panics(t, func() { sim.NewLoop(0, zap.NewNop()) })
}

func TestLoop_RunStopsWhenDone(t *testing.T) {
	enc := newCountdown(3)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frames, err := sim.NewLoop(100, zap.NewNop()).Run(ctx, enc)
	require.NoError(t, err)
	assert.Equal(t, 3, frames)
	assert.Greater(t, enc.elapsed, 0.0)
}

func TestLoop_RunStopsOnCancel(t *testing.T) {
	enc := newCountdown(1 << 30)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	_, err := sim.NewLoop(50, zap.NewNop()).Run(ctx, enc)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoop_RunPropagatesTickError(t *testing.T) {
	enc := newCountdown(5)
	enc.err = errors.New("boom")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frames, err := sim.NewLoop(100, zap.NewNop()).Run(ctx, enc)
	assert.EqualError(t, err, "boom")
	assert.Zero(t, frames)
}

func TestLoop_RunFastUsesFixedDelta(t *testing.T) {
	enc := newCountdown(60)
	frames, err := sim.NewLoop(60, zap.NewNop()).RunFast(context.Background(), enc, 0)
	require.NoError(t, err)
	assert.Equal(t, 60, frames)
	assert.InDelta(t, 1.0, enc.elapsed, 1e-9)
}

func TestLoop_RunFastFrameLimit(t *testing.T) {
	enc := newCountdown(1000)
	frames, err := sim.NewLoop(60, zap.NewNop()).RunFast(context.Background(), enc, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, frames)
	assert.False(t, enc.Done())
}

func TestLoop_RunFastCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	frames, err := sim.NewLoop(60, zap.NewNop()).RunFast(ctx, newCountdown(5), 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, frames)
}

func TestPropertyRunFastFramesMatchEncounter(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.Int64Range(0, 500).Draw(rt, "frames")
		rate := rapid.IntRange(1, 240).Draw(rt, "rate")
		enc := newCountdown(n)
		frames, err := sim.NewLoop(rate, zap.NewNop()).RunFast(context.Background(), enc, 0)
		if err != nil {
			rt.Fatalf("run: %v", err)
		}
		if int64(frames) != n {
			rt.Fatalf("ran %d frames, want %d", frames, n)
		}
	})
}
