// Package sim drives an encounter frame by frame, either paced by a wall
// clock ticker or back to back with a fixed delta.
package sim

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Encounter is advanced one frame at a time.
type Encounter interface {
	Tick(ctx context.Context, dt float64) error
	Done() bool
}

// Loop runs an Encounter at a fixed frame rate.
//
// Invariant: Tick is invoked at most once per frame interval and never concurrently.
type Loop struct {
	interval time.Duration
	dt       float64
	logger   *zap.Logger
}

// NewLoop returns a loop that ticks frameRate times per second.
//
// Precondition: frameRate must be > 0; logger must be non-nil.
func NewLoop(frameRate int, logger *zap.Logger) *Loop {
	if frameRate <= 0 {
		panic("sim.NewLoop: frameRate must be > 0")
	}
	return &Loop{
		interval: time.Second / time.Duration(frameRate),
		dt:       1.0 / float64(frameRate),
		logger:   logger,
	}
}

// Run ticks enc on a wall clock ticker, passing the measured time between
// ticks, until enc is done or ctx is cancelled.
//
// Postcondition: Returns the number of frames run, and ctx.Err() if ctx ended
// first or the first error Tick returned.
func (l *Loop) Run(ctx context.Context, enc Encounter) (int, error) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	last := time.Now()
	frames := 0
	for !enc.Done() {
		select {
		case <-ctx.Done():
			l.logger.Debug("simulation interrupted", zap.Int("frames", frames))
			return frames, ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if err := enc.Tick(ctx, dt); err != nil {
				return frames, err
			}
			frames++
		}
	}
	return frames, nil
}

// RunFast ticks enc back to back with the fixed frame delta until enc is
// done, maxFrames frames ran, or ctx is cancelled. maxFrames <= 0 means no limit.
func (l *Loop) RunFast(ctx context.Context, enc Encounter, maxFrames int) (int, error) {
	frames := 0
	for !enc.Done() {
		if maxFrames > 0 && frames >= maxFrames {
			l.logger.Warn("simulation frame limit reached", zap.Int("frames", frames))
			break
		}
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		if err := enc.Tick(ctx, l.dt); err != nil {
			return frames, err
		}
		frames++
	}
	return frames, nil
}
