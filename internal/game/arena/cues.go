package arena

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/cardcombat/internal/game/entity"
	"github.com/cory-johannsen/cardcombat/internal/game/pool"
)

// OneShotLifetime is how long a one-shot cue stays attached before it
// returns to the pool.
const OneShotLifetime = 1.0

// Cue is a pooled visual cue actor attached to an entity.
type Cue struct {
	key       string
	target    entity.ID
	looping   bool
	remaining float64
}

// Key returns the cue's pool key.
func (c *Cue) Key() string { return c.key }

// Target returns the id of the entity the cue is attached to.
func (c *Cue) Target() entity.ID { return c.target }

// Looping reports whether the cue stays until stopped.
func (c *Cue) Looping() bool { return c.looping }

// Presenter implements status.Cues over a pool of Cue actors. One-shot cues
// release themselves after OneShotLifetime; looping cues release when their
// stop function runs.
type Presenter struct {
	mu     sync.Mutex
	pool   pool.Provider[*Cue]
	logger *zap.Logger
	active []*Cue
	played int
}

// NewPresenter creates a Presenter backed by p.
//
// Precondition: p and logger must be non-nil.
func NewPresenter(p pool.Provider[*Cue], logger *zap.Logger) *Presenter {
	return &Presenter{pool: p, logger: logger}
}

// Play attaches a one-shot cue to tgt.
func (p *Presenter) Play(key string, tgt entity.Entity) {
	c := p.acquire(key, tgt, false)
	if c == nil {
		return
	}
	c.remaining = OneShotLifetime
}

// Loop attaches a looping cue to tgt and returns the function that stops it.
// Calling stop more than once is harmless.
func (p *Presenter) Loop(key string, tgt entity.Entity) func() {
	c := p.acquire(key, tgt, true)
	if c == nil {
		return func() {}
	}
	var once sync.Once
	return func() {
		once.Do(func() { p.release(c) })
	}
}

// Tick ages one-shot cues and releases the ones that finished.
func (p *Presenter) Tick(dt float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.active[:0]
	for _, c := range p.active {
		if !c.looping {
			c.remaining -= dt
			if c.remaining <= 0 {
				p.pool.Release(c.key, c)
				continue
			}
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(p.active); i++ {
		p.active[i] = nil
	}
	p.active = kept
}

// Active returns the cues currently attached.
func (p *Presenter) Active() []*Cue {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Cue(nil), p.active...)
}

// Played returns how many cues have been attached in total.
func (p *Presenter) Played() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.played
}

func (p *Presenter) acquire(key string, tgt entity.Entity, looping bool) *Cue {
	if key == "" || tgt == nil {
		return nil
	}
	c, err := p.pool.Acquire(context.Background(), key)
	if err != nil {
		p.logger.Warn("cue skipped", zap.String("key", key), zap.Error(err))
		return nil
	}
	*c = Cue{key: key, target: tgt.ID(), looping: looping}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = append(p.active, c)
	p.played++
	return c
}

func (p *Presenter) release(c *Cue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, a := range p.active {
		if a == c {
			p.active = append(p.active[:i], p.active[i+1:]...)
			p.pool.Release(c.key, c)
			return
		}
	}
}
