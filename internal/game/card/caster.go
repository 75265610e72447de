package card

import (
	"context"

	"go.uber.org/zap"

	"github.com/cory-johannsen/cardcombat/internal/game/entity"
	"github.com/cory-johannsen/cardcombat/internal/game/stat"
)

type slot struct {
	card  *Instance
	timer float64
}

// Caster fires an owner's equipped cards whenever their cooldowns elapse.
// The effective cooldown is the card's cooldown divided by the owner's
// attack speed.
//
// It is not safe for concurrent use.
type Caster struct {
	owner    entity.Entity
	slots    []*slot
	pipeline *Pipeline
	logger   *zap.Logger
	fired    int
}

// NewCaster creates a Caster for owner. Every card is ready on the first Tick.
//
// Precondition: owner, pipeline and logger must be non-nil.
func NewCaster(owner entity.Entity, pipeline *Pipeline, logger *zap.Logger, cards ...*Instance) *Caster {
	c := &Caster{owner: owner, pipeline: pipeline, logger: logger}
	for _, card := range cards {
		c.Equip(card)
	}
	return c
}

// Equip adds card to the owner's rotation.
func (c *Caster) Equip(card *Instance) {
	if card == nil || card.Def == nil {
		c.logger.Warn("equip skipped: missing card")
		return
	}
	c.slots = append(c.slots, &slot{card: card})
}

// Owner returns the entity that fires the cards.
func (c *Caster) Owner() entity.Entity { return c.owner }

// Fired returns how many card invocations this Caster has made.
func (c *Caster) Fired() int { return c.fired }

// Tick counts every cooldown down by dt and fires each card whose timer
// elapsed, at most once per Tick.
func (c *Caster) Tick(ctx context.Context, dt float64) error {
	if !entity.IsLive(c.owner) {
		return nil
	}
	for _, s := range c.slots {
		s.timer -= dt
		if s.timer > 0 {
			continue
		}
		if _, err := c.pipeline.Execute(ctx, s.card, c.owner, c.owner.Position()); err != nil {
			return err
		}
		c.fired++
		s.timer = max(0, s.timer+s.card.Def.Cooldown/c.owner.Stat(stat.AttackSpeed))
	}
	return nil
}
