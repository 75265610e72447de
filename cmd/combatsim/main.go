// Package main provides the combat simulator binary: it loads the authored
// content, builds an arena from a scenario and runs it to completion.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/cardcombat/internal/config"
	"github.com/cory-johannsen/cardcombat/internal/game/arena"
	"github.com/cory-johannsen/cardcombat/internal/game/card"
	"github.com/cory-johannsen/cardcombat/internal/game/dice"
	"github.com/cory-johannsen/cardcombat/internal/game/effect"
	"github.com/cory-johannsen/cardcombat/internal/game/projectile"
	"github.com/cory-johannsen/cardcombat/internal/game/status"
	"github.com/cory-johannsen/cardcombat/internal/observability"
	"github.com/cory-johannsen/cardcombat/internal/scripting"
	"github.com/cory-johannsen/cardcombat/internal/sim"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	scenarioPath := flag.String("scenario", "", "scenario YAML file; overrides content.scenario")
	realtime := flag.Bool("realtime", false, "pace frames with the wall clock instead of running as fast as possible")
	maxFrames := flag.Int("max-frames", 100000, "stop a fast run after this many frames; 0 = no limit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, zap.String("service", "combatsim"))
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var src dice.Source
	if cfg.Simulation.Seed != 0 {
		src = dice.NewSeededSource(cfg.Simulation.Seed)
	} else {
		src = dice.NewCryptoSource()
	}
	roller := dice.NewLoggedRoller(src, logger)

	contentStart := time.Now()
	statuses, err := status.LoadDirectory(cfg.Content.StatusesDir)
	if err != nil {
		logger.Fatal("loading statuses", zap.Error(err))
	}
	effects, err := effect.LoadDirectory(cfg.Content.EffectsDir, statuses)
	if err != nil {
		logger.Fatal("loading effects", zap.Error(err))
	}
	cards, err := card.LoadDirectory(cfg.Content.CardsDir)
	if err != nil {
		logger.Fatal("loading cards", zap.Error(err))
	}
	if err := cards.CheckModules(ctx, effects); err != nil {
		logger.Fatal("checking cards", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Int("statuses", len(statuses.All())),
		zap.Int("effects", len(effects.Keys())),
		zap.Int("cards", len(cards.All())),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	var scripts *scripting.Manager
	if cfg.Content.ScriptsDir != "" {
		scripts = scripting.NewManager(roller, logger, cfg.Scripting.InstructionLimit)
		if err := scripts.Load(cfg.Content.ScriptsDir); err != nil {
			logger.Fatal("loading scripts", zap.Error(err))
		}
		defer scripts.Close()
	}

	path := cfg.Content.Scenario
	if *scenarioPath != "" {
		path = *scenarioPath
	}
	scn, err := arena.LoadScenario(path)
	if err != nil {
		logger.Fatal("loading scenario", zap.Error(err))
	}

	a, err := arena.New(scn, arena.Options{
		Tuning: projectile.Tuning{
			HitRadius:       cfg.Combat.HitRadius,
			DefaultLifetime: cfg.Combat.DefaultLifetime,
			HomingTurnRate:  cfg.Combat.HomingTurnRate,
		},
		MaxFrameDelta: cfg.Combat.MaxFrameDelta,
		Substeps:      cfg.Simulation.PhysicsSubsteps,
	}, arena.Deps{
		Effects: effects,
		Cards:   cards,
		Scripts: scripts,
		Roller:  roller,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("building arena", zap.Error(err))
	}

	logger.Info("encounter starting",
		zap.String("scenario", scn.Name),
		zap.Int("combatants", len(scn.Combatants)),
		zap.Int("frame_rate", cfg.Simulation.FrameRate),
		zap.Bool("realtime", *realtime),
		zap.Duration("startup", time.Since(start)),
	)

	loop := sim.NewLoop(cfg.Simulation.FrameRate, logger)
	var frames int
	if *realtime {
		frames, err = loop.Run(ctx, a)
	} else {
		frames, err = loop.RunFast(ctx, a, *maxFrames)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("encounter failed", zap.Error(err))
	}

	sum := a.Summary()
	logger.Info("encounter finished",
		zap.Int("frames", frames),
		zap.Float64("elapsed", sum.Elapsed),
		zap.Int("cards_fired", sum.CardsFired),
		zap.Int("projectiles_fired", sum.ProjectilesFired),
		zap.Int("zones_spawned", sum.ZonesSpawned),
		zap.Int("cues_played", sum.CuesPlayed),
		zap.Float64("status_damage", sum.StatusDamage),
		zap.Float64("status_healed", sum.StatusHealed),
		zap.Int("statuses_expired", sum.StatusesExpired),
	)
	for _, c := range sum.Combatants {
		logger.Info("combatant",
			zap.String("id", string(c.ID)),
			zap.String("faction", string(c.Faction)),
			zap.Float64("health", c.Health),
			zap.Float64("max_health", c.MaxHealth),
			zap.Bool("alive", c.Alive),
		)
	}
}
