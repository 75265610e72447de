// Package config provides Viper-based configuration loading for the combat simulator.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// SimulationConfig holds the fixed-step loop settings.
type SimulationConfig struct {
	// FrameRate is the number of frames simulated per second.
	FrameRate int `mapstructure:"frame_rate"`
	// PhysicsSubsteps is the number of physics steps run inside each frame.
	PhysicsSubsteps int `mapstructure:"physics_substeps"`
	// Seed selects a deterministic random source when non-zero.
	Seed int64 `mapstructure:"seed"`
}

// FrameDelta returns the duration of one frame in seconds.
//
// Precondition: FrameRate > 0.
func (s SimulationConfig) FrameDelta() float64 {
	return 1.0 / float64(s.FrameRate)
}

// CombatConfig holds projectile and frame tuning shared by every encounter.
type CombatConfig struct {
	// HitRadius is the collision radius between a projectile and an entity.
	HitRadius float64 `mapstructure:"hit_radius"`
	// DefaultLifetime is the projectile lifetime in seconds when a module sets none.
	DefaultLifetime float64 `mapstructure:"default_lifetime"`
	// HomingTurnRate is the tracking steer rate in degrees per second when a module sets none.
	HomingTurnRate float64 `mapstructure:"homing_turn_rate"`
	// MaxFrameDelta caps a single frame's delta in seconds.
	MaxFrameDelta float64 `mapstructure:"max_frame_delta"`
}

// ContentConfig locates the authored descriptor directories.
type ContentConfig struct {
	StatusesDir string `mapstructure:"statuses_dir"`
	EffectsDir  string `mapstructure:"effects_dir"`
	CardsDir    string `mapstructure:"cards_dir"`
	// ScriptsDir holds Lua status hooks; empty disables scripting.
	ScriptsDir string `mapstructure:"scripts_dir"`
	Scenario   string `mapstructure:"scenario"`
}

// ScriptingConfig holds Lua sandbox limits.
type ScriptingConfig struct {
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Combat     CombatConfig     `mapstructure:"combat"`
	Content    ContentConfig    `mapstructure:"content"`
	Scripting  ScriptingConfig  `mapstructure:"scripting"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSimulation(c.Simulation); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateCombat(c.Combat); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", c.Scripting.InstructionLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateSimulation(s SimulationConfig) error {
	var errs []string
	if s.FrameRate < 1 || s.FrameRate > 1000 {
		errs = append(errs, fmt.Sprintf("simulation.frame_rate must be 1-1000, got %d", s.FrameRate))
	}
	if s.PhysicsSubsteps < 1 {
		errs = append(errs, fmt.Sprintf("simulation.physics_substeps must be >= 1, got %d", s.PhysicsSubsteps))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateCombat(c CombatConfig) error {
	var errs []string
	if c.HitRadius <= 0 {
		errs = append(errs, fmt.Sprintf("combat.hit_radius must be > 0, got %v", c.HitRadius))
	}
	if c.DefaultLifetime <= 0 {
		errs = append(errs, fmt.Sprintf("combat.default_lifetime must be > 0, got %v", c.DefaultLifetime))
	}
	if c.HomingTurnRate < 0 {
		errs = append(errs, fmt.Sprintf("combat.homing_turn_rate must be >= 0, got %v", c.HomingTurnRate))
	}
	if c.MaxFrameDelta <= 0 {
		errs = append(errs, fmt.Sprintf("combat.max_frame_delta must be > 0, got %v", c.MaxFrameDelta))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateContent(c ContentConfig) error {
	var errs []string
	if c.StatusesDir == "" {
		errs = append(errs, "content.statuses_dir must not be empty")
	}
	if c.EffectsDir == "" {
		errs = append(errs, "content.effects_dir must not be empty")
	}
	if c.CardsDir == "" {
		errs = append(errs, "content.cards_dir must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with CARDCOMBAT_ prefix
	v.SetEnvPrefix("CARDCOMBAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance populated only with default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("simulation.frame_rate", 60)
	v.SetDefault("simulation.physics_substeps", 2)
	v.SetDefault("simulation.seed", 0)

	v.SetDefault("combat.hit_radius", 0.5)
	v.SetDefault("combat.default_lifetime", 4.0)
	v.SetDefault("combat.homing_turn_rate", 270.0)
	v.SetDefault("combat.max_frame_delta", 0.25)

	v.SetDefault("content.statuses_dir", "content/statuses")
	v.SetDefault("content.effects_dir", "content/effects")
	v.SetDefault("content.cards_dir", "content/cards")
	v.SetDefault("content.scripts_dir", "content/scripts")
	v.SetDefault("content.scenario", "content/scenarios/training.yaml")

	v.SetDefault("scripting.instruction_limit", 100000)
}
