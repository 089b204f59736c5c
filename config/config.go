// Package config loads host configuration for the statecore binary.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/nathoo/statecore/engine"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds everything the binary needs to wire an engine.
type Config struct {
	// Ruleset is a Lua ruleset directory or a .json/.yaml ruleset file.
	Ruleset string `yaml:"ruleset" env:"STATECORE_RULESET"`

	Storage Storage `yaml:"storage"`
	Engine  Engine  `yaml:"engine"`
	Log     Log     `yaml:"log"`

	// Plain selects the line console instead of the TUI.
	Plain bool `yaml:"plain" env:"STATECORE_PLAIN"`

	Durability Durability          `yaml:"durability"`
	Ailments   []engine.AilmentDef `yaml:"ailments"`
}

// Storage selects where characters are persisted between runs.
type Storage struct {
	Driver      string `yaml:"driver" env:"STATECORE_STORAGE_DRIVER"`
	SQLitePath  string `yaml:"sqlite_path" env:"STATECORE_SQLITE_PATH"`
	PostgresDSN string `yaml:"postgres_dsn" env:"STATECORE_POSTGRES_DSN"`
}

// Engine holds engine options.
type Engine struct {
	Seed        int64   `yaml:"seed" env:"STATECORE_SEED"` // 0: seed from the clock
	TickSeconds float64 `yaml:"tick_seconds" env:"STATECORE_TICK_SECONDS"`
	Strict      bool    `yaml:"strict" env:"STATECORE_STRICT"`
}

// Log configures the zerolog logger.
type Log struct {
	Level  string `yaml:"level" env:"STATECORE_LOG_LEVEL"`
	Format string `yaml:"format" env:"STATECORE_LOG_FORMAT"` // console or json
}

// Durability mirrors engine.DurabilityOptions for the console's use command.
type Durability struct {
	Cost                 float64  `yaml:"cost"`
	AllowBreak           bool     `yaml:"allow_break"`
	LegacyUsageThreshold int      `yaml:"legacy_usage_threshold"`
	LegacyYieldIncrement float64  `yaml:"legacy_yield_increment"`
	LegacyTitles         []string `yaml:"legacy_titles"`
	ScrapPerBreak        float64  `yaml:"scrap_per_break"`
	InsightPerBreak      float64  `yaml:"insight_per_break"`
}

// Options converts to engine options.
func (d Durability) Options() engine.DurabilityOptions {
	return engine.DurabilityOptions{
		Cost:                 d.Cost,
		AllowBreak:           d.AllowBreak,
		LegacyUsageThreshold: d.LegacyUsageThreshold,
		LegacyYieldIncrement: d.LegacyYieldIncrement,
		LegacyTitles:         d.LegacyTitles,
		ScrapPerBreak:        d.ScrapPerBreak,
		InsightPerBreak:      d.InsightPerBreak,
	}
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Ruleset: "rulesets/survival",
		Storage: Storage{
			Driver:     DriverMemory,
			SQLitePath: "statecore.db",
		},
		Engine: Engine{TickSeconds: engine.DefaultTickSeconds},
		Log:    Log{Level: "warn", Format: "console"},
		Durability: Durability{
			AllowBreak:           true,
			LegacyUsageThreshold: 100,
			LegacyYieldIncrement: 5,
			ScrapPerBreak:        1,
			InsightPerBreak:      1,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// STATECORE_* environment overrides. A missing file is not an error; an
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects unknown drivers and formats.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage driver %q needs sqlite_path", c.Storage.Driver)
		}
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage driver %q needs postgres_dsn", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Engine.TickSeconds <= 0 {
		return fmt.Errorf("tick_seconds must be positive, got %v", c.Engine.TickSeconds)
	}
	return nil
}
