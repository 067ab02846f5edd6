// Package config provides Viper-based configuration loading for the arena
// server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// HTTPConfig holds the HTTP API listener settings.
type HTTPConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-request read timeout.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-response write timeout.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownGrace is how long in-flight requests get on shutdown.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// CombatConfig holds combat resolution and settlement tunables.
type CombatConfig struct {
	// MaxSteps is the hard cap on the per-call step budget.
	MaxSteps int `mapstructure:"max_steps"`
	// SpreadPct is the bounded random damage spread, e.g. 0.15 for ±15%.
	SpreadPct float64 `mapstructure:"spread_pct"`
	// BaseXP is the experience awarded per defeated NPC before scaling.
	BaseXP int `mapstructure:"base_xp"`
	// BossXPMultiplier scales the award when the encounter held a boss.
	BossXPMultiplier float64 `mapstructure:"boss_xp_multiplier"`
	// FactionID names the faction whose standing shifts with combat
	// outcomes. Empty disables reputation adjustment.
	FactionID string `mapstructure:"faction_id"`
	// WinReputation and LossReputation are the per-player deltas.
	WinReputation  int `mapstructure:"win_reputation"`
	LossReputation int `mapstructure:"loss_reputation"`
	// IdempotencyTTL is how long a completed advance response is replayed
	// for a repeated idempotency key.
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// ContentConfig holds the static content directories.
type ContentConfig struct {
	// SkillsDir holds per-skill YAML definitions.
	SkillsDir string `mapstructure:"skills_dir"`
	// BossesDir holds per-boss template YAML definitions.
	BossesDir string `mapstructure:"bosses_dir"`
	// ScriptsDir holds boss Lua scripts, one subdirectory per template.
	ScriptsDir string `mapstructure:"scripts_dir"`
	// ScriptInstructionLimit caps Lua opcodes per hook invocation;
	// 0 uses the sandbox default.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// NarrationConfig holds dungeon-master narration settings.
type NarrationConfig struct {
	// Enabled toggles LLM narration of combat events.
	Enabled bool `mapstructure:"enabled"`
	// Model is the model identifier passed to the completion API.
	Model string `mapstructure:"model"`
	// MaxTokens bounds a single narration completion.
	MaxTokens int `mapstructure:"max_tokens"`
}

// Config is the top-level application configuration.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Combat    CombatConfig    `mapstructure:"combat"`
	Content   ContentConfig   `mapstructure:"content"`
	Narration NarrationConfig `mapstructure:"narration"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error
// describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateHTTP(c.HTTP); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateCombat(c.Combat); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateNarration(c.Narration); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHTTP(h HTTPConfig) error {
	var errs []string
	if h.Port < 1 || h.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port must be 1-65535, got %d", h.Port))
	}
	if h.ReadTimeout < 0 {
		errs = append(errs, "http.read_timeout must not be negative")
	}
	if h.WriteTimeout < 0 {
		errs = append(errs, "http.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
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

func validateCombat(c CombatConfig) error {
	var errs []string
	if c.MaxSteps < 1 {
		errs = append(errs, fmt.Sprintf("combat.max_steps must be >= 1, got %d", c.MaxSteps))
	}
	if c.SpreadPct < 0 || c.SpreadPct > 1 {
		errs = append(errs, fmt.Sprintf("combat.spread_pct must be in [0, 1], got %f", c.SpreadPct))
	}
	if c.BaseXP < 0 {
		errs = append(errs, fmt.Sprintf("combat.base_xp must be >= 0, got %d", c.BaseXP))
	}
	if c.BossXPMultiplier < 0 {
		errs = append(errs, fmt.Sprintf("combat.boss_xp_multiplier must be >= 0, got %f", c.BossXPMultiplier))
	}
	if c.IdempotencyTTL < 0 {
		errs = append(errs, "combat.idempotency_ttl must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateNarration(n NarrationConfig) error {
	if !n.Enabled {
		return nil
	}
	var errs []string
	if n.Model == "" {
		errs = append(errs, "narration.model must not be empty when narration is enabled")
	}
	if n.MaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("narration.max_tokens must be >= 1, got %d", n.MaxTokens))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with GRIMHOLT_ prefix
	v.SetEnvPrefix("GRIMHOLT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.shutdown_grace", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "grimholt")
	v.SetDefault("database.password", "grimholt")
	v.SetDefault("database.name", "grimholt")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("combat.max_steps", 10)
	v.SetDefault("combat.spread_pct", 0.15)
	v.SetDefault("combat.base_xp", 50)
	v.SetDefault("combat.boss_xp_multiplier", 3)
	v.SetDefault("combat.faction_id", "")
	v.SetDefault("combat.win_reputation", 10)
	v.SetDefault("combat.loss_reputation", -5)
	v.SetDefault("combat.idempotency_ttl", "5m")

	v.SetDefault("content.skills_dir", "content/skills")
	v.SetDefault("content.bosses_dir", "content/bosses")
	v.SetDefault("content.scripts_dir", "content/scripts/bosses")
	v.SetDefault("content.script_instruction_limit", 0)

	v.SetDefault("narration.enabled", false)
	v.SetDefault("narration.model", "claude-sonnet-4-5")
	v.SetDefault("narration.max_tokens", 512)
}
