// Package config provides configuration management for the Arbiter daemon.
package config

import (
	"fmt"
	"time"

	"github.com/arbiterhq/arbiter/internal/policy"
)

// ServerConfig holds the HTTP decision API settings.
type ServerConfig struct {
	Host            string
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// EngineConfig holds engine-wide evaluation settings.
type EngineConfig struct {
	FailMode           string
	ConflictResolution string
	MaxExpressionDepth int
	MaxRulesScanned    int
	EvaluationTimeout  time.Duration
}

// BundleConfig holds file-backed policy bundle settings.
type BundleConfig struct {
	Dir   string
	Watch bool
}

// Config is the full daemon configuration.
type Config struct {
	Server      ServerConfig
	Engine      EngineConfig
	Bundles     BundleConfig
	DatabaseURL string
	LogLevel    string
	LogFormat   string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8472,
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Engine: EngineConfig{
			FailMode:           string(policy.FailClosed),
			ConflictResolution: string(policy.DenyOverrides),
			MaxExpressionDepth: 10,
			MaxRulesScanned:    1000,
			EvaluationTimeout:  100 * time.Millisecond,
		},
		Bundles: BundleConfig{
			Dir:   "./policies",
			Watch: true,
		},
		DatabaseURL: "",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Validate checks port range, positive budgets and enum membership.
func Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Engine.MaxExpressionDepth <= 0 {
		return fmt.Errorf("max_expression_depth must be positive, got %d", cfg.Engine.MaxExpressionDepth)
	}
	if cfg.Engine.MaxRulesScanned <= 0 {
		return fmt.Errorf("max_rules_scanned must be positive, got %d", cfg.Engine.MaxRulesScanned)
	}
	if cfg.Engine.EvaluationTimeout <= 0 {
		return fmt.Errorf("evaluation_timeout must be positive, got %v", cfg.Engine.EvaluationTimeout)
	}
	switch policy.FailMode(cfg.Engine.FailMode) {
	case policy.FailClosed, policy.FailOpen:
	default:
		return fmt.Errorf("fail_mode must be closed or open, got %q", cfg.Engine.FailMode)
	}
	switch policy.ConflictResolution(cfg.Engine.ConflictResolution) {
	case policy.DenyOverrides, policy.AllowOverrides, policy.PriorityOrder, policy.FirstMatch:
	default:
		return fmt.Errorf("conflict_resolution must be one of deny_overrides, allow_overrides, priority_order, first_match, got %q", cfg.Engine.ConflictResolution)
	}
	return nil
}

// EngineOptions converts the engine section into the engine's default options.
func (c *Config) EngineOptions() policy.Options {
	opts := policy.DefaultOptions()
	opts.ConflictResolution = policy.ConflictResolution(c.Engine.ConflictResolution)
	opts.Limits.MaxExpressionDepth = c.Engine.MaxExpressionDepth
	opts.Limits.MaxRulesScanned = c.Engine.MaxRulesScanned
	opts.Limits.TimeoutMs = c.Engine.EvaluationTimeout.Milliseconds()
	return opts
}
