package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arbiterhq/arbiter/internal/policy"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}

	if cfg.Server.Port != 8472 {
		t.Errorf("Port = %d, want 8472", cfg.Server.Port)
	}
	if cfg.Engine.FailMode != "closed" {
		t.Errorf("FailMode = %s, want closed", cfg.Engine.FailMode)
	}
	if cfg.Engine.ConflictResolution != "deny_overrides" {
		t.Errorf("ConflictResolution = %s, want deny_overrides", cfg.Engine.ConflictResolution)
	}
	if cfg.Engine.EvaluationTimeout != 100*time.Millisecond {
		t.Errorf("EvaluationTimeout = %v, want 100ms", cfg.Engine.EvaluationTimeout)
	}
	if !cfg.Bundles.Watch {
		t.Errorf("Bundles.Watch = false, want true")
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arbiter.yaml")
	content := `server:
  port: 9000
engine:
  fail_mode: open
  conflict_resolution: allow_overrides
  evaluation_timeout: 250ms
bundles:
  dir: /etc/arbiter/policies
  watch: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Engine.FailMode != "open" {
		t.Errorf("FailMode = %s, want open", cfg.Engine.FailMode)
	}
	if cfg.Engine.EvaluationTimeout != 250*time.Millisecond {
		t.Errorf("EvaluationTimeout = %v, want 250ms", cfg.Engine.EvaluationTimeout)
	}
	if cfg.Bundles.Dir != "/etc/arbiter/policies" || cfg.Bundles.Watch {
		t.Errorf("Bundles = %+v, want dir override and watch false", cfg.Bundles)
	}
	// Unset keys keep defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %s, want default", cfg.Server.Host)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "port too large", mutate: func(c *Config) { c.Server.Port = 70000 }},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "zero evaluation timeout", mutate: func(c *Config) { c.Engine.EvaluationTimeout = 0 }},
		{name: "negative depth", mutate: func(c *Config) { c.Engine.MaxExpressionDepth = -1 }},
		{name: "unknown fail mode", mutate: func(c *Config) { c.Engine.FailMode = "ajar" }},
		{name: "unknown conflict resolution", mutate: func(c *Config) { c.Engine.ConflictResolution = "coin_flip" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Errorf("Validate() error = nil, want error")
			}
		})
	}
}

func TestEngineOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.ConflictResolution = "allow_overrides"
	cfg.Engine.MaxRulesScanned = 50
	cfg.Engine.EvaluationTimeout = 250 * time.Millisecond

	opts := cfg.EngineOptions()
	if opts.ConflictResolution != policy.AllowOverrides {
		t.Errorf("ConflictResolution = %v, want allow_overrides", opts.ConflictResolution)
	}
	if opts.Limits.MaxRulesScanned != 50 {
		t.Errorf("MaxRulesScanned = %d, want 50", opts.Limits.MaxRulesScanned)
	}
	if opts.Limits.TimeoutMs != 250 {
		t.Errorf("TimeoutMs = %d, want 250", opts.Limits.TimeoutMs)
	}
	if !opts.IncludeObligations {
		t.Errorf("IncludeObligations = false, want default true")
	}
}
