package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching DefaultConfig
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8472)
	v.SetDefault("server.request_timeout", "5s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("engine.fail_mode", "closed")
	v.SetDefault("engine.conflict_resolution", "deny_overrides")
	v.SetDefault("engine.max_expression_depth", 10)
	v.SetDefault("engine.max_rules_scanned", 1000)
	v.SetDefault("engine.evaluation_timeout", "100ms")
	v.SetDefault("bundles.dir", "./policies")
	v.SetDefault("bundles.watch", true)
	v.SetDefault("database_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	// Bind environment variables with ARB_ prefix
	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			RequestTimeout:  v.GetDuration("server.request_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Engine: EngineConfig{
			FailMode:           v.GetString("engine.fail_mode"),
			ConflictResolution: v.GetString("engine.conflict_resolution"),
			MaxExpressionDepth: v.GetInt("engine.max_expression_depth"),
			MaxRulesScanned:    v.GetInt("engine.max_rules_scanned"),
			EvaluationTimeout:  v.GetDuration("engine.evaluation_timeout"),
		},
		Bundles: BundleConfig{
			Dir:   v.GetString("bundles.dir"),
			Watch: v.GetBool("bundles.watch"),
		},
		DatabaseURL: v.GetString("database_url"),
		LogLevel:    v.GetString("log_level"),
		LogFormat:   v.GetString("log_format"),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
