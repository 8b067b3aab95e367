package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/arbiterhq/arbiter/internal/catalog"
	"github.com/arbiterhq/arbiter/internal/compiler"
	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/metrics"
	"github.com/arbiterhq/arbiter/internal/policy"
	"github.com/arbiterhq/arbiter/internal/scope"
	"github.com/arbiterhq/arbiter/internal/server"
	"github.com/arbiterhq/arbiter/internal/source"
	"github.com/arbiterhq/arbiter/internal/store"
)

const Version = "0.1.0"

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP decision API",
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().String("host", "0.0.0.0", "HTTP server host")
	serverCmd.Flags().Int("port", 8472, "HTTP server port")
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Server.Port = port
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if bundleDir != "" {
		cfg.Bundles.Dir = bundleDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	sink, err := metrics.NewPrometheus(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	engineCfg := &policy.Config{
		FailMode: policy.FailMode(cfg.Engine.FailMode),
		Defaults: cfg.EngineOptions(),
	}

	var engine *policy.Engine
	var reloader *source.Reloader

	if cfg.DatabaseURL != "" {
		// Database-backed: policies, versions and catalog come from SQL.
		database, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		st, err := store.New(database)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		cache, err := compiler.NewCache(st, logger)
		if err != nil {
			return err
		}
		engine, err = policy.NewEngine(st, cache, st, engineCfg, sink, nil, logger)
		if err != nil {
			return fmt.Errorf("failed to create engine: %w", err)
		}
	} else {
		// File-backed: policies and catalog come from YAML bundles.
		registry := scope.NewRegistry()
		cat, err := catalog.NewMemory()
		if err != nil {
			return err
		}
		cache, err := compiler.NewCache(registry, logger)
		if err != nil {
			return err
		}
		reloader, err = source.NewReloader(cfg.Bundles.Dir, registry, cat, cache, logger)
		if err != nil {
			return err
		}
		if err := reloader.Load(); err != nil {
			return fmt.Errorf("failed to load policy bundles: %w", err)
		}
		engine, err = policy.NewEngine(registry, cache, cat, engineCfg, sink, nil, logger)
		if err != nil {
			return fmt.Errorf("failed to create engine: %w", err)
		}
	}

	httpServer, err := server.NewServer(&cfg.Server, engine, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if reloader != nil && cfg.Bundles.Watch {
		go func() {
			if err := reloader.Watch(watchCtx); err != nil && watchCtx.Err() == nil {
				logger.Error("bundle watcher stopped", "error", err)
			}
		}()
	}

	logger.Info("starting arbiter decision api",
		"version", Version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"fail_mode", cfg.Engine.FailMode,
	)
	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		cancelWatch()
		return httpServer.Shutdown(ctx)
	}
}
