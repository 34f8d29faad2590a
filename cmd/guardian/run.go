package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"guardian-hq/guardian/pkg/audit"
	"guardian-hq/guardian/pkg/audit/retention"
	auditstorage "guardian-hq/guardian/pkg/audit/storage"
	"guardian-hq/guardian/pkg/config"
	"guardian-hq/guardian/pkg/guard"
	"guardian-hq/guardian/pkg/llm"
	"guardian-hq/guardian/pkg/policy/engine"
	"guardian-hq/guardian/pkg/policy/mapper"
	"guardian-hq/guardian/pkg/policy/registry"
	"guardian-hq/guardian/pkg/policy/rules"
	"guardian-hq/guardian/pkg/repair"
	"guardian-hq/guardian/pkg/server"
	"guardian-hq/guardian/pkg/telemetry/logging"
	"guardian-hq/guardian/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Guardian admin server",
	Long: `Start the Guardian admin server with the specified configuration.

The server exposes policy management, test evaluation, audit inspection,
and metrics endpoints.

Examples:
  # Start with default config
  guardian run

  # Start with custom config
  guardian run --config /etc/guardian/config.yaml

  # Override listen address
  guardian run --listen 0.0.0.0:8080

  # Validate config without starting the server
  guardian run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Guardian v%s\n", Version)
	fmt.Println("✓ Configuration loaded")

	// Metrics
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&metrics.Config{Enabled: true}, nil)
	}

	// Policy registry
	reg, err := buildRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}
	regStats := reg.GetStats()
	fmt.Printf("✓ Policies loaded (%d policies, %d rules)\n", regStats.PolicyCount, regStats.RuleCount)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Policy file watcher
	if cfg.Policy.Watch && cfg.Policy.Path != "" {
		watcher, err := registry.NewWatcher(registry.DefaultWatcherConfig(cfg.Policy.Path), logger)
		if err != nil {
			slog.Warn("failed to start policy watcher", "error", err)
		} else {
			defer watcher.Close()
			go func() {
				if err := watcher.Watch(ctx, reg.Reload); err != nil {
					slog.Warn("policy watcher stopped", "error", err)
				}
			}()
			fmt.Printf("✓ Watching %s for changes\n", cfg.Policy.Path)
		}
	}

	// Evaluation engine
	engineConfig := &engine.Config{
		FailClosed:    *cfg.Engine.FailClosed,
		EvalTimeout:   cfg.Engine.EvalTimeout,
		MaxConcurrent: cfg.Engine.MaxConcurrent,
	}
	eng, err := engine.New(reg, mapper.New(), engineConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	if collector != nil {
		eng.SetMetrics(collector)
	}

	// Language model client and repair service
	var llmClient llm.Client
	if cfg.LLM.BaseURL != "" {
		llmClient, err = llm.NewHTTPClient(&llm.Config{
			BaseURL:    cfg.LLM.BaseURL,
			APIKey:     cfg.LLM.APIKey,
			Model:      cfg.LLM.Model,
			Timeout:    cfg.LLM.Timeout,
			MaxRetries: cfg.LLM.MaxRetries,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create language model client: %w", err)
		}
	}

	repairStrategy, err := repair.ParseStrategy(cfg.Repair.Strategy)
	if err != nil {
		return err
	}
	repairService, err := repair.New(&repair.Config{
		Strategy:   repairStrategy,
		LLMTimeout: cfg.Repair.LLMTimeout,
	}, llmClient, logger)
	if err != nil {
		return fmt.Errorf("failed to create repair service: %w", err)
	}
	if collector != nil {
		repairService.SetMetrics(collector)
	}

	// Tool guard
	g, err := guard.New(eng, &guard.Config{
		Mode:     guard.Mode(cfg.Guard.Mode),
		MaxAudit: cfg.Guard.MaxAudit,
		Policies: cfg.Guard.Policies,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create guard: %w", err)
	}
	if collector != nil {
		g.SetMetrics(collector)
	}

	// Durable audit persistence
	if cfg.Audit.Enabled {
		storage, err := buildAuditStorage(cfg)
		if err != nil {
			return fmt.Errorf("failed to create audit storage: %w", err)
		}
		defer storage.Close()

		recorder := audit.NewRecorder(storage, &audit.RecorderConfig{
			Enabled:      true,
			AsyncBuffer:  cfg.Audit.AsyncBuffer,
			WriteTimeout: cfg.Audit.WriteTimeout,
		})
		defer recorder.Close()
		g.SetSink(recorder)

		if cfg.Audit.Retention.Schedule != "" {
			pruner := retention.NewPruner(storage, &retention.Config{
				RetentionDays: cfg.Audit.Retention.Days,
				PruneSchedule: cfg.Audit.Retention.Schedule,
				MaxRecords:    cfg.Audit.Retention.MaxRecords,
			})
			if err := pruner.Start(ctx); err != nil {
				slog.Warn("failed to start retention scheduler", "error", err)
			} else {
				defer pruner.Stop()
			}
		}

		fmt.Printf("✓ Audit store initialized (%s)\n", cfg.Audit.Backend)
	}

	// Admin server
	var metricsHandler http.Handler
	if collector != nil {
		metricsHandler = collector.Handler()
	}
	srv := server.NewServer(&cfg.Server, eng, g, metricsHandler, cfg.Telemetry.Metrics.Path)
	srv.SetRepair(repairService)

	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.Start(ctx)
}

// loadConfig loads the configuration file, falling back to defaults when
// the default config path does not exist and was not explicitly set.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && !rootCmd.PersistentFlags().Changed("config") {
		return config.Default(), nil
	}
	return nil, err
}

// buildRegistry creates the policy registry from the configured file, or
// the built-in policy set when no file is configured.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*registry.Registry, error) {
	if cfg.Policy.Path == "" {
		return registry.NewBuiltin(), nil
	}

	path := cfg.Policy.Path
	policies, err := rules.LoadFile(path)
	if err != nil {
		return nil, err
	}
	loader := func() ([]*rules.Policy, error) {
		return rules.LoadFile(path)
	}
	return registry.New(policies, loader), nil
}

// buildAuditStorage creates the configured audit storage backend.
func buildAuditStorage(cfg *config.Config) (audit.Storage, error) {
	switch cfg.Audit.Backend {
	case "sqlite":
		return auditstorage.NewSQLiteStorage(&auditstorage.SQLiteConfig{
			Path:   cfg.Audit.SQLite.Path,
			Driver: cfg.Audit.SQLite.Driver,
		})
	case "memory":
		return auditstorage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
	}
}

