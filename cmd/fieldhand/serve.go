package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/fieldhand/fieldhand/internal/agent"
	"github.com/fieldhand/fieldhand/internal/config"
	"github.com/fieldhand/fieldhand/internal/gateway"
	"github.com/fieldhand/fieldhand/internal/observability"
	"github.com/fieldhand/fieldhand/internal/progress"
	"github.com/fieldhand/fieldhand/internal/providers"
	"github.com/fieldhand/fieldhand/internal/ratelimit"
	"github.com/fieldhand/fieldhand/internal/respond"
	"github.com/fieldhand/fieldhand/internal/sessions"
	"github.com/fieldhand/fieldhand/internal/tools/farm"
)

const defaultConfigPath = "fieldhand.yaml"

// buildServeCmd creates the "serve" command that starts the HTTP server.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the fieldhand server",
		Long: `Start the fieldhand server.

The server will:
1. Load configuration (fieldhand.yaml by default)
2. Open the session store (SQLite, or in-memory when no path is set)
3. Initialize LLM providers with primary/fallback selection
4. Register the farm tool set
5. Serve chat, progress streaming, sessions, health, and metrics over HTTP

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  fieldhand serve

  # Start with custom config and debug logging
  fieldhand serve --config /etc/fieldhand/production.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath,
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")

	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if debug {
		cfg.Logging.Level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	slog.SetDefault(logger)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	selector, err := buildSelector(cfg, logger)
	if err != nil {
		return err
	}
	if !selector.Configured() {
		return providers.ErrNoProviderConfigured
	}

	registry := agent.NewToolRegistry()
	if err := farm.RegisterAll(registry, farm.NewDemoDataset()); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore())
	executor := agent.NewExecutor(registry, limiter, &agent.ExecutorConfig{
		MaxConcurrency:  cfg.Tools.MaxConcurrency,
		RateLimitMax:    cfg.RateLimit.Max,
		RateLimitWindow: cfg.RateLimit.Window,
	})

	hub := progress.NewHub(cfg.Progress.HeartbeatInterval, logger)

	driver, err := agent.NewDriver(agent.DriverOptions{
		Provider:      selector,
		Registry:      registry,
		Executor:      executor,
		Progress:      hub,
		Sanitizer:     respond.NewSanitizer(),
		Validator:     respond.NewValidator(),
		MaxToolRounds: cfg.Tools.MaxToolRounds,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("build driver: %w", err)
	}

	srv, err := gateway.NewServer(gateway.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Driver:      driver,
		Sessions:    store,
		Hub:         hub,
		System:      cfg.LLM.SystemPrompt,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Metrics:     observability.NewMetrics(),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	if err := srv.Start(); err != nil {
		return err
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsPort > 0 && cfg.Server.MetricsPort != cfg.Server.HTTPPort {
		metricsServer = startMetricsServer(cfg, logger)
	}

	logger.Info("fieldhand started",
		"provider", selector.Name(),
		"addr", srv.Addr(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("shutting down", "reason", "context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return srv.Stop(shutdownCtx)
}

// loadConfig reads the config file, falling back to built-in defaults when
// the default path does not exist. An explicit missing path is an error.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && path == defaultConfigPath {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("config file: %w", err)
	}
	return config.Load(path)
}

func openStore(cfg *config.Config) (sessions.Store, error) {
	if cfg.Database.Path == "" {
		return sessions.NewMemoryStore(), nil
	}
	store, err := sessions.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return store, nil
}

// buildSelector assembles the primary/fallback provider pair from config.
// A provider with no API key is skipped rather than failing startup, so a
// single-key deployment works out of the box.
func buildSelector(cfg *config.Config, logger *slog.Logger) (*providers.Selector, error) {
	primary, err := buildProvider(cfg, cfg.LLM.Primary, logger)
	if err != nil {
		return nil, err
	}
	fallback, err := buildProvider(cfg, cfg.LLM.Fallback, logger)
	if err != nil {
		return nil, err
	}
	return providers.NewSelector(primary, fallback, logger), nil
}

func buildProvider(cfg *config.Config, name string, logger *slog.Logger) (agent.LLMProvider, error) {
	if name == "" {
		return nil, nil
	}
	pc, ok := cfg.LLM.Providers[name]
	if !ok || pc.APIKey == "" {
		return nil, nil
	}

	switch name {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       pc.APIKey,
			DefaultModel: pc.DefaultModel,
			BaseURL:      pc.BaseURL,
			Logger:       logger,
		})
	case "openai":
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       pc.APIKey,
			DefaultModel: pc.DefaultModel,
			BaseURL:      pc.BaseURL,
			Logger:       logger,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

func startMetricsServer(cfg *config.Config, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	logger.Info("metrics server listening", "addr", server.Addr)
	return server
}
