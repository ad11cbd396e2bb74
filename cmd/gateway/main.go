// Package main is the entry point for the AIML API gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/infinitehq/aimlgw/internal/audit"
	"github.com/infinitehq/aimlgw/internal/auth"
	"github.com/infinitehq/aimlgw/internal/config"
	"github.com/infinitehq/aimlgw/internal/forward"
	"github.com/infinitehq/aimlgw/internal/observability"
	"github.com/infinitehq/aimlgw/internal/routes"
	"github.com/infinitehq/aimlgw/internal/server"
	"github.com/infinitehq/aimlgw/internal/session"
	"github.com/infinitehq/aimlgw/internal/storage"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, cleanup := initApplication(ctx, cfg, logger)
	defer cleanup()

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server failed", observability.Error(err))
	}

	logger.Info("gateway stopped")
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("GATEWAY_CONFIG_PATH", "configs/gateway.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("GATEWAY_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("GATEWAY_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("aimlgw version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting aimlgw",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	return cfg
}

// initApplication builds every component and returns the assembled
// server plus a cleanup function for resources that need closing.
func initApplication(ctx context.Context, cfg *config.Config, logger observability.Logger) (*server.Server, func()) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// The key set is fetched exactly once; an unreachable identity
	// provider stops startup.
	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	keySet, err := auth.FetchKeySet(fetchCtx, cfg.Auth.JWKSUrl,
		&http.Client{Timeout: 10 * time.Second}, logger)
	if err != nil {
		logger.Fatal("failed to fetch identity provider key set", observability.Error(err))
	}

	verifier := auth.NewVerifier(keySet, cfg.Auth.Issuer,
		auth.WithVerifierLogger(logger),
		auth.WithVerifierMetrics(auth.NewMetricsWithRegisterer("gateway", registry)),
	)

	auditor, err := audit.NewLogger(&cfg.Audit,
		audit.WithLoggerLogger(logger),
		audit.WithLoggerRegisterer(registry),
	)
	if err != nil {
		logger.Fatal("failed to initialize audit logger", observability.Error(err))
	}

	sessions, err := session.NewStore(&cfg.Session, session.WithStoreLogger(logger))
	if err != nil {
		logger.Fatal("failed to initialize session store", observability.Error(err))
	}

	store, err := storage.NewService(ctx, &cfg.Storage, storage.WithServiceLogger(logger))
	if err != nil {
		logger.Fatal("failed to initialize object storage", observability.Error(err))
	}

	forwarder := forward.New(
		forward.WithLogger(logger),
		forward.WithMetrics(forward.NewMetricsWithRegisterer("gateway", registry)),
		forward.WithHTTPClient(&http.Client{Timeout: cfg.Upstream.GetEffectiveTimeout()}),
		forward.WithConnectRetries(cfg.Upstream.GetEffectiveConnectRetries()),
		forward.WithRetryInterval(cfg.Upstream.GetEffectiveRetryInterval()),
	)

	handlers := routes.New(routes.Config{
		BaseURL:       cfg.Upstream.BaseURL,
		Forwarder:     forwarder,
		Sessions:      sessions,
		Storage:       store,
		Auditor:       auditor,
		Logger:        logger,
		MaxFileSizeMB: cfg.Storage.GetEffectiveMaxFileSizeMB(),
	})

	srv := server.New(server.Options{
		Config:   cfg,
		Logger:   logger,
		Verifier: verifier,
		Handlers: handlers,
		Sessions: sessions,
		Auditor:  auditor,
		Registry: registry,
	})

	cleanup := func() {
		if err := sessions.Close(); err != nil {
			logger.Warn("failed to close session store", observability.Error(err))
		}
		if err := auditor.Close(); err != nil {
			logger.Warn("failed to close audit logger", observability.Error(err))
		}
	}

	return srv, cleanup
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
