// Package main is the entry point for the delivery agent.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sapcc/f5agent/internal/adminserver"
	"github.com/sapcc/f5agent/internal/as3client"
	"github.com/sapcc/f5agent/internal/config"
	"github.com/sapcc/f5agent/internal/credentials"
	"github.com/sapcc/f5agent/internal/observability"
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

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  "f5agent",
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracing", observability.Error(err))
	}

	clients := buildClients(cfg, logger)

	run(flags.configPath, cfg, clients, tracer, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("F5AGENT_CONFIG_PATH", "configs/f5agent.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("F5AGENT_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("F5AGENT_LOG_FORMAT", "json"),
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
	fmt.Printf("f5agent version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
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

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.AgentConfig {
	logger.Info("starting f5agent",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	return cfg
}

// buildClients constructs one delivery client per configured device.
func buildClients(cfg *config.AgentConfig, logger observability.Logger) []*as3client.Client {
	var vaultSource *credentials.VaultSource
	if cfg.Vault != nil && cfg.Vault.Enabled {
		source, err := credentials.NewVaultSource(cfg.Vault, logger)
		if err != nil {
			logger.Fatal("failed to initialize vault credential source", observability.Error(err))
		}
		vaultSource = source
	}

	clients := make([]*as3client.Client, 0, len(cfg.Agent.DeviceURLs))
	for _, raw := range cfg.Agent.DeviceURLs {
		client, err := buildClient(raw, cfg, vaultSource, logger)
		if err != nil {
			logger.Fatal("failed to build delivery client",
				observability.String("device", raw),
				observability.Error(err),
			)
		}
		clients = append(clients, client)
	}
	return clients
}

// buildClient constructs the delivery client for one device URL.
func buildClient(rawURL string, cfg *config.AgentConfig, vaultSource *credentials.VaultSource, logger observability.Logger) (*as3client.Client, error) {
	deviceURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	creds, err := buildCredentials(deviceURL, cfg, vaultSource, logger)
	if err != nil {
		return nil, err
	}

	opts := []as3client.Option{
		as3client.WithLogger(logger),
		as3client.WithPollInterval(cfg.Agent.GetTaskPollInterval()),
		as3client.WithAsyncTimeout(cfg.Agent.GetAsyncTaskTimeout()),
	}
	if cfg.Agent.Async {
		opts = append(opts, as3client.WithAsync())
	}
	if cfg.Agent.Debug {
		opts = append(opts, as3client.WithDebugLogging())
	}
	if cfg.Agent.ExternalProcessorURL != "" {
		processorURL, err := url.Parse(cfg.Agent.ExternalProcessorURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, as3client.WithExternalProcessor(processorURL))
	}
	if cb := cfg.Agent.CircuitBreaker; cb != nil && cb.Enabled {
		threshold := uint32(5)
		if cb.Threshold > 0 {
			threshold = uint32(cb.Threshold)
		}
		timeout := 30 * time.Second
		if cb.Timeout > 0 {
			timeout = cb.Timeout.Duration()
		}
		opts = append(opts, as3client.WithCircuitBreaker(threshold, timeout))
	}

	target := as3client.Target{
		URL:       deviceURL,
		VerifyTLS: cfg.Agent.VerifyTLS,
	}
	return as3client.New(target, creds, opts...)
}

// buildCredentials resolves the device principal and wraps it in the
// configured credential mechanism.
func buildCredentials(deviceURL *url.URL, cfg *config.AgentConfig, vaultSource *credentials.VaultSource, logger observability.Logger) (credentials.Provider, error) {
	username := deviceURL.User.Username()
	password, _ := deviceURL.User.Password()

	if vaultSource != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		vaultUser, vaultPass, err := vaultSource.Lookup(ctx, deviceURL.Hostname())
		if err != nil {
			return nil, err
		}
		username, password = vaultUser, vaultPass
	}

	if cfg.Agent.GetTokenAuth() {
		return credentials.NewTokenProvider(deviceURL, username, password,
			credentials.WithTokenLogger(logger))
	}
	return credentials.NewBasicProvider(username, password,
		credentials.WithBasicLogger(logger))
}

// run starts the admin server and config watcher and blocks until a
// shutdown signal arrives.
func run(configPath string, cfg *config.AgentConfig, clients []*as3client.Client, tracer *observability.Tracer, logger observability.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	admin := adminserver.New(cfg.Agent.GetMetricsListenAddress(),
		adminserver.WithLogger(logger),
		adminserver.WithReadyProbe(func(ctx context.Context) error {
			for _, client := range clients {
				if _, err := client.Info(ctx); err != nil {
					return err
				}
			}
			return nil
		}),
	)

	go func() {
		if err := admin.Start(); err != nil {
			logger.Error("admin server failed", observability.Error(err))
		}
	}()

	watcher, err := config.NewWatcher(configPath, func(_ *config.AgentConfig) {
		logger.Info("configuration file reloaded, running clients keep their startup settings")
	}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Warn("config watcher unavailable", observability.Error(err))
	} else if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher failed to start", observability.Error(err))
		watcher = nil
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("shutting down", observability.String("signal", sig.String()))

	if watcher != nil {
		_ = watcher.Stop()
	}
	if err := admin.Shutdown(ctx); err != nil {
		logger.Error("admin server shutdown failed", observability.Error(err))
	}
	for _, client := range clients {
		if err := client.Close(); err != nil {
			logger.Error("client close failed",
				observability.String("device", client.Hostname()),
				observability.Error(err),
			)
		}
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		logger.Error("tracer shutdown failed", observability.Error(err))
	}
}
