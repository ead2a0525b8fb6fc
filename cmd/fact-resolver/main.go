// Package main is the entry point for the fact resolver server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/axonops/fact-resolver/internal/api"
	"github.com/axonops/fact-resolver/internal/audit"
	"github.com/axonops/fact-resolver/internal/cache"
	"github.com/axonops/fact-resolver/internal/cache/filecache"
	"github.com/axonops/fact-resolver/internal/cache/memory"
	"github.com/axonops/fact-resolver/internal/cache/sqldb"
	"github.com/axonops/fact-resolver/internal/config"
	"github.com/axonops/fact-resolver/internal/demos"
	"github.com/axonops/fact-resolver/internal/engine"
	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/metrics"
	"github.com/axonops/fact-resolver/internal/resolver"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("fact-resolver %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting fact resolver",
		slog.String("version", version),
		slog.String("cache", cfg.Cache.Type),
		slog.String("address", cfg.Address()),
	)

	// Create the cache policy backend
	m := metrics.New()
	policy, policyCloser, err := createCache(cfg, logger)
	if err != nil {
		logger.Error("failed to create cache backend", slog.String("error", err.Error()))
		os.Exit(1)
	}
	instrumented := cache.WithObserver(policy, func(hit bool) {
		m.RecordCacheAccess(cfg.Cache.Type, hit)
	})

	// Watch the file cache directory if requested
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if fc, ok := policy.(*filecache.Policy); ok && cfg.Cache.File.Watch {
		go func() {
			if err := fc.Watch(watchCtx, logger); err != nil && watchCtx.Err() == nil {
				logger.Warn("cache watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	// Create audit logger if enabled
	auditLogger, err := audit.NewLogger(cfg.Audit)
	if err != nil {
		logger.Error("failed to create audit logger", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Assemble the engine registries
	schemas := facts.NewRegistry()
	resolvers := resolver.NewRegistry()
	if cfg.Engine.Demos {
		logger.Info("registering bundled demonstration packs")
		if err := demos.RegisterAll(schemas, resolvers, instrumented); err != nil {
			logger.Error("failed to register demo packs", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	eng := engine.New(schemas, resolvers,
		engine.WithLogger(logger),
		engine.WithMetrics(m),
		engine.WithAudit(auditLogger),
	)

	// Create and start the HTTP server
	serverOpts := []api.ServerOption{api.WithMetrics(m)}
	if cfg.RateLimiting.Enabled {
		serverOpts = append(serverOpts, api.WithRateLimiter(api.NewRateLimiter(cfg.RateLimiting, m)))
	}
	server := api.NewServer(cfg, eng, logger, serverOpts...)

	// Handle shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case sig := <-shutdown:
		logger.Info("shutting down", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
		}

		cancelWatch()

		if auditLogger != nil {
			if err := auditLogger.Close(); err != nil {
				logger.Error("audit close error", slog.String("error", err.Error()))
			}
		}

		if policyCloser != nil {
			if err := policyCloser.Close(); err != nil {
				logger.Error("cache close error", slog.String("error", err.Error()))
			}
		}
	}

	logger.Info("shutdown complete")
}

// newLogger builds the slog logger from configuration, optionally teeing
// into a rotating file.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var out io.Writer = os.Stdout
	if cfg.File.Path != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		out = io.MultiWriter(os.Stdout, rotating)
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

// createCache creates the configured cache policy backend. The returned
// closer is nil for backends without teardown.
func createCache(cfg *config.Config, logger *slog.Logger) (cache.Policy, io.Closer, error) {
	switch cfg.Cache.Type {
	case "none":
		return nil, nil, nil

	case "memory":
		logger.Info("using in-memory resolver cache",
			slog.Int("capacity", cfg.Cache.Memory.Capacity),
		)
		return memory.New(cfg.Cache.Memory.Capacity, time.Duration(cfg.Cache.Memory.TTLSeconds)*time.Second), nil, nil

	case "sql":
		logger.Info("using SQL resolver cache",
			slog.String("driver", cfg.Cache.SQL.Driver),
		)
		policy, err := sqldb.New(sqldb.Config{
			Driver:          sqldb.Driver(cfg.Cache.SQL.Driver),
			DSN:             cfg.Cache.SQL.DSN,
			MaxOpenConns:    cfg.Cache.SQL.MaxOpenConns,
			MaxIdleConns:    cfg.Cache.SQL.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Cache.SQL.ConnMaxLifetime) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return policy, policy, nil

	case "file":
		logger.Info("using file resolver cache",
			slog.String("dir", cfg.Cache.File.Dir),
			slog.Int64("max_total_bytes", cfg.Cache.File.MaxTotalBytes),
		)
		policy, err := filecache.New(cfg.Cache.File.Dir, cfg.Cache.File.Extension, cfg.Cache.File.MaxTotalBytes)
		if err != nil {
			return nil, nil, err
		}
		return policy, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported cache type: %s", cfg.Cache.Type)
	}
}
