package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/componentry/componentd/internal/infrastructure/config"
	"github.com/componentry/componentd/internal/infrastructure/logging"
	"github.com/componentry/componentd/internal/infrastructure/monitoring"
	"github.com/componentry/componentd/internal/introspect"
	"github.com/componentry/componentd/internal/model"
	"github.com/componentry/componentd/internal/resolver"
	"github.com/componentry/componentd/internal/resolver/fsresolver"
	"github.com/componentry/componentd/internal/resolver/httpresolver"
	"github.com/componentry/componentd/internal/runner"
	"github.com/componentry/componentd/internal/runner/execrunner"
)

const shutdownTimeout = 30 * time.Second

func main() {
	rootURL := flag.String("root", "", "Root component URL (overrides COMPONENTD_ROOT_URL)")
	manifestDir := flag.String("manifests", "", "Manifest directory for file:// URLs")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *rootURL != "" {
		cfg.Root.URL = *rootURL
	}
	if *manifestDir != "" {
		cfg.Root.ManifestDir = *manifestDir
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		logger = logging.NewDefault()
		logger.Warn("falling back to default logger", zap.Error(err))
	}
	defer logger.Sync()

	metrics := monitoring.New()

	resolvers := resolver.NewRegistry()
	resolvers.Register("file", fsresolver.New(cfg.Root.ManifestDir, logging.ForSubsystem(logger, "resolver")))
	httpRes := httpresolver.New(logging.ForSubsystem(logger, "resolver"))
	resolvers.Register("http", httpRes)
	resolvers.Register("https", httpRes)

	hostRunner := execrunner.New(logging.ForSubsystem(logger, "runner"))

	m := model.New(model.Params{
		RootURL:       cfg.Root.URL,
		Resolvers:     resolvers,
		Runners:       map[string]runner.Runner{cfg.Root.DefaultRunner: hostRunner},
		DefaultRunner: cfg.Root.DefaultRunner,
		Logger:        logging.ForSubsystem(logger, "model"),
		Metrics:       metrics,
	})

	logger.Info("starting root",
		zap.String("url", cfg.Root.URL),
		zap.String("manifests", cfg.Root.ManifestDir))
	if err := m.Start(context.Background()); err != nil {
		logger.Fatal("root start failed", zap.Error(err))
	}

	var srv *introspect.Server
	errChan := make(chan error, 1)
	if cfg.Introspect.Enabled {
		srv = introspect.NewServer(introspect.Config{
			Addr: cfg.Introspect.Host + ":" + cfg.Introspect.Port,
			RateLimit: introspect.RateLimitConfig{
				RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
				Burst:             cfg.RateLimit.Burst,
			},
			DisableRateLimit: !cfg.RateLimit.Enabled,
		}, m, metrics, logging.ForSubsystem(logger, "introspect"))
		go func() {
			if err := srv.Run(); err != nil {
				errChan <- err
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.Error("introspection server failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := m.Root().Shutdown(ctx); err != nil {
		logger.Error("root shutdown failed", zap.Error(err))
	}
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("introspection shutdown failed", zap.Error(err))
		}
	}
	logger.Info("stopped")
}
