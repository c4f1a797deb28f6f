// Command server serves the ledgerview HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ArionMiles/ledgerview/internal/server"
	"github.com/ArionMiles/ledgerview/pkg/config"
	"github.com/ArionMiles/ledgerview/pkg/logging"
	"github.com/ArionMiles/ledgerview/pkg/orchestrator"
)

const shutdownTimeout = 30 * time.Second

func main() {
	envFile := flag.String("env", config.DefaultEnvFile, "dotenv file to load")
	configFile := flag.String("config", "", "optional JSON config file")
	flag.Parse()

	if err := run(*envFile, *configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile, configFile string) error {
	cfg, err := config.Load(config.LoadOptions{EnvFile: envFile, JSONFile: configFile})
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.Setup(logging.FromSettings(cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := orchestrator.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.FromService(svc, logging.Component(logger, "http")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting ledgerview server",
			"addr", cfg.HTTPAddr,
			"history_backend", cfg.HistoryBackend,
			"artifact_sink", cfg.ArtifactSink,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving HTTP: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}
