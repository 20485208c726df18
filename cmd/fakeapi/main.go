// cmd/fakeapi/main.go
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

	"clubportal/internal/config"
	"clubportal/internal/fakeapi"
	"clubportal/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("PORTAL_CONFIG"), "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logger.Get().Error("fake club API stopped", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	log := logger.WithService("fakeapi")

	seed := fakeapi.DefaultSeed()
	if cfg.FakeAPI.SeedFile != "" {
		if seed, err = fakeapi.LoadSeed(cfg.FakeAPI.SeedFile); err != nil {
			return err
		}
	}

	ctx := context.Background()
	svc := fakeapi.NewService(fakeapi.NewEventLog())
	if err := seed.Apply(ctx, svc); err != nil {
		return fmt.Errorf("apply seed: %w", err)
	}
	log.Info("seeded clubs", "count", len(seed.Clubs))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.FakeAPI.Port),
		Handler:      fakeapi.NewHandler(svc, log).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("fake club API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
