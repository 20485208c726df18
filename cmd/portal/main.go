// cmd/portal/main.go
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"clubportal/internal/clients"
	"clubportal/internal/config"
	"clubportal/internal/faultinject"
	"clubportal/internal/logger"
	"clubportal/internal/portal"
	"clubportal/internal/telemetry"
)

func main() {
	configPath := flag.String("config", os.Getenv("PORTAL_CONFIG"), "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logger.Get().Error("portal stopped", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	log := logger.WithService("portal")

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("trace flush failed", "error", err)
		}
	}()

	var transport http.RoundTripper = http.DefaultTransport
	if len(cfg.Faults) > 0 {
		faults := faultinject.NewTransport(transport, log)
		for _, f := range cfg.Faults {
			if err := faults.Inject(f); err != nil {
				return err
			}
		}
		log.Warn("fault injection enabled for club API calls", "faults", len(cfg.Faults))
		transport = faults
	}

	clientOpts := []clients.Option{
		clients.WithHTTPClient(&http.Client{
			Timeout:   cfg.APITimeout(),
			Transport: otelhttp.NewTransport(transport),
		}),
		clients.WithLogger(logger.WithService("club-api-client")),
	}
	if cfg.API.BreakerFailures > 0 {
		clientOpts = append(clientOpts, clients.WithCircuitBreaker(cfg.API.BreakerFailures, cfg.BreakerCooldown()))
	}
	client := clients.NewClubClient(cfg.API.BaseURL, clientOpts...)

	csrfKey, err := loadCSRFKey(cfg)
	if err != nil {
		return err
	}

	srv, err := portal.NewServer(client, portal.Options{
		PasscodeLength:    cfg.Join.PasscodeLength,
		JoinTimeout:       cfg.JoinTimeout(),
		AttemptsPerMinute: cfg.Join.AttemptsPerMinute,
		CreateClubURL:     cfg.CreateClubURL,
		SessionTTL:        cfg.SessionTTL(),
		CSRFKey:           csrfKey,
		SecureCookies:     cfg.Session.SecureCookies,
		TrustedOrigins:    cfg.Session.TrustedOrigins,
		RequestsPerSecond: cfg.Session.RequestsPerSecond,
		Burst:             cfg.Session.Burst,
	}, log)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      otelhttp.NewHandler(srv.Handler(), "portal"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.JoinTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serve(httpServer, cfg.ShutdownTimeout(), "portal")
}

// loadCSRFKey uses the configured key, or generates a random one so local
// runs work without setup. Forms stop validating across restarts then.
func loadCSRFKey(cfg *config.Config) ([]byte, error) {
	if cfg.Session.CSRFKey != "" {
		return cfg.CSRFKeyBytes()
	}
	if cfg.Session.SecureCookies {
		return nil, errors.New("session.csrf_key is required when secure cookies are enabled")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate csrf key: %w", err)
	}
	logger.Get().Warn("using a random CSRF key; set CSRF_KEY to keep forms valid across restarts")
	return key, nil
}

// serve runs s until SIGINT or SIGTERM, then drains in-flight requests.
func serve(s *http.Server, drain time.Duration, name string) error {
	log := logger.WithService(name)
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case sig := <-quit:
		log.Info("shutting down server", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
