// Command devserver runs the reference backend: an in-memory implementation
// of the dispenser API with a simulated device, for local development and
// manual testing of the client.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ieraasyl/DispenserClient/internal/backend"
	"github.com/ieraasyl/DispenserClient/internal/database"
	"github.com/ieraasyl/DispenserClient/internal/handlers"
	"github.com/ieraasyl/DispenserClient/internal/middleware"
	"github.com/ieraasyl/DispenserClient/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownGrace = 30 * time.Second

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("devserver stopped")
	}
}

func run() error {
	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := handlers.RouterDeps{
		Store:          backend.NewStore(cfg.Simulation),
		Issuer:         backend.NewTokenIssuer(&cfg.JWT),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}

	if cfg.Redis == nil {
		log.Warn().Msg("REDIS_HOST not set, account endpoints are not rate limited")
	} else {
		redisDB, err := database.NewRedisDB(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisDB.Close()

		deps.Redis = redisDB
		deps.RateLimiter = middleware.NewRateLimiter(redisDB, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowDuration)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handlers.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("env", cfg.Environment).
			Str("addr", server.Addr).
			Int("reads_until_done", cfg.Simulation.ReadsUntilDone).
			Msg("Dispenser devserver listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
