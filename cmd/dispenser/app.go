package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ieraasyl/DispenserClient/internal/apiclient"
	"github.com/ieraasyl/DispenserClient/internal/database"
	"github.com/ieraasyl/DispenserClient/internal/intake"
	"github.com/ieraasyl/DispenserClient/internal/services"
	"github.com/ieraasyl/DispenserClient/internal/session"
	"github.com/ieraasyl/DispenserClient/pkg/apperrors"
	"github.com/ieraasyl/DispenserClient/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// app holds the components shared by every command.
type app struct {
	cfg   *config.Config
	store database.KVStore
	creds *session.CredentialCache

	auth       *services.AuthService
	profiles   *services.ProfileService
	roster     *services.Roster
	dispensers *services.DispenserService
	intakes    *services.IntakeService
	engine     *intake.Engine
}

// overrides are the persistent flags that take precedence over the environment.
type overrides struct {
	baseURL      string
	stateBackend string
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

func newApp(ctx context.Context, flags overrides) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.baseURL != "" || flags.stateBackend != "" {
		if flags.baseURL != "" {
			cfg.Client.BaseURL = flags.baseURL
		}
		if flags.stateBackend != "" {
			cfg.State.Backend = flags.stateBackend
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}

	setupLogging(cfg.LogLevel)

	store, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open state backend: %w", err)
	}

	creds := session.New()
	if err := creds.Initialize(ctx, store, cfg.State.Namespace); err != nil {
		store.Close()
		return nil, err
	}

	opts := apiclient.OptionsFromConfig(&cfg.Client)
	opts.OnUnauthorized = func() {
		// The backend no longer accepts the token; drop it so the next
		// command asks for a login instead of failing the same way.
		if err := creds.Clear(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to clear rejected session")
		}
	}

	client, err := apiclient.New(creds, opts)
	if err != nil {
		store.Close()
		return nil, err
	}

	profiles := services.NewProfileService(client)
	intakes := services.NewIntakeService(client)

	return &app{
		cfg:        cfg,
		store:      store,
		creds:      creds,
		auth:       services.NewAuthService(client, creds),
		profiles:   profiles,
		roster:     services.NewRoster(profiles),
		dispensers: services.NewDispenserService(client, store, cfg.State.Namespace),
		intakes:    intakes,
		engine:     intake.NewEngine(intakes, intake.OptionsFromConfig(&cfg.Intake)),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// describe turns a classified error into the line shown to the user.
func describe(err error) string {
	var (
		verr *apperrors.ValidationError
		rerr *apperrors.RegistrationError
		derr *apperrors.DeleteFailedError
	)
	switch {
	case errors.Is(err, apperrors.ErrNoDispenser):
		return "no dispenser registered; run `dispenser register <scan>` first"
	case errors.Is(err, apperrors.ErrIntakeInFlight):
		return "an intake request is already running"
	case apperrors.IsUnauthorized(err):
		return "session expired or invalid; run `dispenser login` again"
	case errors.As(err, &verr):
		if verr.StatusCode == http.StatusConflict {
			return "conflict: " + verr.Message
		}
		if verr.Message != "" {
			return verr.Message
		}
		return verr.Error()
	case errors.As(err, &rerr):
		return rerr.Error()
	case errors.As(err, &derr):
		return derr.Error()
	case apperrors.IsNetwork(err):
		return "cannot reach the backend: " + err.Error()
	default:
		return err.Error()
	}
}
