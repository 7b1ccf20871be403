package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ieraasyl/DispenserClient/internal/apiclient"
	"github.com/ieraasyl/DispenserClient/internal/backend"
	"github.com/ieraasyl/DispenserClient/internal/handlers"
	"github.com/ieraasyl/DispenserClient/internal/intake"
	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/ieraasyl/DispenserClient/internal/services"
	"github.com/ieraasyl/DispenserClient/internal/session"
	"github.com/ieraasyl/DispenserClient/internal/testutil"
	"github.com/ieraasyl/DispenserClient/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clientStack struct {
	server       *httptest.Server
	creds        *session.CredentialCache
	auth         *services.AuthService
	profiles     *services.ProfileService
	dispensers   *services.DispenserService
	intakes      *services.IntakeService
	engine       *intake.Engine
	unauthorized atomic.Int32
}

func newClientStack(t *testing.T) *clientStack {
	t.Helper()
	ctx := context.Background()

	server := httptest.NewServer(handlers.NewRouter(handlers.RouterDeps{
		Store:  backend.NewStore(testutil.TestSimulationConfig()),
		Issuer: backend.NewTokenIssuer(testutil.TestJWTConfig()),
	}))
	t.Cleanup(server.Close)

	store := testutil.NewTestSQLiteStore(t, "")
	creds := session.New()
	require.NoError(t, creds.Initialize(ctx, store, "e2e"))

	s := &clientStack{server: server, creds: creds}

	client, err := apiclient.New(creds, apiclient.Options{
		BaseURL:        server.URL,
		ConnectTimeout: 2 * time.Second,
		ReadTimeout:    2 * time.Second,
		WriteTimeout:   2 * time.Second,
		OnUnauthorized: func() {
			s.unauthorized.Add(1)
			_ = creds.Clear(context.Background())
		},
	})
	require.NoError(t, err)

	s.auth = services.NewAuthService(client, creds)
	s.profiles = services.NewProfileService(client)
	s.dispensers = services.NewDispenserService(client, store, "e2e")
	s.intakes = services.NewIntakeService(client)
	s.engine = intake.NewEngine(s.intakes, intake.Options{PollInterval: 5 * time.Millisecond, MaxAttempts: 10})
	return s
}

func collect(t *testing.T, states <-chan intake.State) []intake.State {
	t.Helper()
	var out []intake.State
	timeout := time.After(5 * time.Second)
	for {
		select {
		case st, ok := <-states:
			if !ok {
				return out
			}
			out = append(out, st)
		case <-timeout:
			t.Fatal("intake workflow did not finish")
			return out
		}
	}
}

func TestEndToEndIntakeFlow(t *testing.T) {
	ctx := context.Background()
	s := newClientStack(t)

	_, err := s.auth.SignUp(ctx, "family@example.com", testutil.TestPassword, testutil.TestPassword)
	require.NoError(t, err)
	token, err := s.creds.Get()
	require.NoError(t, err)
	require.NotEmpty(t, token)

	created, err := s.profiles.Create(ctx, testutil.TestProfileRequest("Mina"))
	require.NoError(t, err)

	roster := services.NewRoster(s.profiles)
	require.NoError(t, roster.Refresh(ctx))
	require.Len(t, roster.Items(), 1)
	assert.Equal(t, created.ID, roster.Items()[0].ID)

	uuid, err := s.dispensers.Register(ctx, "https://dispenser.example.com/setup?uuid=ab-12&v=2")
	require.NoError(t, err)
	assert.Equal(t, "AB-12", uuid)

	active, ok, err := s.dispensers.Active(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "AB-12", active)

	states, err := s.engine.Start(ctx, created.ID, active)
	require.NoError(t, err)
	got := collect(t, states)

	require.Len(t, got, 5)
	assert.Equal(t, intake.PhaseRequesting, got[0].Phase)
	assert.Equal(t, intake.PhasePolling, got[1].Phase)
	assert.Equal(t, models.IntakeRequested, got[1].Status)
	assert.Equal(t, models.IntakeProcessing, got[2].Status)
	assert.Equal(t, models.IntakeProcessing, got[3].Status)
	assert.Equal(t, intake.PhaseSucceeded, got[4].Phase)
	assert.Equal(t, models.IntakeSuccess, got[4].Status)
	assert.Equal(t, 3, got[4].Attempt)

	history, err := s.intakes.History(ctx, created.ID, active)
	require.NoError(t, err)
	require.Equal(t, 1, history.Count)
	assert.Equal(t, models.IntakeSuccess, history.Items[0].Status)

	require.NoError(t, roster.Delete(ctx, created.ID))
	assert.Empty(t, roster.Items())

	require.NoError(t, s.auth.Logout(ctx))
	token, err = s.creds.Get()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestEndToEndFailingDispense(t *testing.T) {
	ctx := context.Background()
	s := newClientStack(t)

	_, err := s.auth.SignUp(ctx, "fail@example.com", testutil.TestPassword, testutil.TestPassword)
	require.NoError(t, err)

	created, err := s.profiles.Create(ctx, testutil.TestProfileRequest("Bo", "ALCOHOL", "STRESS", "FAIL_DISPENSE"))
	require.NoError(t, err)
	uuid, err := s.dispensers.Register(ctx, "disp-9")
	require.NoError(t, err)

	states, err := s.engine.Start(ctx, created.ID, uuid)
	require.NoError(t, err)
	got := collect(t, states)

	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, intake.PhaseFailed, last.Phase)
	assert.Equal(t, models.IntakeFail, last.Status)
}

func TestEndToEndErrors(t *testing.T) {
	ctx := context.Background()
	s := newClientStack(t)

	t.Run("wrong password is a validation error and keeps the cache empty", func(t *testing.T) {
		_, err := s.auth.Login(ctx, "nobody@example.com", "wrong-password")

		var verr *apperrors.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, http.StatusUnauthorized, verr.StatusCode)
		assert.Equal(t, backend.ErrInvalidCredentials.Error(), verr.Message)
		assert.Zero(t, s.unauthorized.Load())

		token, err := s.creds.Get()
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("duplicate signup is a conflict", func(t *testing.T) {
		_, err := s.auth.SignUp(ctx, "dup@example.com", testutil.TestPassword, testutil.TestPassword)
		require.NoError(t, err)

		_, err = s.auth.SignUp(ctx, "dup@example.com", testutil.TestPassword, testutil.TestPassword)
		var verr *apperrors.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, http.StatusConflict, verr.StatusCode)
	})

	t.Run("rejected token fires the unauthorized hook", func(t *testing.T) {
		require.NoError(t, s.creds.Set(ctx, "not-a-real-token"))

		_, err := s.profiles.List(ctx)
		var verr *apperrors.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, http.StatusUnauthorized, verr.StatusCode)
		assert.Equal(t, int32(1), s.unauthorized.Load())

		token, err := s.creds.Get()
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("claimed dispenser is a registration error", func(t *testing.T) {
		_, err := s.auth.Login(ctx, "dup@example.com", testutil.TestPassword)
		require.NoError(t, err)
		_, err = s.dispensers.Register(ctx, "shared-1")
		require.NoError(t, err)

		_, err = s.auth.SignUp(ctx, "second@example.com", testutil.TestPassword, testutil.TestPassword)
		require.NoError(t, err)
		_, err = s.dispensers.Register(ctx, "SHARED-1")

		var rerr *apperrors.RegistrationError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, http.StatusConflict, rerr.StatusCode)
		assert.Equal(t, backend.ErrDispenserClaimed.Error(), rerr.Body)
	})

	t.Run("stopped server is a network error", func(t *testing.T) {
		s.server.Close()

		_, err := s.profiles.List(ctx)
		var nerr *apperrors.NetworkError
		assert.True(t, errors.As(err, &nerr), "got %v", err)
	})
}
