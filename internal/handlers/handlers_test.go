package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ieraasyl/DispenserClient/internal/backend"
	"github.com/ieraasyl/DispenserClient/internal/middleware"
	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/ieraasyl/DispenserClient/internal/testutil"
	"github.com/ieraasyl/DispenserClient/pkg/config"
	"github.com/ieraasyl/DispenserClient/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(RouterDeps{
		Store:  backend.NewStore(testutil.TestSimulationConfig()),
		Issuer: backend.NewTokenIssuer(testutil.TestJWTConfig()),
	})
}

func signUp(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec := testutil.ServeJSON(t, h, http.MethodPost, "/api/accounts/signup", "", testutil.TestSignUpRequest(email))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	testutil.AssertJSONContentType(t, rec)

	var res TokenResponse
	testutil.ParseJSONResponse(t, rec, &res)
	require.NotEmpty(t, res.Token)
	return res.Token
}

func createProfile(t *testing.T, h http.Handler, token string, tags ...string) int64 {
	t.Helper()
	rec := testutil.ServeJSON(t, h, http.MethodPost, "/api/profiles", token, testutil.TestProfileRequest("Mina", tags...))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.ProfileCreated
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	return created.ID
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var res utils.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestAccounts(t *testing.T) {
	h := newTestRouter(t)

	t.Run("signup returns a token", func(t *testing.T) {
		signUp(t, h, "a@example.com")
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		signUp(t, h, "dup@example.com")
		rec := testutil.ServeJSON(t, h, http.MethodPost, "/api/accounts/signup", "", testutil.TestSignUpRequest("DUP@example.com"))
		testutil.AssertStatusCode(t, rec, http.StatusConflict)
		assert.Equal(t, backend.ErrEmailTaken.Error(), decodeError(t, rec).Message)
	})

	t.Run("mismatched passwords are rejected", func(t *testing.T) {
		rec := testutil.ServeJSON(t, h, http.MethodPost, "/api/accounts/signup", "", models.SignUpRequest{
			Email: "b@example.com", Password: "password123", PasswordConfirm: "password124",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "passwords do not match", decodeError(t, rec).Message)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/accounts/signup", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("login", func(t *testing.T) {
		signUp(t, h, "login@example.com")

		rec := testutil.ServeJSON(t, h, http.MethodPost, "/api/accounts/login", "", models.LoginRequest{
			Email: "login@example.com", Password: "password123",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var res models.AuthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.NotEmpty(t, res.Token)
	})

	t.Run("login with wrong password", func(t *testing.T) {
		rec := testutil.ServeJSON(t, h, http.MethodPost, "/api/accounts/login", "", models.LoginRequest{
			Email: "login@example.com", Password: "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestRouter(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/profiles"},
		{http.MethodPost, "/api/profiles"},
		{http.MethodDelete, "/api/profiles/1"},
		{http.MethodPost, "/api/dispensers"},
		{http.MethodPost, "/api/intakes"},
		{http.MethodGet, "/api/intakes"},
		{http.MethodGet, "/api/intakes/1"},
	} {
		rec := testutil.ServeJSON(t, h, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestProfiles(t *testing.T) {
	h := newTestRouter(t)
	token := signUp(t, h, "p@example.com")
	other := signUp(t, h, "other@example.com")

	id := createProfile(t, h, token, "ALCOHOL", "CAFFEINE", "STRESS")

	t.Run("list returns items and count", func(t *testing.T) {
		rec := testutil.ServeJSON(t, h, http.MethodGet, "/api/profiles", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var list models.ProfileList
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Equal(t, 1, list.Count)
		require.Len(t, list.Items, 1)
		assert.Equal(t, id, list.Items[0].ID)
	})

	t.Run("other accounts see an empty list", func(t *testing.T) {
		rec := testutil.ServeJSON(t, h, http.MethodGet, "/api/profiles", other, nil)
		assert.JSONEq(t, `{"items":[],"count":0}`, rec.Body.String())
	})

	t.Run("too few tags", func(t *testing.T) {
		rec := testutil.ServeJSON(t, h, http.MethodPost, "/api/profiles", token, models.CreateProfileRequest{
			Name: "X", Height: 1, Weight: 1, Gender: models.GenderMale, Tags: []string{"A", "A", "B"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete by another account is not found", func(t *testing.T) {
		rec := testutil.ServeJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/profiles/%d", id), other, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := testutil.ServeJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/profiles/%d", id), token, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = testutil.ServeJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/profiles/%d", id), token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := testutil.ServeJSON(t, h, http.MethodDelete, "/api/profiles/abc", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDispensers(t *testing.T) {
	h := newTestRouter(t)
	token := signUp(t, h, "d@example.com")
	other := signUp(t, h, "d2@example.com")

	rec := testutil.ServeJSON(t, h, http.MethodPost, "/api/dispensers", token, models.RegisterDispenserRequest{DispenserUUID: "ab12-cd"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dispenserUuid":"AB12-CD"}`, rec.Body.String())

	rec = testutil.ServeJSON(t, h, http.MethodPost, "/api/dispensers", other, models.RegisterDispenserRequest{DispenserUUID: "AB12-CD"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = testutil.ServeJSON(t, h, http.MethodPost, "/api/dispensers", token, models.RegisterDispenserRequest{DispenserUUID: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIntakes(t *testing.T) {
	h := newTestRouter(t)
	token := signUp(t, h, "i@example.com")
	profileID := createProfile(t, h, token, "ALCOHOL", "CAFFEINE", "STRESS")
	testutil.ServeJSON(t, h, http.MethodPost, "/api/dispensers", token, models.RegisterDispenserRequest{DispenserUUID: "DISP-1"})

	rec := testutil.ServeJSON(t, h, http.MethodPost, "/api/intakes", token, models.CreateIntakeRequest{ProfileID: profileID, DispenserUUID: "DISP-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.Intake
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, models.IntakeRequested, created.Status)

	t.Run("status reads advance the simulation", func(t *testing.T) {
		path := fmt.Sprintf("/api/intakes/%d", created.IntakeID)
		want := []models.IntakeStatus{models.IntakeProcessing, models.IntakeProcessing, models.IntakeSuccess, models.IntakeSuccess}
		for _, status := range want {
			rec := testutil.ServeJSON(t, h, http.MethodGet, path, token, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var got models.Intake
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, status, got.Status)
		}
	})

	t.Run("history takes a JSON body", func(t *testing.T) {
		rec := testutil.ServeJSON(t, h, http.MethodGet, "/api/intakes", token, models.ListIntakesRequest{ProfileID: profileID, DispenserUUID: "DISP-1"})
		require.Equal(t, http.StatusOK, rec.Code)

		var history models.IntakeHistory
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
		require.Equal(t, 1, history.Count)
		assert.Equal(t, models.IntakeSuccess, history.Items[0].Status)
		require.NotNil(t, history.Items[0].Vitamin)
	})

	t.Run("history without a filter", func(t *testing.T) {
		rec := testutil.ServeJSON(t, h, http.MethodGet, "/api/intakes", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown dispenser", func(t *testing.T) {
		rec := testutil.ServeJSON(t, h, http.MethodPost, "/api/intakes", token, models.CreateIntakeRequest{ProfileID: profileID, DispenserUUID: "NOPE"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown intake", func(t *testing.T) {
		rec := testutil.ServeJSON(t, h, http.MethodGet, "/api/intakes/999", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouterRateLimitsAccounts(t *testing.T) {
	mr := testutil.NewMiniRedis(t)
	redisDB := testutil.NewTestRedisDB(t, mr)

	h := NewRouter(RouterDeps{
		Store:       backend.NewStore(config.SimulationConfig{ReadsUntilDone: 1}),
		Issuer:      backend.NewTokenIssuer(testutil.TestJWTConfig()),
		RateLimiter: middleware.NewRateLimiter(redisDB, 2, time.Minute),
		Redis:       redisDB,
	})

	login := models.LoginRequest{Email: "nobody@example.com", Password: "password123"}
	assert.Equal(t, http.StatusUnauthorized, testutil.ServeJSON(t, h, http.MethodPost, "/api/accounts/login", "", login).Code)
	assert.Equal(t, http.StatusUnauthorized, testutil.ServeJSON(t, h, http.MethodPost, "/api/accounts/login", "", login).Code)
	assert.Equal(t, http.StatusTooManyRequests, testutil.ServeJSON(t, h, http.MethodPost, "/api/accounts/login", "", login).Code)

	assert.Equal(t, http.StatusOK, testutil.ServeJSON(t, h, http.MethodGet, "/ready", "", nil).Code)
}
