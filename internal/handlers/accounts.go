package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/ieraasyl/DispenserClient/internal/backend"
	"github.com/ieraasyl/DispenserClient/internal/middleware"
	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/ieraasyl/DispenserClient/pkg/utils"
	"github.com/rs/zerolog/log"
)

// AccountHandler serves signup and login. Both return a bearer token that
// protected routes accept in the Authorization header.
type AccountHandler struct {
	store  *backend.Store
	issuer *backend.TokenIssuer
}

// NewAccountHandler creates the account handler.
//
// Example:
//
//	accounts := handlers.NewAccountHandler(store, issuer)
//	r.Post("/api/accounts/signup", accounts.SignUp)
//	r.Post("/api/accounts/login", accounts.Login)
func NewAccountHandler(store *backend.Store, issuer *backend.TokenIssuer) *AccountHandler {
	return &AccountHandler{store: store, issuer: issuer}
}

// TokenResponse is the body returned by signup and login.
//
// JSON example:
//
//	{"token": "eyJhbGciOi...", "expiresAt": "2024-01-21T14:30:00Z"}
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SignUp registers an account and logs it in.
//
// Responses:
//   - 201 Created with TokenResponse
//   - 400 Bad Request for a malformed body, invalid email, short or mismatched password
//   - 409 Conflict when the email is already registered
func (h *AccountHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req models.SignUpRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.store.SignUp(req.Email, req.Password, req.PasswordConfirm)
	if err != nil {
		if errors.Is(err, backend.ErrEmailTaken) {
			middleware.IncrementAuthAttempts("email_taken")
		} else {
			middleware.IncrementAuthAttempts("signup_rejected")
		}
		respondStoreError(w, r, err)
		return
	}

	middleware.IncrementAuthAttempts("signup_success")
	log.Info().
		Str("request_id", utils.GetRequestID(r.Context())).
		Str("account_id", account.ID).
		Msg("Account created")

	h.respondWithToken(w, r, http.StatusCreated, account)
}

// Login exchanges credentials for a bearer token.
//
// Responses:
//   - 200 OK with TokenResponse
//   - 400 Bad Request for a malformed body
//   - 401 Unauthorized for an unknown email or wrong password
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.store.Authenticate(req.Email, req.Password)
	if err != nil {
		middleware.IncrementAuthAttempts("invalid_credentials")
		log.Warn().
			Str("request_id", utils.GetRequestID(r.Context())).
			Msg("Login failed")
		respondStoreError(w, r, err)
		return
	}

	middleware.IncrementAuthAttempts("login_success")
	h.respondWithToken(w, r, http.StatusOK, account)
}

func (h *AccountHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, account *backend.Account) {
	token, expiresAt, err := h.issuer.Issue(account)
	if err != nil {
		log.Error().Err(err).Str("account_id", account.ID).Msg("Failed to issue token")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "failed to issue token")
		return
	}

	utils.RespondWithJSON(w, r, status, TokenResponse{Token: token, ExpiresAt: expiresAt})
}
