package handlers

import (
	"errors"
	"net/http"

	"github.com/ieraasyl/DispenserClient/internal/backend"
	"github.com/ieraasyl/DispenserClient/internal/middleware"
	"github.com/ieraasyl/DispenserClient/pkg/utils"
	"github.com/rs/zerolog/log"
)

// respondStoreError maps backend errors to HTTP responses. Every client
// mistake is a 4xx carrying a "message" the client can show.
func respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var input *backend.InputError
	switch {
	case errors.As(err, &input):
		utils.RespondWithError(w, r, http.StatusBadRequest, input.Reason)
	case errors.Is(err, backend.ErrInvalidCredentials):
		utils.RespondWithError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, backend.ErrNotFound):
		utils.RespondWithError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, backend.ErrEmailTaken), errors.Is(err, backend.ErrDispenserClaimed):
		utils.RespondWithError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, backend.ErrUnknownDispenser):
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
	default:
		log.Error().
			Err(err).
			Str("request_id", utils.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Unhandled backend error")
		utils.RespondWithError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// accountID returns the authenticated account. JWTAuth guarantees it on
// protected routes; a missing value is answered with 401.
func accountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.GetAccountID(r.Context())
	if !ok || id == "" {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "not authenticated")
		return "", false
	}
	return id, true
}
