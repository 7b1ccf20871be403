package handlers

import (
	"net/http"

	"github.com/ieraasyl/DispenserClient/internal/backend"
	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/ieraasyl/DispenserClient/pkg/utils"
	"github.com/rs/zerolog/log"
)

// DispenserHandler binds scanned dispensers to accounts.
type DispenserHandler struct {
	store *backend.Store
}

// NewDispenserHandler creates the dispenser handler.
func NewDispenserHandler(store *backend.Store) *DispenserHandler {
	return &DispenserHandler{store: store}
}

// Register binds the dispenser to the caller and echoes the canonical uuid.
// Answers 409 when another account already owns the device.
func (h *DispenserHandler) Register(w http.ResponseWriter, r *http.Request) {
	owner, ok := accountID(w, r)
	if !ok {
		return
	}

	var req models.RegisterDispenserRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	canonical, err := h.store.RegisterDispenser(owner, req.DispenserUUID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	log.Info().
		Str("request_id", utils.GetRequestID(r.Context())).
		Str("account_id", owner).
		Str("dispenser_uuid", canonical).
		Msg("Dispenser registered")

	utils.RespondWithJSON(w, r, http.StatusOK, models.RegisterDispenserResponse{DispenserUUID: canonical})
}
