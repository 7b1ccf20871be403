package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ieraasyl/DispenserClient/internal/backend"
	"github.com/ieraasyl/DispenserClient/internal/middleware"
	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/ieraasyl/DispenserClient/pkg/utils"
)

// IntakeHandler serves intake requests and their history.
type IntakeHandler struct {
	store *backend.Store
}

// NewIntakeHandler creates the intake handler.
func NewIntakeHandler(store *backend.Store) *IntakeHandler {
	return &IntakeHandler{store: store}
}

// Create queues an intake and answers 201 with {"intakeId", "status"}.
func (h *IntakeHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := accountID(w, r)
	if !ok {
		return
	}

	var req models.CreateIntakeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	intake, err := h.store.CreateIntake(owner, req.ProfileID, req.DispenserUUID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, r, http.StatusCreated, intake)
}

// Get reports the status of one intake. Each read advances the simulated
// dispenser.
func (h *IntakeHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := accountID(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "intakeId"), 10, 64)
	if err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "invalid intake id")
		return
	}

	intake, err := h.store.ReadIntake(owner, id)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	middleware.RecordIntakeStatusRead(string(intake.Status))
	utils.RespondWithJSON(w, r, http.StatusOK, intake)
}

// List answers the intake history of one profile on one dispenser. The
// filter travels as a JSON body on the GET request.
func (h *IntakeHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := accountID(w, r)
	if !ok {
		return
	}

	var req models.ListIntakesRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.DispenserUUID == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "dispenserUuid is required")
		return
	}

	utils.RespondWithJSON(w, r, http.StatusOK, h.store.IntakeHistory(owner, req.ProfileID, req.DispenserUUID))
}
