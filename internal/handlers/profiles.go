package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ieraasyl/DispenserClient/internal/backend"
	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/ieraasyl/DispenserClient/pkg/utils"
)

// ProfileHandler serves the profiles of the authenticated account.
type ProfileHandler struct {
	store *backend.Store
}

// NewProfileHandler creates the profile handler.
func NewProfileHandler(store *backend.Store) *ProfileHandler {
	return &ProfileHandler{store: store}
}

// Create stores a profile and answers 201 with {"id", "name"}.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := accountID(w, r)
	if !ok {
		return
	}

	var req models.CreateProfileRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.store.CreateProfile(owner, req)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	utils.RespondWithJSON(w, r, http.StatusCreated, models.ProfileCreated{ID: profile.ID, Name: profile.Name})
}

// List answers {"items": [...], "count": n}.
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := accountID(w, r)
	if !ok {
		return
	}

	items := h.store.ListProfiles(owner)
	utils.RespondWithJSON(w, r, http.StatusOK, models.ProfileList{Items: items, Count: len(items)})
}

// Delete removes a profile and answers 204, or 404 when the profile does
// not exist or belongs to another account.
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := accountID(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "profileId"), 10, 64)
	if err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "invalid profile id")
		return
	}

	if err := h.store.DeleteProfile(owner, id); err != nil {
		respondStoreError(w, r, err)
		return
	}

	utils.RespondNoContent(w)
}
