package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/ieraasyl/DispenserClient/pkg/apperrors"
)

// IntakeService exposes the intake endpoints. The polling workflow built on
// top of it lives in package intake.
type IntakeService struct {
	api API
}

// NewIntakeService creates a new intake service.
func NewIntakeService(api API) *IntakeService {
	return &IntakeService{api: api}
}

// Create requests a dose for profileID on dispenserUUID. A blank dispenser
// fails with ErrNoDispenser before anything is sent.
func (s *IntakeService) Create(ctx context.Context, profileID int64, dispenserUUID string) (*models.Intake, error) {
	dispenserUUID = strings.TrimSpace(dispenserUUID)
	if dispenserUUID == "" {
		return nil, apperrors.ErrNoDispenser
	}

	var intake models.Intake
	req := models.CreateIntakeRequest{ProfileID: profileID, DispenserUUID: dispenserUUID}
	if err := s.api.Do(ctx, http.MethodPost, pathIntakes, req, &intake); err != nil {
		return nil, err
	}
	return &intake, nil
}

// Get reads the current status of an intake.
func (s *IntakeService) Get(ctx context.Context, intakeID int64) (*models.Intake, error) {
	var intake models.Intake
	if err := s.api.Do(ctx, http.MethodGet, fmt.Sprintf("%s/%d", pathIntakes, intakeID), nil, &intake); err != nil {
		return nil, err
	}
	return &intake, nil
}

// History lists past intakes of a profile on a dispenser. The backend takes
// the filter as a JSON body on GET.
func (s *IntakeService) History(ctx context.Context, profileID int64, dispenserUUID string) (*models.IntakeHistory, error) {
	dispenserUUID = strings.TrimSpace(dispenserUUID)
	if dispenserUUID == "" {
		return nil, apperrors.ErrNoDispenser
	}

	var history models.IntakeHistory
	req := models.ListIntakesRequest{ProfileID: profileID, DispenserUUID: dispenserUUID}
	if err := s.api.Do(ctx, http.MethodGet, pathIntakes, req, &history); err != nil {
		return nil, err
	}
	if history.Items == nil {
		history.Items = []models.IntakeItem{}
	}
	return &history, nil
}
