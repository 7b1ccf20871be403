package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/ieraasyl/DispenserClient/pkg/apperrors"
	"github.com/rs/zerolog/log"
)

// MinProfileTags is the number of distinct lifestyle tags a new profile needs.
const MinProfileTags = 3

// ProfileService is a pass-through to the profile resource.
type ProfileService struct {
	api API
}

// NewProfileService creates a new profile service.
func NewProfileService(api API) *ProfileService {
	return &ProfileService{api: api}
}

// Create submits a new profile and returns the server-assigned id and name.
// Tags are trimmed and deduplicated first; fewer than MinProfileTags distinct
// tags fail locally with a ValidationError and nothing is sent.
func (s *ProfileService) Create(ctx context.Context, req models.CreateProfileRequest) (*models.ProfileCreated, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Tags = distinct(req.Tags)
	req.Conditions = distinct(req.Conditions)

	if len(req.Tags) < MinProfileTags {
		return nil, apperrors.Validation("at least %d distinct tags are required, got %d", MinProfileTags, len(req.Tags))
	}

	var created models.ProfileCreated
	if err := s.api.Do(ctx, http.MethodPost, pathProfiles, req, &created); err != nil {
		return nil, err
	}

	log.Info().Int64("profile_id", created.ID).Msg("Profile created")
	return &created, nil
}

// List returns the profiles in server order.
func (s *ProfileService) List(ctx context.Context) ([]models.Profile, error) {
	var list models.ProfileList
	if err := s.api.Do(ctx, http.MethodGet, pathProfiles, nil, &list); err != nil {
		return nil, err
	}
	if list.Items == nil {
		return []models.Profile{}, nil
	}
	return list.Items, nil
}

// Delete removes a profile. Any non-2xx answer is a DeleteFailedError.
func (s *ProfileService) Delete(ctx context.Context, id int64) error {
	resp, err := s.api.Send(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", pathProfiles, id), nil)
	if err != nil {
		return err
	}
	if !resp.Success() {
		log.Warn().Int64("profile_id", id).Int("status", resp.StatusCode).Msg("Profile delete rejected")
		return &apperrors.DeleteFailedError{StatusCode: resp.StatusCode}
	}

	log.Info().Int64("profile_id", id).Msg("Profile deleted")
	return nil
}

// distinct trims values and drops blanks and repeats, keeping first-seen order.
func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
