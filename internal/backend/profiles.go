package backend

import (
	"strings"

	"github.com/ieraasyl/DispenserClient/internal/models"
)

// MinTags is the number of distinct lifestyle tags a profile needs.
const MinTags = 3

// CreateProfile validates req and stores it for owner.
func (s *Store) CreateProfile(owner string, req models.CreateProfileRequest) (models.Profile, error) {
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return models.Profile{}, invalid("name is required")
	case req.Height <= 0 || req.Weight <= 0:
		return models.Profile{}, invalid("height and weight must be positive")
	case !req.Gender.Valid():
		return models.Profile{}, invalid("gender must be MALE or FEMALE")
	}

	tags := uniqueNonBlank(req.Tags)
	if len(tags) < MinTags {
		return models.Profile{}, invalid("at least 3 distinct tags are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile := models.Profile{
		ID:         s.nextProfileID,
		Name:       name,
		Height:     req.Height,
		Weight:     req.Weight,
		Gender:     req.Gender,
		Tags:       tags,
		Conditions: uniqueNonBlank(req.Conditions),
	}
	s.nextProfileID++

	s.profiles[profile.ID] = &ownedProfile{owner: owner, profile: profile}
	s.profileOrder = append(s.profileOrder, profile.ID)

	return profile, nil
}

// ListProfiles returns owner's profiles in creation order.
func (s *Store) ListProfiles(owner string) []models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Profile{}
	for _, id := range s.profileOrder {
		if p, ok := s.profiles[id]; ok && p.owner == owner {
			out = append(out, p.profile)
		}
	}
	return out
}

// DeleteProfile removes one of owner's profiles.
func (s *Store) DeleteProfile(owner string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok || p.owner != owner {
		return ErrNotFound
	}
	delete(s.profiles, id)

	for i, pid := range s.profileOrder {
		if pid == id {
			s.profileOrder = append(s.profileOrder[:i], s.profileOrder[i+1:]...)
			break
		}
	}
	return nil
}

// profile returns owner's profile. Callers hold mu.
func (s *Store) profile(owner string, id int64) (models.Profile, bool) {
	p, ok := s.profiles[id]
	if !ok || p.owner != owner {
		return models.Profile{}, false
	}
	return p.profile, true
}

func uniqueNonBlank(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
