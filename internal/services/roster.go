package services

import (
	"context"
	"sync"

	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/rs/zerolog/log"
)

// ProfileStore is the backend side of a Roster.
type ProfileStore interface {
	List(ctx context.Context) ([]models.Profile, error)
	Delete(ctx context.Context, id int64) error
}

// Roster is the locally displayed profile list. Deletes are applied
// optimistically: the profile disappears before the backend answers and
// comes back at its old position if the backend refuses.
type Roster struct {
	mu       sync.Mutex
	profiles ProfileStore
	items    []models.Profile
}

// NewRoster creates an empty roster. Call Refresh to load it.
func NewRoster(profiles ProfileStore) *Roster {
	return &Roster{profiles: profiles}
}

// Refresh replaces the local list with the backend's.
func (r *Roster) Refresh(ctx context.Context) error {
	items, err := r.profiles.List(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.items = append([]models.Profile(nil), items...)
	r.mu.Unlock()
	return nil
}

// Items returns a copy of the current list.
func (r *Roster) Items() []models.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Profile{}, r.items...)
}

// Append adds a freshly created profile. Only id and name are known until
// the next Refresh.
func (r *Roster) Append(created models.ProfileCreated) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, models.Profile{ID: created.ID, Name: created.Name})
}

// Delete removes id locally, then asks the backend. On failure the profile
// is restored and the backend's error returned.
func (r *Roster) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	index := -1
	var removed models.Profile
	for i, p := range r.items {
		if p.ID == id {
			index, removed = i, p
			break
		}
	}
	if index >= 0 {
		r.items = append(r.items[:index:index], r.items[index+1:]...)
	}
	r.mu.Unlock()

	err := r.profiles.Delete(ctx, id)
	if err == nil {
		return nil
	}

	if index >= 0 {
		r.restore(index, removed)
		log.Warn().Err(err).Int64("profile_id", id).Msg("Profile delete rolled back")
	}
	return err
}

func (r *Roster) restore(index int, p models.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.ID == p.ID {
			return
		}
	}
	if index > len(r.items) {
		index = len(r.items)
	}
	r.items = append(r.items[:index], append([]models.Profile{p}, r.items[index:]...)...)
}
