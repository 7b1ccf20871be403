// Package backend holds the in-memory state of the reference backend used
// for local development and end-to-end tests: accounts, profiles,
// dispensers and simulated intake requests.
//
// Every resource is owned by the account that created it. Reads and deletes
// of another account's resources behave as if the resource did not exist.
package backend

import (
	"errors"
	"sync"
	"time"

	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/ieraasyl/DispenserClient/pkg/config"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("resource not found")
	ErrDispenserClaimed   = errors.New("dispenser is registered to another account")
	ErrUnknownDispenser   = errors.New("dispenser is not registered to this account")
)

// InputError reports a request the backend refuses to process.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return e.Reason
}

func invalid(reason string) error {
	return &InputError{Reason: reason}
}

// Store is the backend state. The zero value is not usable; call NewStore.
type Store struct {
	mu sync.Mutex

	accounts map[string]*Account // by normalized email

	profiles      map[int64]*ownedProfile
	profileOrder  []int64
	nextProfileID int64

	dispensers map[string]string // uuid → owner account id

	intakes      map[int64]*intakeRecord
	nextIntakeID int64

	sim config.SimulationConfig
	now func() time.Time
}

type ownedProfile struct {
	owner   string
	profile models.Profile
}

// NewStore creates an empty backend.
func NewStore(sim config.SimulationConfig) *Store {
	return &Store{
		accounts:      make(map[string]*Account),
		profiles:      make(map[int64]*ownedProfile),
		nextProfileID: 1,
		dispensers:    make(map[string]string),
		intakes:       make(map[int64]*intakeRecord),
		nextIntakeID:  1,
		sim:           sim,
		now:           time.Now,
	}
}
