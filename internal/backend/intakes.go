package backend

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/ieraasyl/DispenserClient/internal/models"
)

type intakeRecord struct {
	id            int64
	owner         string
	profileID     int64
	dispenserUUID string
	status        models.IntakeStatus
	reads         int
	fails         bool
	snapshot      string
	doses         doses
	requestedAt   time.Time
	completedAt   time.Time
}

type doses struct {
	vitamin, melatonin, magnesium, electrolyte float64
}

// CreateIntake queues a dose for one of owner's profiles on one of owner's
// dispensers. The intake starts in REQUESTED.
func (s *Store) CreateIntake(owner string, profileID int64, dispenserUUID string) (models.Intake, error) {
	if strings.TrimSpace(dispenserUUID) == "" {
		return models.Intake{}, invalid("dispenserUuid is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profile(owner, profileID)
	if !ok {
		return models.Intake{}, ErrNotFound
	}
	if !s.ownsDispenser(owner, dispenserUUID) {
		return models.Intake{}, ErrUnknownDispenser
	}

	snapshot, _ := json.Marshal(profile)
	rec := &intakeRecord{
		id:            s.nextIntakeID,
		owner:         owner,
		profileID:     profileID,
		dispenserUUID: strings.ToUpper(strings.TrimSpace(dispenserUUID)),
		status:        models.IntakeRequested,
		fails:         s.sim.FailTag != "" && hasTag(profile, s.sim.FailTag),
		snapshot:      string(snapshot),
		doses:         dosesFor(profile),
		requestedAt:   s.now(),
	}
	s.nextIntakeID++
	s.intakes[rec.id] = rec

	return models.Intake{IntakeID: rec.id, Status: rec.status}, nil
}

// ReadIntake returns the intake status. Each read advances the simulation:
// reads before the configured count report PROCESSING, the read that reaches
// it settles the intake in SUCCESS, or FAIL for profiles carrying the
// failure tag.
func (s *Store) ReadIntake(owner string, id int64) (models.Intake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.intakes[id]
	if !ok || rec.owner != owner {
		return models.Intake{}, ErrNotFound
	}

	if !rec.status.Terminal() {
		rec.reads++
		switch {
		case rec.reads >= s.sim.ReadsUntilDone && rec.fails:
			rec.status = models.IntakeFail
			rec.completedAt = s.now()
		case rec.reads >= s.sim.ReadsUntilDone:
			rec.status = models.IntakeSuccess
			rec.completedAt = s.now()
		default:
			rec.status = models.IntakeProcessing
		}
	}

	return models.Intake{IntakeID: rec.id, Status: rec.status}, nil
}

// IntakeHistory lists owner's intakes for profileID on dispenserUUID,
// oldest first. Does not advance the simulation.
func (s *Store) IntakeHistory(owner string, profileID int64, dispenserUUID string) models.IntakeHistory {
	s.mu.Lock()
	defer s.mu.Unlock()

	dispenserUUID = strings.ToUpper(strings.TrimSpace(dispenserUUID))
	items := []models.IntakeItem{}
	for id := int64(1); id < s.nextIntakeID; id++ {
		rec, ok := s.intakes[id]
		if !ok || rec.owner != owner || rec.profileID != profileID || rec.dispenserUUID != dispenserUUID {
			continue
		}
		items = append(items, rec.item())
	}
	return models.IntakeHistory{Items: items, Count: len(items)}
}

func (r *intakeRecord) item() models.IntakeItem {
	requested := r.requestedAt.UTC().Format(time.RFC3339)
	snapshot := r.snapshot
	item := models.IntakeItem{
		IntakeID:        r.id,
		Status:          r.status,
		ProfileSnapshot: &snapshot,
		RequestedAt:     &requested,
	}
	if r.status == models.IntakeSuccess {
		d := r.doses
		completed := r.completedAt.UTC().Format(time.RFC3339)
		item.Vitamin = &d.vitamin
		item.Melatonin = &d.melatonin
		item.Magnesium = &d.magnesium
		item.Electrolyte = &d.electrolyte
		item.CompletedAt = &completed
	}
	return item
}

// dosesFor scales a simulated reference dose by body weight.
func dosesFor(p models.Profile) doses {
	scale := p.Weight / 70
	if scale <= 0 {
		scale = 1
	}
	d := doses{
		vitamin:     round2(1.0 * scale),
		melatonin:   0.5,
		magnesium:   round2(0.35 * scale),
		electrolyte: round2(0.8 * scale),
	}
	for _, c := range p.Conditions {
		if c == models.ConditionPregnant {
			d.melatonin = 0
		}
	}
	return d
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func hasTag(p models.Profile, tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
