// Package intake drives the fire-and-poll dose workflow.
//
// An Engine creates an intake on the backend and re-reads its status on a
// fixed interval until the backend reports a terminal status or the attempt
// budget runs out. Every step is published on a channel and kept as a
// snapshot for late readers:
//
//	Idle → Requesting → Polling → Succeeded | Failed | TimedOut | Errored
//
// The stream opens with a single Requesting state that carries no intake id
// or status; it only marks the busy indicator while the create call is in
// flight. Status updates start with the creation state (Polling, attempt 0)
// followed by one state per poll, the last of which is terminal.
//
// One workflow runs at a time. Start while busy returns ErrIntakeInFlight.
// Cancel (or cancelling the context given to Start) stops the poller: no
// state is published afterwards, the timer is stopped and the channel closes.
// Cancel frees the engine at once, so Start may follow it directly.
package intake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ieraasyl/DispenserClient/internal/models"
	"github.com/ieraasyl/DispenserClient/pkg/apperrors"
	"github.com/ieraasyl/DispenserClient/pkg/config"
	"github.com/rs/zerolog/log"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 10
)

// Phase is the engine's position in the workflow.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseRequesting Phase = "REQUESTING"
	PhasePolling    Phase = "POLLING"
	PhaseSucceeded  Phase = "SUCCEEDED"
	PhaseFailed     Phase = "FAILED"
	PhaseTimedOut   Phase = "TIMED_OUT"
	PhaseErrored    Phase = "ERRORED"
)

// Busy reports whether a workflow is running.
func (p Phase) Busy() bool {
	return p == PhaseRequesting || p == PhasePolling
}

// Terminal reports whether the workflow has ended on its own.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseSucceeded, PhaseFailed, PhaseTimedOut, PhaseErrored:
		return true
	}
	return false
}

// State is one observable step of the workflow.
type State struct {
	Phase    Phase
	IntakeID int64               // zero until the backend created the intake
	Status   models.IntakeStatus // last status the backend reported
	Attempt  int                 // polls completed so far
	Err      error               // set in PhaseErrored
}

// API is the backend surface the engine needs. services.IntakeService
// implements it.
type API interface {
	Create(ctx context.Context, profileID int64, dispenserUUID string) (*models.Intake, error)
	Get(ctx context.Context, intakeID int64) (*models.Intake, error)
}

// Options tunes the poll schedule.
type Options struct {
	PollInterval time.Duration
	MaxAttempts  int
}

// OptionsFromConfig maps the intake section of the configuration.
func OptionsFromConfig(cfg *config.IntakeConfig) Options {
	return Options{PollInterval: cfg.PollInterval, MaxAttempts: cfg.MaxAttempts}
}

// Engine runs at most one intake workflow at a time.
type Engine struct {
	api         API
	interval    time.Duration
	maxAttempts int

	mu      sync.Mutex
	state   State
	running bool
	cancel  context.CancelFunc
	gen     uint64 // bumped on every release; a run only releases its own generation
}

// NewEngine creates an idle engine.
//
// Example:
//
//	engine := intake.NewEngine(services.NewIntakeService(client), intake.Options{})
//	states, err := engine.Start(ctx, profileID, dispenserUUID)
//	if err != nil {
//	    return err
//	}
//	for st := range states {
//	    render(st)
//	}
func NewEngine(api API, opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Engine{
		api:         api,
		interval:    opts.PollInterval,
		maxAttempts: opts.MaxAttempts,
		state:       State{Phase: PhaseIdle},
	}
}

// Start launches a workflow and returns its state stream. The channel is
// closed when the workflow ends or is cancelled.
//
// A blank dispenserUUID fails with ErrNoDispenser without contacting the
// backend. A second Start while busy fails with ErrIntakeInFlight.
func (e *Engine) Start(ctx context.Context, profileID int64, dispenserUUID string) (<-chan State, error) {
	dispenserUUID = strings.TrimSpace(dispenserUUID)
	if dispenserUUID == "" {
		return nil, apperrors.ErrNoDispenser
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil, apperrors.ErrIntakeInFlight
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	e.state = State{Phase: PhaseRequesting}

	// Requesting + creation + one per poll: sends never block.
	states := make(chan State, e.maxAttempts+2)

	go e.run(runCtx, e.gen, states, profileID, dispenserUUID)

	return states, nil
}

// Snapshot returns the latest published state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Cancel stops the running workflow, if any, and returns the engine to
// Idle. Nothing is published after Cancel returns.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.state.Phase = PhaseIdle
	recordOutcome(PhaseIdle)
	log.Info().Int64("intake_id", e.state.IntakeID).Msg("Intake workflow cancelled")
	e.releaseLocked()
}

func (e *Engine) run(ctx context.Context, gen uint64, states chan<- State, profileID int64, dispenserUUID string) {
	defer close(states)
	defer e.finish(ctx, gen)

	logger := log.With().Int64("profile_id", profileID).Str("dispenser_uuid", dispenserUUID).Logger()

	if !e.publish(ctx, states, State{Phase: PhaseRequesting}) {
		return
	}

	created, err := e.api.Create(ctx, profileID, dispenserUUID)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn().Err(err).Msg("Intake request failed")
			e.end(ctx, gen, states, State{Phase: PhaseErrored, Err: err})
		}
		return
	}

	current := State{Phase: PhasePolling, IntakeID: created.IntakeID, Status: created.Status}
	if !e.publish(ctx, states, current) {
		return
	}
	logger.Info().Int64("intake_id", current.IntakeID).Str("status", string(current.Status)).Msg("Intake created")

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		timer := time.NewTimer(e.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		polled, err := e.api.Get(ctx, current.IntakeID)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn().Err(err).Int64("intake_id", current.IntakeID).Int("attempt", attempt).Msg("Intake poll failed")
				current.Phase = PhaseErrored
				current.Err = err
				e.end(ctx, gen, states, current)
			}
			return
		}

		current.Status = polled.Status
		current.Attempt = attempt

		logger.Debug().
			Int64("intake_id", current.IntakeID).
			Int("attempt", attempt).
			Str("status", string(current.Status)).
			Msg("Intake polled")

		switch {
		case current.Status.Terminal():
			current.Phase = PhaseFailed
			if current.Status == models.IntakeSuccess {
				current.Phase = PhaseSucceeded
			}
			e.end(ctx, gen, states, current)
			return
		case attempt == e.maxAttempts:
			current.Phase = PhaseTimedOut
			e.end(ctx, gen, states, current)
			return
		}

		if !e.publish(ctx, states, current) {
			return
		}
	}
}

// publish records st and sends it, unless the workflow was cancelled.
// Holding mu across the check and the send orders it against Cancel.
func (e *Engine) publish(ctx context.Context, states chan<- State, st State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	e.state = st
	states <- st
	return true
}

// end publishes the terminal state and frees the engine in one step, so a
// Start that observes the terminal state is never rejected.
func (e *Engine) end(ctx context.Context, gen uint64, states chan<- State, st State) {
	e.mu.Lock()
	if ctx.Err() != nil || gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.state = st
	states <- st
	e.releaseLocked()
	e.mu.Unlock()

	recordOutcome(st.Phase)
	log.Info().
		Int64("intake_id", st.IntakeID).
		Str("phase", string(st.Phase)).
		Str("status", string(st.Status)).
		Int("attempt", st.Attempt).
		Msg("Intake workflow finished")
}

// finish covers runs stopped by their parent context. Runs that ended on
// their own or through Cancel were already released.
func (e *Engine) finish(ctx context.Context, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen {
		return
	}
	e.state.Phase = PhaseIdle
	recordOutcome(PhaseIdle)
	if errors.Is(ctx.Err(), context.Canceled) {
		log.Info().Int64("intake_id", e.state.IntakeID).Msg("Intake workflow cancelled")
	}
	e.releaseLocked()
}

// releaseLocked frees the engine for the next Start. e.mu must be held.
func (e *Engine) releaseLocked() {
	e.running = false
	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}
