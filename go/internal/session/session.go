package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/choicetrial/go/internal/choice"
	"github.com/mcdev12/choicetrial/go/internal/dom"
	"github.com/mcdev12/choicetrial/go/internal/models"
	"github.com/mcdev12/choicetrial/go/internal/results"
	"github.com/mcdev12/choicetrial/go/internal/timers"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrNoTrials       = errors.New("session has no trials")
)

const saveTimeout = 5 * time.Second

// Params describes what a session runs and where its results go.
type Params struct {
	Participant string
	Experiment  string
	Trials      []models.TrialConfig
	Clock       clockwork.Clock
	Sink        results.Sink
}

// Session runs trials one after another in a single container. Each trial
// is rendered as soon as the previous one reports its result.
type Session struct {
	id          uuid.UUID
	participant string
	experiment  string
	trials      []models.TrialConfig
	clock       clockwork.Clock
	sink        results.Sink
	container   *dom.Container

	mu      sync.Mutex
	started bool
	closed  bool
	index   int
	current *choice.Widget
	records []results.Record
	err     error
	done    chan struct{}
}

// New creates a session that renders into container.
func New(p Params, container *dom.Container) *Session {
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Session{
		id:          uuid.New(),
		participant: p.Participant,
		experiment:  p.Experiment,
		trials:      p.Trials,
		clock:       clock,
		sink:        p.Sink,
		container:   container,
		done:        make(chan struct{}),
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// Experiment returns the name of the experiment being run.
func (s *Session) Experiment() string {
	return s.experiment
}

// Done is closed when the last trial has ended or the session was aborted.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports why the session stopped early, if it did.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Progress returns the index of the current trial and the trial count.
func (s *Session) Progress() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index, len(s.trials)
}

// Trial returns the config of trial i.
func (s *Session) Trial(i int) (models.TrialConfig, bool) {
	if i < 0 || i >= len(s.trials) {
		return models.TrialConfig{}, false
	}
	return s.trials[i], true
}

// Records returns the records collected so far.
func (s *Session) Records() []results.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]results.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Start renders the first trial.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	if len(s.trials) == 0 {
		return ErrNoTrials
	}
	s.started = true

	log.Info().
		Str("session_id", s.id.String()).
		Str("participant", s.participant).
		Str("experiment", s.experiment).
		Int("trials", len(s.trials)).
		Msg("session started")

	if err := s.renderLocked(); err != nil {
		s.stopLocked(err)
		return err
	}
	return nil
}

// renderLocked creates and renders the widget for the current index.
func (s *Session) renderLocked() error {
	scope := timers.NewScope(s.clock, fmt.Sprintf("%s/%d", s.id, s.index))
	w := choice.New(s.trials[s.index], s.clock, scope, choice.SinkFunc(s.finishTrial))
	s.current = w
	if err := w.Render(s.container); err != nil {
		return fmt.Errorf("failed to render trial %d: %w", s.index, err)
	}
	return nil
}

// Click dispatches a participant click on button i of the current trial.
func (s *Session) Click(i int) bool {
	s.mu.Lock()
	w := s.current
	s.mu.Unlock()

	if w == nil {
		return false
	}
	return w.Respond(i)
}

// ClickAfter is Click for a click the participant's display has timed: rt
// runs from when the display presented the current trial.
func (s *Session) ClickAfter(i int, rt time.Duration) bool {
	s.mu.Lock()
	w := s.current
	s.mu.Unlock()

	if w == nil {
		return false
	}
	return w.RespondAfter(i, rt)
}

// finishTrial receives a trial's result, stores it and moves on.
func (s *Session) finishTrial(result models.TrialResult) {
	s.mu.Lock()
	if s.closed || s.current == nil || s.current.ID() != result.TrialID {
		s.mu.Unlock()
		return
	}
	rec := results.Record{
		SessionID:   s.id,
		Participant: s.participant,
		Experiment:  s.experiment,
		TrialIndex:  s.index,
		Result:      result,
	}
	s.records = append(s.records, rec)
	s.mu.Unlock()

	s.save(rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		// Aborted while saving; the save may have reopened per-session files.
		s.closeSink()
		return
	}
	s.index++
	if s.index >= len(s.trials) {
		s.current = nil
		s.stopLocked(nil)
		return
	}
	if err := s.renderLocked(); err != nil {
		s.stopLocked(err)
	}
}

func (s *Session) save(rec results.Record) {
	if s.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := s.sink.Save(ctx, rec); err != nil {
		log.Error().
			Err(err).
			Str("session_id", s.id.String()).
			Int("trial_index", rec.TrialIndex).
			Msg("failed to save trial result")
	}
}

// Abort ends the session, dropping the current trial without a result.
func (s *Session) Abort() {
	s.mu.Lock()
	w := s.current
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.stopLocked(context.Canceled)
	s.mu.Unlock()

	if w != nil {
		w.Abort()
	}
}

func (s *Session) stopLocked(err error) {
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.done)
	s.closeSink()

	ev := log.Info()
	if err != nil && !errors.Is(err, context.Canceled) {
		ev = log.Error().Err(err)
	}
	ev.Str("session_id", s.id.String()).
		Int("completed", len(s.records)).
		Int("trials", len(s.trials)).
		Msg("session ended")
}

// closeSink releases the sink's per-session resources.
func (s *Session) closeSink() {
	if s.sink == nil {
		return
	}
	if err := results.CloseSession(s.sink, s.id); err != nil {
		log.Error().Err(err).Str("session_id", s.id.String()).Msg("failed to close session results")
	}
}
