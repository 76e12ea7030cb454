package results

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/choicetrial/go/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// Record is a trial result tagged with where it was collected.
type Record struct {
	SessionID   uuid.UUID          `json:"session_id"`
	Participant string             `json:"participant"`
	Experiment  string             `json:"experiment"`
	TrialIndex  int                `json:"trial_index"`
	Result      models.TrialResult `json:"result"`
}

// Sink stores or forwards trial records.
type Sink interface {
	Save(ctx context.Context, rec Record) error
}

// SessionCloser is implemented by sinks that hold resources per session.
// CloseSession is called once a session has stopped producing records.
type SessionCloser interface {
	CloseSession(sessionID uuid.UUID) error
}

// CloseSession closes sessionID on s if s holds per-session resources.
func CloseSession(s Sink, sessionID uuid.UUID) error {
	c, ok := s.(SessionCloser)
	if !ok {
		return nil
	}
	return c.CloseSession(sessionID)
}

// Reader returns the records of a session in trial order.
type Reader interface {
	SessionResults(ctx context.Context, sessionID uuid.UUID) ([]Record, error)
}

// MultiSink fans a record out to every sink. All sinks are tried; the
// returned error joins their failures.
type MultiSink []Sink

func (m MultiSink) Save(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("failed to save trial %d to %T: %w", rec.TrialIndex, s, err))
		}
	}
	return errors.Join(errs...)
}

// CloseSession forwards to every sink that implements SessionCloser.
func (m MultiSink) CloseSession(sessionID uuid.UUID) error {
	var errs []error
	for _, s := range m {
		if err := CloseSession(s, sessionID); err != nil {
			errs = append(errs, fmt.Errorf("failed to close session %s on %T: %w", sessionID, s, err))
		}
	}
	return errors.Join(errs...)
}
