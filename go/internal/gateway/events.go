package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/choicetrial/go/internal/results"
)

// SessionEvent is the envelope for every server to client message.
type SessionEvent struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType represents the type of session event
type EventType string

const (
	EventTypeSessionStarted   EventType = "SessionStarted"
	EventTypeRender           EventType = "Render"
	EventTypeSessionCompleted EventType = "SessionCompleted"
	EventTypeSessionFailed    EventType = "SessionFailed"
)

type SessionStartedPayload struct {
	Participant string `json:"participant"`
	Experiment  string `json:"experiment"`
	TrialCount  int    `json:"trial_count"`
}

// RenderPayload carries the display container's current markup.
type RenderPayload struct {
	HTML       string `json:"html"`
	TrialIndex int    `json:"trial_index"`
	TrialCount int    `json:"trial_count"`
	// StimulusDurationMS lets the page hide the stimulus on its own clock.
	StimulusDurationMS *int64 `json:"stimulus_duration_ms,omitempty"`
}

type SessionCompletedPayload struct {
	Records []results.Record `json:"records"`
}

type SessionFailedPayload struct {
	Error string `json:"error"`
}

// ClientMessageType represents the type of client to server message
type ClientMessageType string

const ClientMessageClick ClientMessageType = "click"

// ClientMessage is sent by the participant page. RTMs is the reaction time
// the page measured from presenting the trial to the click.
type ClientMessage struct {
	Type   ClientMessageType `json:"type"`
	Choice int               `json:"choice"`
	RTMs   *float64          `json:"rt_ms,omitempty"`
}

// newEvent builds an envelope around payload.
func newEvent(sessionID uuid.UUID, eventType EventType, payload interface{}) (*SessionEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &SessionEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID.String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}
