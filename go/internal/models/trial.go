package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/choicetrial/go/internal/dom"
)

// Defaults applied by NewTrialConfig.
const (
	DefaultCanvasWidth      = 300
	DefaultCanvasHeight     = 150
	DefaultMarginVertical   = 0
	DefaultMarginHorizontal = 8
	DefaultButtonHTML       = `<button class="choice-btn">%choice%</button>`

	// ChoicePlaceholder is replaced by the choice label in button templates.
	ChoicePlaceholder = "%choice%"
)

// TrialStatus defines where a trial is in its lifecycle.
type TrialStatus string

const (
	TrialStatusRendering        TrialStatus = "RENDERING"
	TrialStatusAwaitingResponse TrialStatus = "AWAITING_RESPONSE"
	TrialStatusCompleted        TrialStatus = "COMPLETED"
)

// DrawFunc paints the stimulus. It receives the container the trial is
// rendered into and the id of the drawing surface inside it. The returned
// value is kept verbatim and attached to the trial result. It is called
// without the widget's lock held while the trial is still rendering, so
// responses dispatched from inside it are ignored.
type DrawFunc func(c *dom.Container, surfaceID string) any

// Stimulus is a named drawing callback.
type Stimulus struct {
	Name string
	Draw DrawFunc
}

// TrialConfig describes one timed choice trial. It is not modified once
// the trial has started.
type TrialConfig struct {
	Stimulus Stimulus

	// StimulusHTML replaces the generated canvas. StimulusID names the
	// element inside it that is passed to the drawing callback.
	StimulusHTML string
	StimulusID   string

	CanvasWidth  int
	CanvasHeight int

	Prompt  string
	Choices []string

	// ButtonHTML holds either one template shared by every choice or one
	// template per choice. Empty means DefaultButtonHTML.
	ButtonHTML []string

	MarginVertical   int // px
	MarginHorizontal int // px

	StimulusDuration *time.Duration // hide the stimulus after this long
	TrialDuration    *time.Duration // end the trial after this long

	ResponseEndsTrial bool
}

// NewTrialConfig returns a config with every optional field at its default.
func NewTrialConfig(stimulus Stimulus, choices ...string) TrialConfig {
	return TrialConfig{
		Stimulus:          stimulus,
		CanvasWidth:       DefaultCanvasWidth,
		CanvasHeight:      DefaultCanvasHeight,
		Choices:           choices,
		MarginVertical:    DefaultMarginVertical,
		MarginHorizontal:  DefaultMarginHorizontal,
		ResponseEndsTrial: true,
	}
}

// Millis is a convenience for the optional duration fields.
func Millis(ms int64) *time.Duration {
	d := time.Duration(ms) * time.Millisecond
	return &d
}

// TrialResult is emitted once, when a trial ends.
type TrialResult struct {
	TrialID    uuid.UUID `json:"trial_id"`
	RT         *float64  `json:"rt"`       // milliseconds, nil without a response
	Stimulus   string    `json:"stimulus"` // name of the drawing callback
	Response   *int      `json:"response"` // button index, nil without a response
	Properties any       `json:"properties,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`

	Draw DrawFunc `json:"-"`
}

// Responded reports whether the result carries a response.
func (r TrialResult) Responded() bool {
	return r.Response != nil
}
