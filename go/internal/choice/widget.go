package choice

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/choicetrial/go/internal/dom"
	"github.com/mcdev12/choicetrial/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// Timers is the host's timer registration service. ClearAll cancels every
// timer registered through it.
type Timers interface {
	SetTimeout(d time.Duration, fn func())
	ClearAll()
}

// Sink receives the result when a trial ends.
type Sink interface {
	FinishTrial(result models.TrialResult)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(result models.TrialResult)

// FinishTrial implements Sink.
func (f SinkFunc) FinishTrial(result models.TrialResult) { f(result) }

// Widget renders a stimulus with a row of response buttons and reports the
// first response. One widget serves exactly one trial.
type Widget struct {
	id     uuid.UUID
	cfg    models.TrialConfig
	clock  clockwork.Clock
	timers Timers
	sink   Sink

	// dispatchMu serialises Respond calls so a reported RT reaches the
	// listener of the click it was sent with.
	dispatchMu sync.Mutex

	mu        sync.Mutex
	status    models.TrialStatus
	container *dom.Container
	region    *html.Node
	buttons   []*html.Node
	controls  [][]*html.Node // form controls inside each button wrapper
	surfaceID string
	start     time.Time
	rt        *time.Duration
	response  *int
	reported  *time.Duration
	props     any
}

// New creates a widget for cfg. Nothing is rendered until Render is called.
func New(cfg models.TrialConfig, clock clockwork.Clock, timers Timers, sink Sink) *Widget {
	return &Widget{
		id:     uuid.New(),
		cfg:    cfg,
		clock:  clock,
		timers: timers,
		sink:   sink,
	}
}

// ID returns the trial id.
func (w *Widget) ID() uuid.UUID {
	return w.id
}

// Status returns the current lifecycle state. A widget that has not been
// rendered yet reports an empty status.
func (w *Widget) Status() models.TrialStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// SurfaceID returns the id passed to the drawing callback.
func (w *Widget) SurfaceID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.surfaceID
}

// ButtonCount returns the number of rendered buttons.
func (w *Widget) ButtonCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buttons)
}

// Button returns the wrapper element of choice i, or nil once the trial
// has ended or when i is out of range.
func (w *Widget) Button(i int) *html.Node {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i < 0 || i >= len(w.buttons) {
		return nil
	}
	return w.buttons[i]
}

// Render validates the config, replaces the container's contents with the
// trial markup, invokes the drawing callback and arms the configured timers.
// Configuration errors are returned before the container is touched.
func (w *Widget) Render(c *dom.Container) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status != "" {
		return ErrAlreadyRendered
	}

	templates, err := Validate(w.cfg)
	if err != nil {
		return err
	}

	surfaceID := w.cfg.StimulusID
	if surfaceID == "" {
		surfaceID = CanvasID(w.id.String())
	}
	markup, err := RenderMarkup(w.cfg, templates, surfaceID)
	if err != nil {
		return err
	}

	w.status = models.TrialStatusRendering
	w.container = c
	w.surfaceID = surfaceID

	if err := c.SetInnerHTML(markup); err != nil {
		w.status = models.TrialStatusCompleted
		return fmt.Errorf("failed to render trial %s: %w", w.id, err)
	}
	if err := w.bindLocked(); err != nil {
		c.Clear()
		w.status = models.TrialStatusCompleted
		return err
	}

	// Draw runs unlocked so it may call back into the widget. Responses are
	// ignored until the status moves to awaiting.
	w.mu.Unlock()
	props := w.cfg.Stimulus.Draw(c, surfaceID)
	w.mu.Lock()

	w.props = props
	w.start = w.clock.Now()
	w.status = models.TrialStatusAwaitingResponse

	if d := w.cfg.StimulusDuration; d != nil {
		w.timers.SetTimeout(*d, w.hideStimulus)
	}
	if d := w.cfg.TrialDuration; d != nil {
		w.timers.SetTimeout(*d, w.endTrial)
	}

	log.Debug().
		Str("trial_id", w.id.String()).
		Str("stimulus", w.cfg.Stimulus.Name).
		Int("choices", len(w.cfg.Choices)).
		Msg("trial rendered")
	return nil
}

// bindLocked resolves the rendered nodes and attaches one listener per button.
func (w *Widget) bindLocked() error {
	c := w.container

	w.region = c.ElementByID(StimulusRegionID)
	if w.region == nil {
		return fmt.Errorf("%w: stimulus markup broke the stimulus region", ErrInvalidConfig)
	}
	if c.ElementByID(w.surfaceID) == nil {
		return fmt.Errorf("%w: no drawing surface with id %q", ErrInvalidConfig, w.surfaceID)
	}

	w.buttons = make([]*html.Node, len(w.cfg.Choices))
	w.controls = make([][]*html.Node, len(w.cfg.Choices))
	for i := range w.cfg.Choices {
		btn := c.ElementByID(ButtonID(i))
		if btn == nil {
			return fmt.Errorf("%w: button markup for choice %d broke the button group", ErrInvalidConfig, i)
		}
		w.buttons[i] = btn
		for _, tag := range []string{"button", "input", "select", "textarea"} {
			w.controls[i] = append(w.controls[i], c.ElementsByTag(btn, tag)...)
		}

		index := i
		c.AddEventListener(btn, func(*html.Node) { w.handleResponse(index) })
	}
	return nil
}

// Respond clicks choice i the way a participant would: on the first form
// control inside its wrapper, or on the wrapper itself when it has none.
// It returns false if the click was not dispatched.
func (w *Widget) Respond(i int) bool {
	return w.respond(i, nil)
}

// RespondAfter is Respond for a click timed by the participant's display,
// where rt runs from when the display presented the trial. The display
// presents after Render, so rt is recorded only when it lies between zero and
// the time since Render; otherwise the server-side time is kept.
func (w *Widget) RespondAfter(i int, rt time.Duration) bool {
	return w.respond(i, &rt)
}

func (w *Widget) respond(i int, rt *time.Duration) bool {
	w.dispatchMu.Lock()
	defer w.dispatchMu.Unlock()

	w.mu.Lock()
	if i < 0 || i >= len(w.buttons) {
		w.mu.Unlock()
		return false
	}
	c, target := w.container, w.buttons[i]
	if len(w.controls[i]) > 0 {
		target = w.controls[i][0]
	}
	w.reported = rt
	w.mu.Unlock()

	ok := c.Click(target)

	w.mu.Lock()
	w.reported = nil
	w.mu.Unlock()
	return ok
}

func (w *Widget) handleResponse(i int) {
	w.mu.Lock()
	if w.status != models.TrialStatusAwaitingResponse || w.response != nil {
		w.mu.Unlock()
		log.Debug().Str("trial_id", w.id.String()).Int("choice", i).Msg("ignoring late response")
		return
	}

	rt := w.clock.Since(w.start)
	if r := w.reported; r != nil && *r >= 0 && *r <= rt {
		rt = *r
	}
	index := i
	w.rt, w.response = &rt, &index

	w.container.AddClass(w.region, RespondedClass)
	for _, ctls := range w.controls {
		for _, ctl := range ctls {
			w.container.SetAttr(ctl, "disabled", "disabled")
		}
	}
	for _, btn := range w.buttons {
		w.container.SetAttr(btn, "aria-disabled", "true")
	}

	log.Debug().
		Str("trial_id", w.id.String()).
		Int("choice", i).
		Dur("rt", rt).
		Msg("response recorded")

	if !w.cfg.ResponseEndsTrial {
		w.mu.Unlock()
		return
	}
	result := w.finishLocked()
	w.mu.Unlock()

	w.sink.FinishTrial(result)
}

func (w *Widget) hideStimulus() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status != models.TrialStatusAwaitingResponse {
		return
	}
	w.container.SetStyle(w.region, "visibility", "hidden")
}

func (w *Widget) endTrial() {
	w.mu.Lock()
	if w.status != models.TrialStatusAwaitingResponse {
		w.mu.Unlock()
		return
	}
	result := w.finishLocked()
	w.mu.Unlock()

	w.sink.FinishTrial(result)
}

// Abort ends an awaiting trial without reporting a result: timers are
// cancelled and the markup is cleared. It returns false if the trial was not
// awaiting a response.
func (w *Widget) Abort() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status != models.TrialStatusAwaitingResponse {
		return false
	}
	w.finishLocked()
	log.Debug().Str("trial_id", w.id.String()).Msg("trial aborted")
	return true
}

// finishLocked releases the trial's timers and markup and builds its result.
// The caller must hold w.mu and have checked the trial is awaiting a response.
func (w *Widget) finishLocked() models.TrialResult {
	w.timers.ClearAll()

	result := models.TrialResult{
		TrialID:    w.id,
		Stimulus:   w.cfg.Stimulus.Name,
		Draw:       w.cfg.Stimulus.Draw,
		Properties: w.props,
		StartedAt:  w.start,
		EndedAt:    w.clock.Now(),
	}
	if w.response != nil {
		ms := float64(*w.rt) / float64(time.Millisecond)
		index := *w.response
		result.RT = &ms
		result.Response = &index
	}

	w.container.Clear()
	w.buttons = nil
	w.controls = nil
	w.region = nil
	w.status = models.TrialStatusCompleted
	return result
}
