package choice

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/mcdev12/choicetrial/go/internal/models"
)

// Element ids and classes written by the renderer.
const (
	idPrefix = "choice-response"

	StimulusRegionID = idPrefix + "-stimulus"
	ButtonGroupID    = idPrefix + "-btngroup"
	ButtonClass      = idPrefix + "-button"
	RespondedClass   = "responded"
)

// ButtonID returns the id of the wrapper for choice i.
func ButtonID(i int) string {
	return fmt.Sprintf("%s-button-%d", idPrefix, i)
}

// CanvasID returns the generated canvas id for a trial.
func CanvasID(trialID string) string {
	if len(trialID) > 8 {
		trialID = trialID[:8]
	}
	return "canvas-stimulus-" + trialID
}

var trialTemplate = template.Must(template.New("trial").Parse(
	`<div id="{{.RegionID}}">` +
		`{{if .Custom}}{{.Custom}}{{else}}<canvas id="{{.SurfaceID}}" height="{{.Height}}" width="{{.Width}}"></canvas>{{end}}` +
		`</div>` +
		`<div id="{{.GroupID}}">` +
		`{{range .Buttons}}<div class="{{$.ButtonClass}}" style="display: inline-block; margin: {{$.MarginV}}px {{$.MarginH}}px" id="{{.ID}}" data-choice="{{.Index}}">{{.Markup}}</div>{{end}}` +
		`</div>` +
		`{{.Prompt}}`))

type buttonView struct {
	ID     string
	Index  int
	Markup template.HTML
}

type trialView struct {
	RegionID    string
	GroupID     string
	ButtonClass string
	SurfaceID   string
	Custom      template.HTML
	Width       int
	Height      int
	MarginV     int
	MarginH     int
	Buttons     []buttonView
	Prompt      template.HTML
}

// RenderMarkup builds the trial markup. templates must hold one entry per
// choice, as returned by Validate. Labels, templates, custom stimulus markup
// and the prompt are experimenter-authored and inserted as HTML.
func RenderMarkup(cfg models.TrialConfig, templates []string, surfaceID string) (string, error) {
	if len(templates) != len(cfg.Choices) {
		return "", fmt.Errorf("%w: %d button templates for %d choices", ErrInvalidConfig, len(templates), len(cfg.Choices))
	}

	width, height := cfg.CanvasWidth, cfg.CanvasHeight
	if width == 0 {
		width = models.DefaultCanvasWidth
	}
	if height == 0 {
		height = models.DefaultCanvasHeight
	}

	view := trialView{
		RegionID:    StimulusRegionID,
		GroupID:     ButtonGroupID,
		ButtonClass: ButtonClass,
		SurfaceID:   surfaceID,
		Custom:      template.HTML(cfg.StimulusHTML),
		Width:       width,
		Height:      height,
		MarginV:     cfg.MarginVertical,
		MarginH:     cfg.MarginHorizontal,
		Buttons:     make([]buttonView, len(cfg.Choices)),
		Prompt:      template.HTML(cfg.Prompt),
	}
	for i, label := range cfg.Choices {
		view.Buttons[i] = buttonView{
			ID:     ButtonID(i),
			Index:  i,
			Markup: template.HTML(strings.ReplaceAll(templates[i], models.ChoicePlaceholder, label)),
		}
	}

	var buf bytes.Buffer
	if err := trialTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render trial markup: %w", err)
	}
	return buf.String(), nil
}
