package choice

import (
	"fmt"
	"time"

	"github.com/mcdev12/choicetrial/go/internal/dom"
	"github.com/mcdev12/choicetrial/go/internal/models"
)

// Validate checks cfg and returns one button template per choice.
func Validate(cfg models.TrialConfig) ([]string, error) {
	if cfg.Stimulus.Draw == nil {
		return nil, fmt.Errorf("%w: stimulus draw callback is required", ErrInvalidConfig)
	}
	if len(cfg.Choices) == 0 {
		return nil, fmt.Errorf("%w: at least one choice is required", ErrInvalidConfig)
	}

	if (cfg.StimulusHTML == "") != (cfg.StimulusID == "") {
		return nil, fmt.Errorf("%w: stimulus_html and stimulus_id must be set together", ErrInvalidConfig)
	}
	if cfg.StimulusHTML != "" {
		ok, err := dom.FragmentHasID(cfg.StimulusHTML, cfg.StimulusID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: stimulus_html has no element with id %q", ErrInvalidConfig, cfg.StimulusID)
		}
	}

	if cfg.CanvasWidth < 0 || cfg.CanvasHeight < 0 {
		return nil, fmt.Errorf("%w: canvas size %dx%d is negative", ErrInvalidConfig, cfg.CanvasWidth, cfg.CanvasHeight)
	}
	if cfg.MarginVertical < 0 || cfg.MarginHorizontal < 0 {
		return nil, fmt.Errorf("%w: button margins must not be negative", ErrInvalidConfig)
	}
	if err := checkDuration("stimulus_duration", cfg.StimulusDuration); err != nil {
		return nil, err
	}
	if err := checkDuration("trial_duration", cfg.TrialDuration); err != nil {
		return nil, err
	}

	return buttonTemplates(cfg.ButtonHTML, len(cfg.Choices))
}

func checkDuration(name string, d *time.Duration) error {
	if d != nil && *d < 0 {
		return fmt.Errorf("%w: %s %s is negative", ErrInvalidConfig, name, *d)
	}
	return nil
}

// buttonTemplates expands the configured templates to exactly n entries.
func buttonTemplates(configured []string, n int) ([]string, error) {
	switch len(configured) {
	case 0:
		return repeat(models.DefaultButtonHTML, n), nil
	case 1:
		return repeat(configured[0], n), nil
	case n:
		out := make([]string, n)
		copy(out, configured)
		return out, nil
	default:
		return nil, fmt.Errorf("%w: button_html has %d templates but there are %d choices",
			ErrInvalidConfig, len(configured), n)
	}
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
