package experiment

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcdev12/choicetrial/go/internal/choice"
	"github.com/mcdev12/choicetrial/go/internal/models"
	"github.com/mcdev12/choicetrial/go/internal/stimulus"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Format is an experiment file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Experiment is a resolved list of trials.
type Experiment struct {
	Name    string
	Shuffle bool
	Trials  []models.TrialConfig
}

// Load reads and resolves the experiment file at path.
func Load(path string, reg *stimulus.Registry) (*Experiment, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment file: %w", err)
	}

	exp, err := Parse(data, format, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	log.Info().
		Str("experiment", exp.Name).
		Str("path", path).
		Int("trials", len(exp.Trials)).
		Msg("loaded experiment")
	return exp, nil
}

// Parse decodes data in the given format and resolves it into trial configs.
func Parse(data []byte, format Format, reg *stimulus.Registry) (*Experiment, error) {
	var f File
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return Resolve(f, reg)
}

// Resolve turns a decoded file into trial configs. Each trial is checked
// the same way the widget checks it before rendering.
func Resolve(f File, reg *stimulus.Registry) (*Experiment, error) {
	if len(f.Trials) == 0 {
		return nil, fmt.Errorf("%w: no trials", ErrInvalidExperiment)
	}
	repeat := f.Repeat
	if repeat == 0 {
		repeat = 1
	}
	if repeat < 0 {
		return nil, fmt.Errorf("%w: repeat %d is negative", ErrInvalidExperiment, repeat)
	}

	block := make([]models.TrialConfig, 0, len(f.Trials))
	for i, spec := range f.Trials {
		cfg, err := resolveTrial(spec.merge(f.Defaults), reg)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", i, err)
		}
		block = append(block, cfg)
	}

	exp := &Experiment{Name: f.Name, Shuffle: f.Shuffle}
	for r := 0; r < repeat; r++ {
		exp.Trials = append(exp.Trials, block...)
	}
	return exp, nil
}

func resolveTrial(spec TrialSpec, reg *stimulus.Registry) (models.TrialConfig, error) {
	if spec.Stimulus == "" {
		return models.TrialConfig{}, fmt.Errorf("%w: stimulus is required", ErrInvalidExperiment)
	}
	stim, err := reg.Build(spec.Stimulus, spec.Params)
	if err != nil {
		return models.TrialConfig{}, err
	}

	cfg := models.NewTrialConfig(stim, spec.Choices...)
	cfg.StimulusHTML = spec.StimulusHTML
	cfg.StimulusID = spec.StimulusID
	cfg.Prompt = spec.Prompt
	if spec.CanvasWidth != nil {
		cfg.CanvasWidth = *spec.CanvasWidth
	}
	if spec.CanvasHeight != nil {
		cfg.CanvasHeight = *spec.CanvasHeight
	}
	if spec.MarginVertical != nil {
		cfg.MarginVertical = *spec.MarginVertical
	}
	if spec.MarginHorizontal != nil {
		cfg.MarginHorizontal = *spec.MarginHorizontal
	}
	if spec.StimulusDuration != nil {
		cfg.StimulusDuration = models.Millis(*spec.StimulusDuration)
	}
	if spec.TrialDuration != nil {
		cfg.TrialDuration = models.Millis(*spec.TrialDuration)
	}
	if spec.ResponseEndsTrial != nil {
		cfg.ResponseEndsTrial = *spec.ResponseEndsTrial
	}

	cfg.ButtonHTML, err = templates(spec.ButtonHTML)
	if err != nil {
		return models.TrialConfig{}, err
	}

	if _, err := choice.Validate(cfg); err != nil {
		return models.TrialConfig{}, err
	}
	return cfg, nil
}

// templates normalises button_html, which may be a string or a list.
func templates(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: button_html[%d] must be a string, got %T", ErrInvalidExperiment, i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: button_html must be a string or a list, got %T", ErrInvalidExperiment, v)
	}
}

// Order returns the trials in presentation order. Shuffled experiments are
// permuted with r.
func (e *Experiment) Order(r *rand.Rand) []models.TrialConfig {
	out := make([]models.TrialConfig, len(e.Trials))
	copy(out, e.Trials)
	if e.Shuffle {
		r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out
}
