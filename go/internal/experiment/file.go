package experiment

// File is the on-disk layout of an experiment. Trials inherit every field
// they leave unset from Defaults.
type File struct {
	Name     string      `yaml:"name" toml:"name"`
	Repeat   int         `yaml:"repeat" toml:"repeat"`
	Shuffle  bool        `yaml:"shuffle" toml:"shuffle"`
	Defaults TrialSpec   `yaml:"defaults" toml:"defaults"`
	Trials   []TrialSpec `yaml:"trials" toml:"trials"`
}

// TrialSpec is one trial as written in an experiment file. Durations are
// in milliseconds.
type TrialSpec struct {
	Stimulus string         `yaml:"stimulus" toml:"stimulus"`
	Params   map[string]any `yaml:"params" toml:"params"`

	StimulusHTML string `yaml:"stimulus_html" toml:"stimulus_html"`
	StimulusID   string `yaml:"stimulus_id" toml:"stimulus_id"`

	CanvasWidth  *int `yaml:"canvas_width" toml:"canvas_width"`
	CanvasHeight *int `yaml:"canvas_height" toml:"canvas_height"`

	Prompt  string   `yaml:"prompt" toml:"prompt"`
	Choices []string `yaml:"choices" toml:"choices"`

	// ButtonHTML is either a single template string or a list of them.
	ButtonHTML any `yaml:"button_html" toml:"button_html"`

	MarginVertical   *int `yaml:"margin_vertical" toml:"margin_vertical"`
	MarginHorizontal *int `yaml:"margin_horizontal" toml:"margin_horizontal"`

	StimulusDuration *int64 `yaml:"stimulus_duration" toml:"stimulus_duration"`
	TrialDuration    *int64 `yaml:"trial_duration" toml:"trial_duration"`

	ResponseEndsTrial *bool `yaml:"response_ends_trial" toml:"response_ends_trial"`
}

// merge returns s with every unset field taken from def.
func (s TrialSpec) merge(def TrialSpec) TrialSpec {
	if s.Stimulus == "" {
		s.Stimulus = def.Stimulus
		if s.Params == nil {
			s.Params = def.Params
		}
	}
	if s.StimulusHTML == "" && s.StimulusID == "" {
		s.StimulusHTML, s.StimulusID = def.StimulusHTML, def.StimulusID
	}
	if s.CanvasWidth == nil {
		s.CanvasWidth = def.CanvasWidth
	}
	if s.CanvasHeight == nil {
		s.CanvasHeight = def.CanvasHeight
	}
	if s.Prompt == "" {
		s.Prompt = def.Prompt
	}
	if len(s.Choices) == 0 {
		s.Choices = def.Choices
	}
	if s.ButtonHTML == nil {
		s.ButtonHTML = def.ButtonHTML
	}
	if s.MarginVertical == nil {
		s.MarginVertical = def.MarginVertical
	}
	if s.MarginHorizontal == nil {
		s.MarginHorizontal = def.MarginHorizontal
	}
	if s.StimulusDuration == nil {
		s.StimulusDuration = def.StimulusDuration
	}
	if s.TrialDuration == nil {
		s.TrialDuration = def.TrialDuration
	}
	if s.ResponseEndsTrial == nil {
		s.ResponseEndsTrial = def.ResponseEndsTrial
	}
	return s
}
