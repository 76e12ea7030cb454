package choice

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mcdev12/choicetrial/go/internal/dom"
	"github.com/mcdev12/choicetrial/go/internal/models"
)

func TestButtonTemplates(t *testing.T) {
	tests := []struct {
		name       string
		configured []string
		n          int
		want       []string
		wantErr    bool
	}{
		{
			name: "default",
			n:    2,
			want: []string{models.DefaultButtonHTML, models.DefaultButtonHTML},
		},
		{
			name:       "shared",
			configured: []string{"<b>%choice%</b>"},
			n:          3,
			want:       []string{"<b>%choice%</b>", "<b>%choice%</b>", "<b>%choice%</b>"},
		},
		{
			name:       "per choice",
			configured: []string{"<i>%choice%</i>", "<u>%choice%</u>"},
			n:          2,
			want:       []string{"<i>%choice%</i>", "<u>%choice%</u>"},
		},
		{
			name:       "mismatch",
			configured: []string{"a", "b"},
			n:          3,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buttonTemplates(tt.configured, tt.n)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("templates mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderMarkupSubstitutesEveryPlaceholder(t *testing.T) {
	cfg := models.NewTrialConfig(blank(), "Left", "Right")
	cfg.ButtonHTML = []string{`<button title="%choice%">%choice% / %choice%</button>`}
	cfg.MarginVertical = 4
	cfg.MarginHorizontal = 12

	templates, err := Validate(cfg)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	markup, err := RenderMarkup(cfg, templates, "surface")
	if err != nil {
		t.Fatalf("RenderMarkup: %v", err)
	}
	if strings.Contains(markup, models.ChoicePlaceholder) {
		t.Errorf("placeholder left in markup: %s", markup)
	}

	c := dom.NewContainer("root")
	if err := c.SetInnerHTML(markup); err != nil {
		t.Fatal(err)
	}
	btn := c.ElementByID(ButtonID(1))
	if btn == nil {
		t.Fatalf("no wrapper for choice 1 in %s", markup)
	}
	if got := c.Text(btn); got != "Right / Right" {
		t.Errorf("text = %q, want %q", got, "Right / Right")
	}
	inner := c.FirstElementChild(btn)
	if title, _ := c.Attr(inner, "title"); title != "Right" {
		t.Errorf("title = %q, want Right", title)
	}
	if v, _ := c.Attr(btn, "data-choice"); v != "1" {
		t.Errorf("data-choice = %q, want 1", v)
	}
	if got := c.Style(btn, "margin"); got != "4px 12px" {
		t.Errorf("margin = %q, want %q", got, "4px 12px")
	}
}

func TestRenderMarkupOrder(t *testing.T) {
	cfg := models.NewTrialConfig(blank(), "x")
	cfg.Prompt = "<p>prompt</p>"
	templates, err := Validate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	markup, err := RenderMarkup(cfg, templates, CanvasID("0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}

	region := strings.Index(markup, StimulusRegionID)
	group := strings.Index(markup, ButtonGroupID)
	prompt := strings.Index(markup, "<p>prompt</p>")
	if !(region >= 0 && region < group && group < prompt) {
		t.Errorf("want stimulus, buttons, prompt in order: %s", markup)
	}
	if !strings.Contains(markup, `id="canvas-stimulus-01234567"`) {
		t.Errorf("generated canvas id missing: %s", markup)
	}
}

func TestRenderMarkupZeroSizeUsesDefaults(t *testing.T) {
	cfg := models.TrialConfig{Stimulus: blank(), Choices: []string{"a"}}
	markup, err := RenderMarkup(cfg, []string{models.DefaultButtonHTML}, "s")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(markup, `height="150" width="300"`) {
		t.Errorf("default canvas size missing: %s", markup)
	}
}
