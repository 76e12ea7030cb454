package stimulus

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mcdev12/choicetrial/go/internal/dom"
)

func newSurface(t *testing.T) *dom.Container {
	t.Helper()
	c := dom.NewContainer("display")
	if err := c.SetInnerHTML(`<canvas id="surface" width="200" height="100"></canvas>`); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestFixationCross(t *testing.T) {
	c := newSurface(t)
	stim, err := DefaultRegistry().Build("fixation", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if props := stim.Draw(c, "surface"); props != nil {
		t.Errorf("props = %v, want nil", props)
	}

	got, err := ReadCommands(c, "surface")
	if err != nil {
		t.Fatal(err)
	}
	want := []Command{
		{Op: "clear", Color: "#ffffff"},
		{Op: "line", Args: []float64{80, 50, 120, 50}, Color: "#000000"},
		{Op: "line", Args: []float64{100, 30, 100, 70}, Color: "#000000"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestDotsAreReproducibleFromSeed(t *testing.T) {
	params := map[string]any{"n": 5, "n_max": 15, "seed": int64(42), "color": "#ff0000"}
	stim, err := DefaultRegistry().Build("dots", params)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	c1, c2 := newSurface(t), newSurface(t)
	p1 := stim.Draw(c1, "surface").(map[string]any)
	p2 := stim.Draw(c2, "surface").(map[string]any)
	if diff := cmp.Diff(p1, p2); diff != "" {
		t.Fatalf("properties differ for the same seed:\n%s", diff)
	}
	if p1["seed"] != "42" {
		t.Errorf("seed = %v, want 42", p1["seed"])
	}
	n := p1["n_dots"].(int)
	if n < 5 || n > 15 {
		t.Errorf("n_dots = %d, want within [5, 15]", n)
	}

	cmds1, _ := ReadCommands(c1, "surface")
	cmds2, _ := ReadCommands(c2, "surface")
	if diff := cmp.Diff(cmds1, cmds2); diff != "" {
		t.Errorf("commands differ for the same seed:\n%s", diff)
	}
	if got := len(cmds1); got != n+1 {
		t.Errorf("got %d commands, want %d dots plus clear", got, n)
	}
	for _, cmd := range cmds1[1:] {
		x, y := cmd.Args[0], cmd.Args[1]
		if x < 3 || x > 197 || y < 3 || y > 97 {
			t.Errorf("dot at (%v, %v) leaves the canvas", x, y)
		}
	}
}

func TestDotsSeedIsExact(t *testing.T) {
	tests := []struct {
		name string
		seed any
		want string
	}{
		{"above 2^53 as uint64", uint64(9007199254740993), "9007199254740993"},
		{"max uint64", uint64(18446744073709551557), "18446744073709551557"},
		{"decimal string", "18446744073709551557", "18446744073709551557"},
		{"int64", int64(1) << 60, "1152921504606846976"},
		{"exact float", 42.0, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stim, err := DefaultRegistry().Build("dots", map[string]any{"seed": tt.seed})
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			props := stim.Draw(newSurface(t), "surface").(map[string]any)
			if props["seed"] != tt.want {
				t.Errorf("seed = %v, want %s", props["seed"], tt.want)
			}
		})
	}

	// The same seed must give the same cloud whether it came from the file or
	// from a stored result.
	a, _ := DefaultRegistry().Build("dots", map[string]any{"seed": uint64(9007199254740993)})
	b, _ := DefaultRegistry().Build("dots", map[string]any{"seed": "9007199254740993"})
	ca, cb := newSurface(t), newSurface(t)
	a.Draw(ca, "surface")
	b.Draw(cb, "surface")
	cmdsA, _ := ReadCommands(ca, "surface")
	cmdsB, _ := ReadCommands(cb, "surface")
	if diff := cmp.Diff(cmdsA, cmdsB); diff != "" {
		t.Errorf("commands differ for the same seed:\n%s", diff)
	}
}

func TestDotsRejectsInexactSeeds(t *testing.T) {
	for _, seed := range []any{9007199254740992.0, 1.5, -1, "abc", true} {
		if _, err := DefaultRegistry().Build("dots", map[string]any{"seed": seed}); !errors.Is(err, ErrInvalidParams) {
			t.Errorf("seed %v: error = %v, want ErrInvalidParams", seed, err)
		}
	}
}

func TestTextRequiresText(t *testing.T) {
	_, err := DefaultRegistry().Build("text", map[string]any{"font_size": 12})
	if !errors.Is(err, ErrInvalidParams) {
		t.Errorf("err = %v, want ErrInvalidParams", err)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		stim   string
		params map[string]any
		want   error
	}{
		{"unknown", "gabor", nil, ErrUnknownStimulus},
		{"wrong type", "circle", map[string]any{"radius": "big"}, ErrInvalidParams},
		{"non-positive radius", "circle", map[string]any{"radius": 0}, ErrInvalidParams},
		{"fractional count", "dots", map[string]any{"n": 2.5}, ErrInvalidParams},
		{"inverted range", "dots", map[string]any{"n": 10, "n_max": 5}, ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DefaultRegistry().Build(tt.stim, tt.params)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := DefaultRegistry()
	if err := r.Register("blank", newBlank); !errors.Is(err, ErrDuplicateStimulus) {
		t.Errorf("err = %v, want ErrDuplicateStimulus", err)
	}
	want := []string{"blank", "circle", "dots", "fixation", "text"}
	if diff := cmp.Diff(want, r.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestDrawWithoutSurfaceReturnsNil(t *testing.T) {
	stim, err := DefaultRegistry().Build("circle", nil)
	if err != nil {
		t.Fatal(err)
	}
	if props := stim.Draw(dom.NewContainer("empty"), "missing"); props != nil {
		t.Errorf("props = %v, want nil", props)
	}
}
