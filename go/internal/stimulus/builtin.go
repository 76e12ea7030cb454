package stimulus

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/mcdev12/choicetrial/go/internal/dom"
	"github.com/mcdev12/choicetrial/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// CrossSize is the half-length of the fixation cross arms in px.
	CrossSize = 20

	defaultBackground = "#ffffff"
	defaultForeground = "#000000"
)

var builtins = map[string]Factory{
	"blank":    newBlank,
	"fixation": newFixation,
	"circle":   newCircle,
	"dots":     newDots,
	"text":     newText,
}

type colors struct {
	background string
	foreground string
}

func colorParams(params map[string]any) (colors, error) {
	bg, err := stringParam(params, "background", defaultBackground)
	if err != nil {
		return colors{}, err
	}
	fg, err := stringParam(params, "color", defaultForeground)
	if err != nil {
		return colors{}, err
	}
	return colors{background: bg, foreground: fg}, nil
}

// painter wraps a paint function into a DrawFunc that opens the surface,
// paints and flushes. Drawing failures are logged; the trial continues.
func painter(name string, paint func(cv *Canvas) any) models.DrawFunc {
	return func(c *dom.Container, surfaceID string) any {
		cv, err := OpenCanvas(c, surfaceID)
		if err != nil {
			log.Error().Err(err).Str("stimulus", name).Msg("failed to open canvas")
			return nil
		}
		props := paint(cv)
		if err := cv.Flush(); err != nil {
			log.Error().Err(err).Str("stimulus", name).Msg("failed to flush canvas")
		}
		return props
	}
}

func newBlank(params map[string]any) (models.DrawFunc, error) {
	col, err := colorParams(params)
	if err != nil {
		return nil, err
	}
	return painter("blank", func(cv *Canvas) any {
		cv.Clear(col.background)
		return nil
	}), nil
}

func newFixation(params map[string]any) (models.DrawFunc, error) {
	col, err := colorParams(params)
	if err != nil {
		return nil, err
	}
	size, err := floatParam(params, "size", CrossSize)
	if err != nil {
		return nil, err
	}
	return painter("fixation", func(cv *Canvas) any {
		mx, my := float64(cv.Width)/2, float64(cv.Height)/2
		cv.Clear(col.background)
		cv.Line(mx-size, my, mx+size, my, col.foreground)
		cv.Line(mx, my-size, mx, my+size, col.foreground)
		return nil
	}), nil
}

func newCircle(params map[string]any) (models.DrawFunc, error) {
	col, err := colorParams(params)
	if err != nil {
		return nil, err
	}
	radius, err := floatParam(params, "radius", 40)
	if err != nil {
		return nil, err
	}
	if radius <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", ErrInvalidParams)
	}
	return painter("circle", func(cv *Canvas) any {
		cv.Clear(col.background)
		cv.Circle(float64(cv.Width)/2, float64(cv.Height)/2, radius, col.foreground)
		return map[string]any{"radius": radius}
	}), nil
}

// newDots draws a random dot cloud. The dot count is drawn from [n, n_max]
// when n_max is set. Without a seed every trial draws a fresh one. The count
// and the seed are returned so the display can be reproduced; the seed is a
// decimal string because JSON consumers read numbers as float64.
func newDots(params map[string]any) (models.DrawFunc, error) {
	col, err := colorParams(params)
	if err != nil {
		return nil, err
	}
	n, err := intParam(params, "n", 20)
	if err != nil {
		return nil, err
	}
	nMax, err := intParam(params, "n_max", n)
	if err != nil {
		return nil, err
	}
	radius, err := floatParam(params, "radius", 3)
	if err != nil {
		return nil, err
	}
	if n < 0 || nMax < n {
		return nil, fmt.Errorf("%w: need 0 <= n <= n_max, got n=%d n_max=%d", ErrInvalidParams, n, nMax)
	}
	if radius <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", ErrInvalidParams)
	}
	fixed, fixedSeed, err := uint64Param(params, "seed")
	if err != nil {
		return nil, err
	}

	return painter("dots", func(cv *Canvas) any {
		seed := fixed
		if !fixedSeed {
			seed = rand.Uint64()
		}
		rng := rand.New(rand.NewPCG(seed, seed))

		count := n
		if nMax > n {
			count = n + rng.IntN(nMax-n+1)
		}

		w := math.Max(float64(cv.Width)-2*radius, 0)
		h := math.Max(float64(cv.Height)-2*radius, 0)
		cv.Clear(col.background)
		for i := 0; i < count; i++ {
			cv.Circle(radius+rng.Float64()*w, radius+rng.Float64()*h, radius, col.foreground)
		}
		return map[string]any{"n_dots": count, "seed": strconv.FormatUint(seed, 10)}
	}), nil
}

func newText(params map[string]any) (models.DrawFunc, error) {
	col, err := colorParams(params)
	if err != nil {
		return nil, err
	}
	text, err := stringParam(params, "text", "")
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidParams)
	}
	size, err := floatParam(params, "font_size", 32)
	if err != nil {
		return nil, err
	}
	return painter("text", func(cv *Canvas) any {
		cv.Clear(col.background)
		cv.Text(float64(cv.Width)/2, float64(cv.Height)/2, size, text, col.foreground)
		return nil
	}), nil
}
