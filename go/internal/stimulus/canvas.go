package stimulus

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mcdev12/choicetrial/go/internal/dom"
	"github.com/mcdev12/choicetrial/go/internal/models"
	"golang.org/x/net/html"
)

// DrawAttr is the attribute the recorded commands are written to. The
// participant page replays it onto the canvas 2D context.
const DrawAttr = "data-draw"

// Command is one recorded 2D drawing operation.
type Command struct {
	Op    string    `json:"op"`
	Args  []float64 `json:"args,omitempty"`
	Text  string    `json:"text,omitempty"`
	Color string    `json:"color,omitempty"`
}

// Canvas records drawing operations for a canvas element in a container.
// Nothing is visible until Flush writes the commands to the element.
type Canvas struct {
	Width  int
	Height int

	container *dom.Container
	el        *html.Node
	cmds      []Command
}

// OpenCanvas looks up the drawing surface by id. Width and height are read
// from the element's attributes and fall back to the canvas defaults.
func OpenCanvas(c *dom.Container, surfaceID string) (*Canvas, error) {
	el := c.ElementByID(surfaceID)
	if el == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoSurface, surfaceID)
	}
	return &Canvas{
		Width:     intAttr(c, el, "width", models.DefaultCanvasWidth),
		Height:    intAttr(c, el, "height", models.DefaultCanvasHeight),
		container: c,
		el:        el,
	}, nil
}

func intAttr(c *dom.Container, el *html.Node, key string, def int) int {
	v, ok := c.Attr(el, key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// Clear fills the whole canvas with color.
func (cv *Canvas) Clear(color string) {
	cv.cmds = append(cv.cmds, Command{Op: "clear", Color: color})
}

// Rect fills a rectangle.
func (cv *Canvas) Rect(x, y, w, h float64, color string) {
	cv.cmds = append(cv.cmds, Command{Op: "rect", Args: []float64{x, y, w, h}, Color: color})
}

// Line strokes a line segment.
func (cv *Canvas) Line(x1, y1, x2, y2 float64, color string) {
	cv.cmds = append(cv.cmds, Command{Op: "line", Args: []float64{x1, y1, x2, y2}, Color: color})
}

// Circle fills a circle centred on (cx, cy).
func (cv *Canvas) Circle(cx, cy, r float64, color string) {
	cv.cmds = append(cv.cmds, Command{Op: "circle", Args: []float64{cx, cy, r}, Color: color})
}

// Text draws s centred on (x, y) with the given font size in px.
func (cv *Canvas) Text(x, y, size float64, s, color string) {
	cv.cmds = append(cv.cmds, Command{Op: "text", Args: []float64{x, y, size}, Text: s, Color: color})
}

// Commands returns the operations recorded so far.
func (cv *Canvas) Commands() []Command {
	out := make([]Command, len(cv.cmds))
	copy(out, cv.cmds)
	return out
}

// Flush writes the recorded operations to the canvas element.
func (cv *Canvas) Flush() error {
	data, err := json.Marshal(cv.cmds)
	if err != nil {
		return fmt.Errorf("failed to encode draw commands: %w", err)
	}
	cv.container.SetAttr(cv.el, DrawAttr, string(data))
	return nil
}

// ReadCommands decodes the operations last flushed to the surface.
func ReadCommands(c *dom.Container, surfaceID string) ([]Command, error) {
	el := c.ElementByID(surfaceID)
	if el == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoSurface, surfaceID)
	}
	v, ok := c.Attr(el, DrawAttr)
	if !ok {
		return nil, nil
	}
	var cmds []Command
	if err := json.Unmarshal([]byte(v), &cmds); err != nil {
		return nil, fmt.Errorf("failed to decode draw commands: %w", err)
	}
	return cmds, nil
}
