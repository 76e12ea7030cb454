package choice

import "errors"

// ErrInvalidConfig is returned when a trial config cannot be rendered.
// It is always wrapped with a description of the offending field.
var ErrInvalidConfig = errors.New("invalid trial config")

// ErrAlreadyRendered is returned when Render is called on a widget twice.
var ErrAlreadyRendered = errors.New("widget already rendered")
