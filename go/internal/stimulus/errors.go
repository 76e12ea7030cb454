package stimulus

import "errors"

var (
	ErrUnknownStimulus   = errors.New("unknown stimulus")
	ErrDuplicateStimulus = errors.New("stimulus already registered")
	ErrInvalidParams     = errors.New("invalid stimulus parameters")
	ErrNoSurface         = errors.New("drawing surface not found")
)
