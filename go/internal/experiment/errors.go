package experiment

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported experiment file format")
	ErrInvalidExperiment = errors.New("invalid experiment")
)
