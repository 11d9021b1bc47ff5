package model

import "errors"

// Sentinel errors for entity validation.
var (
	ErrInvalidMaxScore    = errors.New("max score must be a finite number greater than zero")
	ErrInvalidCoefficient = errors.New("coefficient must be a finite number greater than zero")
	ErrMissingID          = errors.New("missing identifier")
)
