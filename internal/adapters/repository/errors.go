package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidDataset = errors.New("invalid dataset")
	ErrEmptyDSN       = errors.New("database url must not be empty")
)
