package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps failures reading the .env file, the config file or
	// the environment.
	ErrLoadConfig = errors.New("load config failed")
)
