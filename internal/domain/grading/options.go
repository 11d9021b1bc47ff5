package grading

import (
	"time"

	"github.com/okian/gradebook/pkg/logger"
)

// Default timeouts for collaborator calls.
const (
	DefaultLoadTimeout = 10 * time.Second
	DefaultSaveTimeout = 30 * time.Second
)

// Option applies a configuration option to the Workflow.
type Option func(*Workflow)

// WithLoadTimeout bounds each load collaborator call.
func WithLoadTimeout(d time.Duration) Option {
	return func(w *Workflow) {
		if d > 0 {
			w.loadTimeout = d
		}
	}
}

// WithSaveTimeout bounds each save collaborator call.
func WithSaveTimeout(d time.Duration) Option {
	return func(w *Workflow) {
		if d > 0 {
			w.saveTimeout = d
		}
	}
}

// WithNotifier sets where success and error notifications go.
func WithNotifier(n Notifier) Option {
	return func(w *Workflow) {
		if n != nil {
			w.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.log = l
		}
	}
}

// WithValidatorOptions configures the score validator built for each sheet.
func WithValidatorOptions(opts ...ValidatorOption) Option {
	return func(w *Workflow) {
		w.validatorOpts = append(w.validatorOpts, opts...)
	}
}
