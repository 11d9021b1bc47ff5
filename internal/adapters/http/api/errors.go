package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrNotFound      = errors.New("not found")
	ErrUnprocessable = errors.New("unprocessable")
	ErrInternal      = errors.New("internal error")
)

// OpError ties an error to the handler operation that produced it. Kind is
// one of the sentinels above and selects the HTTP status.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return e.Op
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *OpError) Unwrap() []error {
	var out []error
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of the given kind.
func NewKind(op string, kind error) error {
	return &OpError{Op: op, Kind: kind}
}

// WrapKind wraps err with a kind.
func WrapKind(op string, kind, err error) error {
	return &OpError{Op: op, Kind: kind, Err: err}
}

// Wrap wraps err as an internal error.
func Wrap(op string, err error) error {
	return &OpError{Op: op, Kind: ErrInternal, Err: err}
}

// message returns the text shown to clients: the cause without the op prefix.
func message(err error) string {
	var op *OpError
	if errors.As(err, &op) {
		if op.Err != nil {
			return op.Err.Error()
		}
		if op.Kind != nil {
			return op.Kind.Error()
		}
	}
	return err.Error()
}
