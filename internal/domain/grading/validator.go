package grading

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	defaultStep = 0.5
	stepEpsilon = 1e-9
)

// InputState classifies typed score input.
type InputState int

// Input states.
const (
	// InputUngraded is blank input: the row has no score yet.
	InputUngraded InputState = iota
	// InputInvalid is input that must not reach the matrix.
	InputInvalid
	// InputValid is a finite score within [0, max].
	InputValid
)

func (s InputState) String() string {
	switch s {
	case InputUngraded:
		return "ungraded"
	case InputInvalid:
		return "invalid"
	case InputValid:
		return "valid"
	}
	return fmt.Sprintf("InputState(%d)", int(s))
}

// ScoreInput is the result of parsing one typed value. Raw keeps the text as
// typed so it can be echoed back.
type ScoreInput struct {
	Raw     string
	State   InputState
	Value   float64
	Reason  string
	OffStep bool
}

// Valid reports whether the input carries a usable score.
func (in ScoreInput) Valid() bool { return in.State == InputValid }

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithStep sets the score granularity. Non-positive values disable the check.
func WithStep(step float64) ValidatorOption {
	return func(v *Validator) {
		v.step = step
	}
}

// WithStrictStep rejects values that are not a multiple of the step.
// Without it an off-step value is accepted and flagged with OffStep.
func WithStrictStep() ValidatorOption {
	return func(v *Validator) {
		v.strictStep = true
	}
}

// WithBlankAsZero restores the legacy policy of treating blank input as a
// score of 0 instead of "ungraded".
func WithBlankAsZero() ValidatorOption {
	return func(v *Validator) {
		v.blankAsZero = true
	}
}

// plain decimal numbers only; no exponents, hex or inf/nan spellings.
var numberPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// Validator parses score input bounded to [0, max].
type Validator struct {
	max         float64
	step        float64
	strictStep  bool
	blankAsZero bool
}

// NewValidator creates a validator for an evaluation with the given max score.
func NewValidator(maxScore float64, opts ...ValidatorOption) *Validator {
	v := &Validator{max: maxScore, step: defaultStep}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Max returns the upper bound.
func (v *Validator) Max() float64 { return v.max }

// Parse classifies raw. A comma is accepted as decimal separator.
func (v *Validator) Parse(raw string) ScoreInput {
	in := ScoreInput{Raw: raw}
	text := strings.TrimSpace(raw)

	if text == "" {
		if v.blankAsZero {
			in.State = InputValid
			return in
		}
		in.State = InputUngraded
		return in
	}

	if strings.Count(text, ",") == 1 && !strings.Contains(text, ".") {
		text = strings.Replace(text, ",", ".", 1)
	}
	if !numberPattern.MatchString(text) {
		return invalid(in, "not a number")
	}
	val, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return invalid(in, "not a finite number")
	}
	if !(v.max > 0) || math.IsInf(v.max, 0) {
		return invalid(in, "evaluation has no valid max score")
	}
	if val < 0 || val > v.max {
		return invalid(in, fmt.Sprintf("must be between 0 and %s", formatScore(v.max)))
	}
	if v.step > 0 && !onStep(val, v.step) {
		if v.strictStep {
			return invalid(in, fmt.Sprintf("must be a multiple of %s", formatScore(v.step)))
		}
		in.OffStep = true
	}

	in.State = InputValid
	in.Value = val
	return in
}

// Check reports whether score may enter the matrix.
func (v *Validator) Check(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > v.max {
		return fmt.Errorf("%w: %v not in [0, %s]", ErrScoreOutOfRange, score, formatScore(v.max))
	}
	if v.strictStep && v.step > 0 && !onStep(score, v.step) {
		return fmt.Errorf("%w: %v is not a multiple of %s", ErrScoreOutOfRange, score, formatScore(v.step))
	}
	return nil
}

func invalid(in ScoreInput, reason string) ScoreInput {
	in.State = InputInvalid
	in.Reason = reason
	return in
}

func onStep(val, step float64) bool {
	rem := math.Mod(val, step)
	return rem < stepEpsilon || step-rem < stepEpsilon
}

// formatScore renders 15 as "15" and 12.5 as "12.5".
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
