package dynamics

import "errors"

// Domain errors for dynamics evaluation and trajectory handling.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("dynamics: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("dynamics: dimension mismatch between vector and system")

	// ErrSingularMatrix indicates an inversion of an ill-conditioned matrix.
	ErrSingularMatrix = errors.New("dynamics: singular matrix")
)

// StepError wraps an error with the trajectory step where it occurred.
type StepError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return e.Wrapped.Error()
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
