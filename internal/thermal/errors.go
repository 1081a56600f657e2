package thermal

import "errors"

var (
	ErrInsufficientData = errors.New("insufficient history to fit a model (need at least 3 samples)")
	ErrLengthMismatch   = errors.New("history series must all have the same length")
	ErrMutualExclusion  = errors.New("heater and cooler requested simultaneously")
)
