package batch

import "errors"

var (
	ErrNotFound      = errors.New("batch not found")
	ErrEmptyName     = errors.New("batch name is required")
	ErrInvalidTarget = errors.New("target temperature out of range")
)
