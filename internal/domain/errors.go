package domain

import "errors"

// Sentinel errors shared across packages. Wrap them with fmt.Errorf("%w").
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrAlreadyResolved = errors.New("alert already resolved")
)
