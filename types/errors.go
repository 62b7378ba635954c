package types

import "errors"

// exported errors
var (
	ErrInvalidFormat     = errors.New("invalid permission format")
	ErrAlreadyExists     = errors.New("already exists")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrHasDependents     = errors.New("has dependents")
	ErrUnsupportedChange = errors.New("unsupported change")
)
