package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidDocument = errors.New("invalid document")
	ErrInvalidFormat   = errors.New("invalid export format")
	ErrNoBoard         = errors.New("no board loaded")
)
