package domain

import "errors"

var (
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidTitle      = errors.New("invalid title")
	ErrInvalidPhase      = errors.New("invalid phase")
	ErrInvalidVision     = errors.New("invalid project vision")
	ErrInvalidFilterMode = errors.New("invalid filter mode")
	ErrDuplicateID       = errors.New("duplicate feature id")
	ErrUnknownPhase      = errors.New("unknown phase")
	ErrPhaseExists       = errors.New("phase already exists")
	ErrPhaseNotEmpty     = errors.New("phase is not empty")
)
