package services

import "errors"

// Failure classes surfaced by the commission and upgrade engine. Callers classify
// with errors.Is; the wrapped message carries the detail.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrConflict            = errors.New("conflict")
	ErrDataIntegrity       = errors.New("data integrity")
	ErrGenerationFailure   = errors.New("identifier generation failed")
	ErrDistributionFailure = errors.New("commission distribution failed")
	ErrInvalidArgument     = errors.New("invalid argument")
)
