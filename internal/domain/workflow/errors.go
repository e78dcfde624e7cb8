package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when no transition exists for a trigger
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned for an unknown status value
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when every guard for a trigger rejects it
	ErrGuardFailed = errors.New("guard condition failed")
)
