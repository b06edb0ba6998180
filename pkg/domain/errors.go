package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by start and by data-plane calls while the
	// run-state flag is false.
	ErrNotInitialized = errors.New("emulator not initialized")

	ErrAlreadyInitialized = errors.New("emulator already initialized")
	ErrAlreadyRunning     = errors.New("emulator already running")

	// ErrReleased is returned once the device has been torn down. A released
	// device cannot be initialized again.
	ErrReleased = errors.New("emulator released")

	ErrInitStatus   = errors.New("subsystem init returned failure status")
	ErrStepTimeout  = errors.New("subsystem step timed out")
	ErrStepPanicked = errors.New("subsystem step panicked")
	ErrCleanup      = errors.New("emulator cleanup failed")
	ErrPoolClosed   = errors.New("task pool closed")
)

// StepError records which subsystem step failed.
type StepError struct {
	Subsystem SubsystemKind
	Phase     Phase
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Subsystem, e.Phase, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// IsStateError reports whether err is a lifecycle precondition failure.
func IsStateError(err error) bool {
	return errors.Is(err, ErrNotInitialized) ||
		errors.Is(err, ErrAlreadyInitialized) ||
		errors.Is(err, ErrAlreadyRunning) ||
		errors.Is(err, ErrReleased)
}
