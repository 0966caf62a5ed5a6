package wizard

import (
	"errors"
	"fmt"

	"bizreg/internal/draft/models"
	dErrors "bizreg/pkg/domain-errors"
)

var (
	// ErrSessionClosed is returned by mutating calls after SaveAndExit.
	ErrSessionClosed = errors.New("wizard session is closed")
	// ErrTerminalStep is returned when advancing from the review step.
	ErrTerminalStep = errors.New("review is the last step; hand off to payment")
)

// GateError reports the unmet condition that kept the wizard on Step.
type GateError struct {
	Step models.Step
	Err  error
}

func (e *GateError) Error() string {
	return fmt.Sprintf("%s step: %s", e.Step, e.Err)
}

func (e *GateError) Unwrap() error {
	return e.Err
}

// Reason returns the user-facing description of the unmet condition.
func (e *GateError) Reason() string {
	if de, ok := dErrors.As(e.Err); ok {
		return de.Message
	}
	return e.Err.Error()
}
