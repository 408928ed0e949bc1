package editor

import (
	"errors"
	"fmt"

	"github.com/dukex/area/pkg/schema"
	"github.com/go-playground/validator/v10"
)

// Precondition errors. They are raised before any backend call.
var (
	ErrNoArea                 = errors.New("the area must be created before its steps")
	ErrAreaExists             = errors.New("the area has already been created")
	ErrStepNotFound           = errors.New("step not found")
	ErrTriggerExists          = errors.New("an area has exactly one trigger")
	ErrLastTrigger            = errors.New("the trigger of an area cannot be removed")
	ErrNoTrigger              = errors.New("add the trigger before any action")
	ErrPreviousStepIncomplete = errors.New("validate the previous step before adding an action")
	ErrStepBusy               = errors.New("the step has an operation in progress")
	ErrOperationInFlight      = errors.New("wait for pending operations to finish")
	ErrNoConsentPending       = errors.New("no service is waiting for consent on this step")
	ErrServiceRequired        = errors.New("select a service first")
	ErrServiceNotConnected    = errors.New("the service of this step is not connected")
	ErrEventRequired          = errors.New("select a trigger or action type first")
	ErrInvalidValue           = errors.New("unsupported configuration value")
	ErrStepChanged            = errors.New("the step changed while the operation was running")
	ErrStepsNotValidated      = errors.New("every step must be validated before activation")
	ErrTriggerRequired        = errors.New("a validated trigger is required")
	ErrActionRequired         = errors.New("a validated action is required")
	ErrAuthorizationPending   = errors.New("an authorization is still pending")
	ErrInvalidIndex           = errors.New("invalid action position")
)

// ErrAuthorizationFailed is returned when the authorize endpoint neither
// grants access nor offers an authorization URL.
var ErrAuthorizationFailed = errors.New("authorization failed")

var localErrors = []error{
	ErrNoArea, ErrAreaExists, ErrStepNotFound, ErrTriggerExists, ErrLastTrigger,
	ErrNoTrigger, ErrPreviousStepIncomplete, ErrStepBusy, ErrOperationInFlight,
	ErrNoConsentPending, ErrServiceRequired, ErrServiceNotConnected, ErrEventRequired,
	ErrInvalidValue, ErrStepChanged, ErrStepsNotValidated, ErrTriggerRequired,
	ErrActionRequired, ErrAuthorizationPending, ErrInvalidIndex, schema.ErrInvalidConfig,
}

// Error wraps a failure with the operation and step it happened in.
type Error struct {
	Op     string
	StepID string
	Err    error
}

func (e *Error) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.StepID, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsLocal reports whether err was raised by a local precondition, without
// any backend round-trip.
func IsLocal(err error) bool {
	for _, local := range localErrors {
		if errors.Is(err, local) {
			return true
		}
	}

	var invalid validator.ValidationErrors

	return errors.As(err, &invalid)
}
