package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrPermission means the actor lacks the role or ownership required.
	ErrPermission = errors.New("permission denied")
	// ErrDuplicateApplication is returned when the (listing, script) pair
	// already has an application.
	ErrDuplicateApplication = errors.New("application already exists for this listing and script")
	// ErrInvalidTransition is returned when the current status does not
	// allow the requested action.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrPriceUnknown blocks purchase of a script without a price.
	ErrPriceUnknown = errors.New("script has no price")
	// ErrNotFound is returned by Store implementations for missing rows.
	ErrNotFound = errors.New("not found")
	// ErrStaleStatus is returned by Store.UpdateApplicationStatus when the
	// row no longer has the expected status.
	ErrStaleStatus = errors.New("application status changed concurrently")
)

// ValidationError reports malformed input caught before any store call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PartialFailureError is returned when the first write of a two-step
// transition succeeded and the follow-up failed.  Only Step needs to be
// retried; repeating the whole action is safe as well because both
// follow-ups are idempotent.
type PartialFailureError struct {
	Op            Action
	Step          string
	ApplicationID uint64
	Err           error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s recorded for application %d but %s failed: %v", e.Op, e.ApplicationID, e.Step, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }
