package activitypub

import (
	"errors"
	"fmt"
)

// ErrDuplicateActivity signals that an activity id was already logged.
// The duplicate delivery is answered with success and no mutation.
var ErrDuplicateActivity = errors.New("activity already processed")

// VerificationError is a terminal rejection: the activity was malformed,
// mis-addressed or policy-disallowed. It is never retried and no mutation
// happens.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed: %s", e.Reason)
}

func verificationErrorf(format string, args ...interface{}) error {
	return &VerificationError{Reason: fmt.Sprintf(format, args...)}
}

// ResolutionError means the target actor or object could not be found or
// fetched. Terminal for the activity, but does not poison the inbox.
type ResolutionError struct {
	Target string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("could not resolve %s", e.Target)
	}
	return fmt.Sprintf("could not resolve %s: %v", e.Target, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// HandlerError means the domain mutation failed after verification passed.
// The activity-log row stays, so a redelivery of the same id is treated as
// a duplicate rather than reprocessed.
type HandlerError struct {
	ActivityType string
	Err          error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for %s failed: %v", e.ActivityType, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// DeliveryError is a per-target outbound failure. It is logged and does
// not block delivery to the remaining inboxes.
type DeliveryError struct {
	InboxURI string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.InboxURI, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsVerificationError reports whether err is a terminal verification
// rejection.
func IsVerificationError(err error) bool {
	var verr *VerificationError
	return errors.As(err, &verr)
}
