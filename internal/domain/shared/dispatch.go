package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SubscriberFailure records one subscriber rejecting one event
type SubscriberFailure struct {
	EventID    uuid.UUID
	EventType  string
	Subscriber string
	Err        error
}

func (f SubscriberFailure) Error() string {
	return fmt.Sprintf("subscriber %s failed on %s (%s): %v", f.Subscriber, f.EventType, f.EventID, f.Err)
}

// DispatchError aggregates post-commit delivery problems. The data change it
// accompanies is already durable.
type DispatchError struct {
	Failures []SubscriberFailure
	// Undispatched counts events never offered to subscribers, e.g. after cancellation
	Undispatched int
	// Cause is set when dispatch stopped early
	Cause error
}

func (e *DispatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "event dispatch degraded: %d subscriber failure(s)", len(e.Failures))
	if e.Undispatched > 0 {
		fmt.Fprintf(&b, ", %d event(s) undispatched", e.Undispatched)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	for _, f := range e.Failures {
		b.WriteString("; ")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap exposes the cause and each subscriber error to errors.Is / errors.As
func (e *DispatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Empty reports whether nothing went wrong
func (e *DispatchError) Empty() bool {
	return e == nil || (len(e.Failures) == 0 && e.Undispatched == 0 && e.Cause == nil)
}

// AsDispatchError normalizes any dispatcher error into a *DispatchError
func AsDispatchError(err error) *DispatchError {
	if err == nil {
		return nil
	}
	var de *DispatchError
	if errors.As(err, &de) {
		return de
	}
	return &DispatchError{Cause: err}
}
