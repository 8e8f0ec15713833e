package relay

import "fmt"

// ValidationError marks an inbound event with malformed or missing fields.
// The event is dropped with no broadcast; the reason is echoed to the
// sender only.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// PersistenceError marks a store failure. It is logged and never suppresses
// live delivery: the system favors availability of real-time delivery over
// durability.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
