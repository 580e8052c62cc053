package detection

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSignal is returned for signal types the engine does not handle
	ErrUnknownSignal = errors.New("unknown signal type")

	// ErrNotFound is returned by repositories when a record does not exist
	ErrNotFound = errors.New("not found")
)

// ValidationError reports a malformed signal payload. Nothing has been
// mutated when it is returned.
type ValidationError struct {
	Signal SignalType
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Signal == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s signal: %s %s", e.Signal, e.Field, e.Reason)
}
