package pipeline

import (
	"errors"
	"fmt"
)

// maxErrorMessageLength bounds the failure reason persisted on entities so a
// pathological provider error cannot grow storage without limit.
const maxErrorMessageLength = 500

// ErrStageInFlight is returned when a stage is requested while a previous
// invocation for the same parent is still PROCESSING. It is never retried;
// the in-flight run will finish on its own.
var ErrStageInFlight = errors.New("vidscribe: stage already in progress")

// NotFoundError indicates a referenced entity does not exist. It fails fast
// and is never retried.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("vidscribe: %s %q not found", e.Kind, e.ID)
}

// ProviderError wraps a failed external provider call. It is recorded on the
// entity, re-raised and eligible for task-level retry.
type ProviderError struct {
	Stage    string
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("vidscribe: %s provider %q failed: %v", e.Stage, e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// truncateError bounds a failure reason before persisting it.
func truncateError(msg string) string {
	if len(msg) <= maxErrorMessageLength {
		return msg
	}
	return msg[:maxErrorMessageLength]
}
