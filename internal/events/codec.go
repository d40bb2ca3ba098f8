package events

import (
	"errors"
	"fmt"

	"github.com/vidscribe/vidscribe/internal/jsoncodec"
)

// ErrUnknownEvent is returned when a wire name has no registered prototype.
var ErrUnknownEvent = errors.New("vidscribe: unknown event name")

// SerializationError wraps a payload that could not be encoded or decoded.
// It signals a programming error and is never retried.
type SerializationError struct {
	EventName string
	Err       error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("vidscribe: event %q not serializable: %v", e.EventName, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// prototypes maps wire names to fresh zero-value events for decoding. The set
// is closed: adding an event means adding it here.
var prototypes = map[string]func() Event{
	NameVideoUploaded:          func() Event { return &VideoUploaded{} },
	NameTranscriptionRequested: func() Event { return &TranscriptionRequested{} },
	NameTranscriptionStarted:   func() Event { return &TranscriptionStarted{} },
	NameTranscriptionCompleted: func() Event { return &TranscriptionCompleted{} },
	NameTranscriptionFailed:    func() Event { return &TranscriptionFailed{} },
	NameSummarizationRequested: func() Event { return &SummarizationRequested{} },
	NameSummarizationProgress:  func() Event { return &SummarizationProgress{} },
	NameSummarizationCompleted: func() Event { return &SummarizationCompleted{} },
	NameSummarizationFailed:    func() Event { return &SummarizationFailed{} },
}

// Marshal encodes an event payload for the durable transport.
func Marshal(event Event) ([]byte, error) {
	payload, err := jsoncodec.Marshal(event)
	if err != nil {
		return nil, &SerializationError{EventName: event.EventName(), Err: err}
	}
	return payload, nil
}

// Unmarshal decodes a payload received on the topic named name. The returned
// event is a pointer to the concrete type.
func Unmarshal(name string, payload []byte) (Event, error) {
	prototype, ok := prototypes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}

	event := prototype()
	if err := jsoncodec.Unmarshal(payload, event); err != nil {
		return nil, &SerializationError{EventName: name, Err: err}
	}
	return event, nil
}

// Names returns every registered wire name. Used by the listener to subscribe
// to the union of topics.
func Names() []string {
	names := make([]string, 0, len(prototypes))
	for name := range prototypes {
		names = append(names, name)
	}
	return names
}
