// Package speech defines the speech-to-text port for the transcription
// stage. Backends live in subpackages: whisper shells out to a local
// whisper.cpp binary, fastwhisper talks to a faster-whisper HTTP service and
// huggingface calls the hosted inference API.
package speech

import (
	"context"

	"github.com/vidscribe/vidscribe/internal/provider"
)

// Recognizer converts raw media bytes into transcript text.
type Recognizer interface {
	// ProviderName identifies the backend, e.g. "whisper".
	ProviderName() string

	// Transcribe extracts the spoken text from the media blob. The language
	// hint may be empty, in which case the backend decides.
	Transcribe(ctx context.Context, media []byte, language string) (string, error)
}

// Registry is a provider registry for speech backends.
type Registry = provider.Registry[Recognizer]

// NewRegistry creates an empty speech registry.
func NewRegistry() *Registry {
	return provider.NewRegistry[Recognizer]()
}
