// Package summarize defines the text summarization port for the summary
// stage. Backends in subpackages call the OpenAI chat completions API or the
// Hugging Face hosted inference API.
package summarize

import (
	"context"

	"github.com/vidscribe/vidscribe/internal/provider"
)

// Summarizer condenses transcript text.
type Summarizer interface {
	// ProviderName identifies the backend, e.g. "openai".
	ProviderName() string

	// Summarize returns a condensed version of the text.
	Summarize(ctx context.Context, text string) (string, error)
}

// Registry is a provider registry for summarizer backends.
type Registry = provider.Registry[Summarizer]

// NewRegistry creates an empty summarizer registry.
func NewRegistry() *Registry {
	return provider.NewRegistry[Summarizer]()
}
