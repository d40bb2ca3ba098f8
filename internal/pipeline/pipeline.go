// Package pipeline implements the command handlers that drive a video
// through its stages: upload, transcription and summarization. Every handler
// follows the same template: idempotency check, state transition, provider
// call behind a circuit breaker, persistence, follow-on event, metrics.
package pipeline

import (
	"context"
	"time"

	"github.com/vidscribe/vidscribe/internal/analytics"
	"github.com/vidscribe/vidscribe/internal/bus"
	"github.com/vidscribe/vidscribe/internal/config"
	"github.com/vidscribe/vidscribe/internal/events"
	"github.com/vidscribe/vidscribe/internal/ids"
	"github.com/vidscribe/vidscribe/internal/logging"
	"github.com/vidscribe/vidscribe/internal/metrics"
	"github.com/vidscribe/vidscribe/internal/repository"
	"github.com/vidscribe/vidscribe/internal/resilience"
	"github.com/vidscribe/vidscribe/internal/speech"
	"github.com/vidscribe/vidscribe/internal/storage"
	"github.com/vidscribe/vidscribe/internal/summarize"
)

// Stage names used in breaker keys and metrics labels.
const (
	StageTranscription = "transcription"
	StageSummarization = "summarization"
)

// Deps carries every collaborator a handler needs. All dependencies are
// explicit; handlers hold no global state.
type Deps struct {
	Config         *config.Config
	Logger         logging.ServiceLogger
	Bus            *bus.EventBus
	Videos         repository.Videos
	Transcriptions repository.Transcriptions
	Summaries      repository.Summaries
	Storages       *storage.Registry
	Recognizers    *speech.Registry
	Summarizers    *summarize.Registry
	Breakers       *resilience.Registry
	Metrics        metrics.Sink
	Estimator      *analytics.Estimator
}

// Service executes the pipeline commands.
type Service struct {
	deps Deps

	now   func() time.Time
	newID func() string
}

// NewService wires the handlers. Nil Metrics falls back to a no-op sink; a
// nil Estimator always produces the duration-based default estimate.
func NewService(deps Deps) *Service {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	return &Service{
		deps:  deps,
		now:   func() time.Time { return time.Now().UTC() },
		newID: ids.NewEntityID,
	}
}

// RequestTranscription publishes a transcription request without running the
// stage in-process; a subscribed worker picks it up.
func (s *Service) RequestTranscription(ctx context.Context, videoID, provider string) error {
	return s.deps.Bus.Publish(ctx, events.TranscriptionRequested{VideoID: videoID, Provider: provider})
}

// RequestSummarization publishes a summarization request without running the
// stage in-process; a subscribed worker picks it up.
func (s *Service) RequestSummarization(ctx context.Context, transcriptionID, provider string) error {
	return s.deps.Bus.Publish(ctx, events.SummarizationRequested{TranscriptionID: transcriptionID, Provider: provider})
}
