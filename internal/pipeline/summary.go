package pipeline

import (
	"context"
	"fmt"

	"github.com/vidscribe/vidscribe/internal/domain"
	"github.com/vidscribe/vidscribe/internal/events"
	"github.com/vidscribe/vidscribe/internal/logging"
	"github.com/vidscribe/vidscribe/internal/metrics"
	"github.com/vidscribe/vidscribe/internal/resilience"
)

// ProcessSummaryCommand runs the summarization stage for a transcription.
type ProcessSummaryCommand struct {
	TranscriptionID string
	Provider        string
}

// Progress percentages reported while a summary is being produced.
const (
	progressStarted   = 25
	progressFinishing = 75
)

// mediaSeconds approximates the media length from the transcript, roughly one
// second per hundred characters. It feeds the processing-time estimate when
// no history is available yet.
func mediaSeconds(text string) float64 {
	return float64(len(text)) / 100
}

// ProcessSummary summarizes a completed transcription. A completed summary
// for the transcription is returned unchanged with its completion event
// re-emitted; a PROCESSING one rejects the duplicate invocation.
func (s *Service) ProcessSummary(ctx context.Context, cmd ProcessSummaryCommand) (*domain.Summary, error) {
	existing, err := s.deps.Summaries.FindByTranscriptionID(ctx, cmd.TranscriptionID)
	if err != nil {
		return nil, fmt.Errorf("look up summary for transcription %s: %w", cmd.TranscriptionID, err)
	}
	if existing != nil {
		switch existing.Status {
		case domain.ArtifactCompleted:
			if err := s.deps.Bus.Publish(ctx, events.SummarizationCompleted{
				TranscriptionID: cmd.TranscriptionID,
				SummaryID:       existing.ID,
			}); err != nil {
				return nil, err
			}
			s.deps.Logger.Debug("summary already completed, re-emitted", logging.LogFields{
				"transcription_id": cmd.TranscriptionID,
				"summary_id":       existing.ID,
			})
			return existing, nil
		case domain.ArtifactProcessing:
			return nil, ErrStageInFlight
		}
	}

	transcription, err := s.deps.Transcriptions.FindByID(ctx, cmd.TranscriptionID)
	if err != nil {
		return nil, fmt.Errorf("load transcription %s: %w", cmd.TranscriptionID, err)
	}
	if transcription == nil {
		return nil, &NotFoundError{Kind: "transcription", ID: cmd.TranscriptionID}
	}

	providerName := cmd.Provider
	if providerName == "" {
		providerName = s.deps.Config.Providers.Summary
	}

	// Claim the stage before the provider call so a racing duplicate sees
	// PROCESSING and backs off.
	summary := domain.NewSummary(s.newID(), transcription.VideoID, transcription.ID, providerName, s.now())
	if existing != nil && existing.Status == domain.ArtifactFailed {
		// Reuse the failed row so retries do not pile up artifacts.
		summary = existing
		summary.Provider = providerName
		summary.Status = domain.ArtifactProcessing
		summary.ErrorMessage = ""
		summary.UpdatedAt = s.now()
	}
	if err := s.deps.Summaries.Save(ctx, summary); err != nil {
		return nil, fmt.Errorf("persist summary claim: %w", err)
	}

	estimate := s.deps.Estimator.EstimateProcessingTime(ctx, mediaSeconds(transcription.Text)).TotalSeconds
	s.publishProgress(ctx, cmd.TranscriptionID, progressStarted, "summarizing", &estimate)

	started := s.now()
	text, err := s.summarizeText(ctx, transcription.Text, providerName)
	if err != nil {
		return nil, s.failSummary(ctx, summary, providerName, err)
	}

	s.publishProgress(ctx, cmd.TranscriptionID, progressFinishing, "persisting", nil)

	summary.MarkCompleted(text, s.now())
	if err := s.deps.Summaries.Save(ctx, summary); err != nil {
		return nil, fmt.Errorf("persist summary: %w", err)
	}

	if err := s.deps.Bus.Publish(ctx, events.SummarizationCompleted{
		TranscriptionID: transcription.ID,
		SummaryID:       summary.ID,
	}); err != nil {
		return nil, err
	}

	s.deps.Metrics.RecordSummarization(providerName, metrics.OutcomeSuccess, s.now().Sub(started))
	s.deps.Logger.Info("summarization completed", logging.LogFields{
		"transcription_id": transcription.ID,
		"summary_id":       summary.ID,
		"provider":         providerName,
	})
	return summary, nil
}

func (s *Service) summarizeText(ctx context.Context, text, providerName string) (string, error) {
	summarizer, err := s.deps.Summarizers.Create(providerName, s.deps.Config)
	if err != nil {
		return "", err
	}

	breaker := s.deps.Breakers.Get(resilience.Key(StageSummarization, providerName))

	var result string
	err = breaker.Do(ctx, func(ctx context.Context) error {
		var callErr error
		result, callErr = summarizer.Summarize(ctx, text)
		return callErr
	})
	if err != nil {
		return "", &ProviderError{Stage: StageSummarization, Provider: providerName, Err: err}
	}
	return result, nil
}

func (s *Service) publishProgress(ctx context.Context, transcriptionID string, progress int, stage string, estimate *float64) {
	err := s.deps.Bus.Publish(ctx, events.SummarizationProgress{
		TranscriptionID:       transcriptionID,
		Progress:              progress,
		Stage:                 stage,
		EstimatedTotalSeconds: estimate,
	})
	if err != nil {
		// Progress is advisory; losing an update must not fail the stage.
		s.deps.Logger.Error("failed to publish summarization progress", err, logging.LogFields{
			"transcription_id": transcriptionID,
			"progress":         progress,
		})
	}
}

func (s *Service) failSummary(ctx context.Context, summary *domain.Summary, providerName string, cause error) error {
	reason := truncateError(cause.Error())

	summary.MarkFailed(reason, s.now())
	if err := s.deps.Summaries.Save(ctx, summary); err != nil {
		s.deps.Logger.Error("failed to persist failed summary", err, logging.LogFields{
			"transcription_id": summary.TranscriptionID,
		})
	}

	if err := s.deps.Bus.Publish(ctx, events.SummarizationFailed{
		TranscriptionID: summary.TranscriptionID,
		Error:           reason,
	}); err != nil {
		s.deps.Logger.Error("failed to publish summarization_failed", err, logging.LogFields{
			"transcription_id": summary.TranscriptionID,
		})
	}

	s.deps.Metrics.RecordSummarization(providerName, metrics.OutcomeFailure, 0)
	return cause
}
