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

// ProcessTranscriptionCommand runs the transcription stage for a video.
type ProcessTranscriptionCommand struct {
	VideoID  string
	Provider string
	Language string
}

// ProcessTranscription transcribes the video's media. A completed
// transcription for the video is returned unchanged and its completion event
// re-emitted, so a duplicate delivery can never trigger a second provider
// call.
func (s *Service) ProcessTranscription(ctx context.Context, cmd ProcessTranscriptionCommand) (*domain.Transcription, error) {
	existing, err := s.deps.Transcriptions.FindByVideoID(ctx, cmd.VideoID)
	if err != nil {
		return nil, fmt.Errorf("look up transcription for video %s: %w", cmd.VideoID, err)
	}
	if existing != nil && existing.Status == domain.ArtifactCompleted {
		s.realignVideoCompleted(ctx, cmd.VideoID)
		if err := s.deps.Bus.Publish(ctx, events.TranscriptionCompleted{
			VideoID:         cmd.VideoID,
			TranscriptionID: existing.ID,
		}); err != nil {
			return nil, err
		}
		s.deps.Logger.Debug("transcription already completed, re-emitted", logging.LogFields{
			"video_id":         cmd.VideoID,
			"transcription_id": existing.ID,
		})
		return existing, nil
	}

	video, err := s.deps.Videos.FindByID(ctx, cmd.VideoID)
	if err != nil {
		return nil, fmt.Errorf("load video %s: %w", cmd.VideoID, err)
	}
	if video == nil {
		return nil, &NotFoundError{Kind: "video", ID: cmd.VideoID}
	}

	// Begin from PROCESSING is illegal, which suppresses a concurrent
	// duplicate invocation for the same video. The conditional write below
	// makes the claim hold even when two invocations interleave between the
	// load and the save: only one write finds the prior status still stored.
	previous := video.Status
	if err := video.Begin(s.now()); err != nil {
		return nil, err
	}
	claimed, err := s.deps.Videos.SaveExpecting(ctx, video, previous)
	if err != nil {
		return nil, fmt.Errorf("persist video %s: %w", cmd.VideoID, err)
	}
	if !claimed {
		return nil, &domain.IllegalTransitionError{
			Entity: "video",
			From:   domain.StatusProcessing,
			To:     domain.StatusProcessing,
		}
	}

	if err := s.deps.Bus.Publish(ctx, events.TranscriptionStarted{VideoID: cmd.VideoID}); err != nil {
		return nil, err
	}

	providerName := cmd.Provider
	if providerName == "" {
		providerName = s.deps.Config.Providers.Speech
	}
	language := cmd.Language
	if language == "" {
		language = s.deps.Config.Providers.Language
	}

	// One transcription row per video: a retry after failure resets the
	// existing row instead of piling up artifacts. The PROCESSING claim is
	// persisted before the provider call.
	transcription := existing
	if transcription == nil {
		transcription = domain.NewTranscription(s.newID(), video.ID, providerName, s.now())
	} else {
		transcription.Provider = providerName
		transcription.Status = domain.ArtifactProcessing
		transcription.ErrorMessage = ""
		transcription.UpdatedAt = s.now()
	}
	if err := s.deps.Transcriptions.Save(ctx, transcription); err != nil {
		return nil, fmt.Errorf("persist transcription claim: %w", err)
	}

	started := s.now()
	text, err := s.transcribe(ctx, video, providerName, language)
	if err != nil {
		return nil, s.failTranscription(ctx, video, transcription, providerName, err)
	}

	transcription.MarkCompleted(text, s.now())
	if err := s.deps.Transcriptions.Save(ctx, transcription); err != nil {
		return nil, fmt.Errorf("persist transcription: %w", err)
	}

	if err := video.Complete(s.now()); err != nil {
		return nil, err
	}
	if err := s.deps.Videos.Save(ctx, video); err != nil {
		return nil, fmt.Errorf("persist video %s: %w", cmd.VideoID, err)
	}

	if err := s.deps.Bus.Publish(ctx, events.TranscriptionCompleted{
		VideoID:         video.ID,
		TranscriptionID: transcription.ID,
	}); err != nil {
		return nil, err
	}

	s.deps.Metrics.RecordTranscription(providerName, metrics.OutcomeSuccess, s.now().Sub(started))
	s.deps.Logger.Info("transcription completed", logging.LogFields{
		"video_id":         video.ID,
		"transcription_id": transcription.ID,
		"provider":         providerName,
	})
	return transcription, nil
}

// realignVideoCompleted repairs a video left in PROCESSING by a crash between
// artifact completion and the video transition. Best effort: a video that is
// not mid-processing is left alone.
func (s *Service) realignVideoCompleted(ctx context.Context, videoID string) {
	video, err := s.deps.Videos.FindByID(ctx, videoID)
	if err != nil || video == nil || video.Status == domain.StatusCompleted {
		return
	}
	if err := video.Complete(s.now()); err != nil {
		return
	}
	if err := s.deps.Videos.Save(ctx, video); err != nil {
		s.deps.Logger.Error("repair video status", err, logging.LogFields{"video_id": videoID})
	}
}

// transcribe downloads the media and runs the recognizer through the
// stage breaker.
func (s *Service) transcribe(ctx context.Context, video *domain.Video, providerName, language string) (string, error) {
	recognizer, err := s.deps.Recognizers.Create(providerName, s.deps.Config)
	if err != nil {
		return "", err
	}

	storageProvider := video.StorageProvider
	if storageProvider == "" {
		storageProvider = s.deps.Config.Providers.Storage
	}
	store, err := s.deps.Storages.Create(storageProvider, s.deps.Config)
	if err != nil {
		return "", err
	}

	media, err := store.Download(ctx, video.StoragePath)
	if err != nil {
		return "", fmt.Errorf("download media for video %s: %w", video.ID, err)
	}

	breaker := s.deps.Breakers.Get(resilience.Key(StageTranscription, providerName))

	var text string
	err = breaker.Do(ctx, func(ctx context.Context) error {
		var callErr error
		text, callErr = recognizer.Transcribe(ctx, media, language)
		return callErr
	})
	if err != nil {
		return "", &ProviderError{Stage: StageTranscription, Provider: providerName, Err: err}
	}
	return text, nil
}

// failTranscription records the failure on both the artifact and the video,
// publishes the failed event and returns the original error for the task
// runner's retry policy.
func (s *Service) failTranscription(ctx context.Context, video *domain.Video, transcription *domain.Transcription, providerName string, cause error) error {
	reason := truncateError(cause.Error())

	transcription.MarkFailed(reason, s.now())
	if err := s.deps.Transcriptions.Save(ctx, transcription); err != nil {
		s.deps.Logger.Error("failed to persist failed transcription", err, logging.LogFields{"video_id": video.ID})
	}

	if err := video.Fail(reason, s.now()); err == nil {
		if saveErr := s.deps.Videos.Save(ctx, video); saveErr != nil {
			s.deps.Logger.Error("failed to persist failed video", saveErr, logging.LogFields{"video_id": video.ID})
		}
	}

	if err := s.deps.Bus.Publish(ctx, events.TranscriptionFailed{VideoID: video.ID, Error: reason}); err != nil {
		s.deps.Logger.Error("failed to publish transcription_failed", err, logging.LogFields{"video_id": video.ID})
	}

	s.deps.Metrics.RecordTranscription(providerName, metrics.OutcomeFailure, 0)
	return cause
}
