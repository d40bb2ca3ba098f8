package pipeline

import (
	"context"
	"fmt"
	"path"

	"github.com/vidscribe/vidscribe/internal/domain"
	"github.com/vidscribe/vidscribe/internal/events"
	"github.com/vidscribe/vidscribe/internal/logging"
	"github.com/vidscribe/vidscribe/internal/metrics"
	"github.com/vidscribe/vidscribe/internal/resilience"
)

// UploadCommand stores a new video and kicks off the pipeline.
type UploadCommand struct {
	UserID   string
	File     []byte
	Filename string
	// StorageProvider overrides the configured default when set.
	StorageProvider string
}

// UploadVideo writes the blob, persists the video entity in UPLOADED state
// and publishes VideoUploaded. If persisting fails after the blob was
// written, the blob is deleted best-effort so storage does not leak.
func (s *Service) UploadVideo(ctx context.Context, cmd UploadCommand) (*domain.Video, error) {
	providerName := cmd.StorageProvider
	if providerName == "" {
		providerName = s.deps.Config.Providers.Storage
	}

	store, err := s.deps.Storages.Create(providerName, s.deps.Config)
	if err != nil {
		s.deps.Metrics.RecordUpload(metrics.OutcomeFailure)
		return nil, err
	}

	videoID := s.newID()
	storagePath := path.Join("videos", cmd.UserID, videoID, cmd.Filename)

	breaker := s.deps.Breakers.Get(resilience.Key("storage", providerName))
	err = breaker.Do(ctx, func(ctx context.Context) error {
		return store.Upload(ctx, storagePath, cmd.File)
	})
	if err != nil {
		s.deps.Metrics.RecordUpload(metrics.OutcomeFailure)
		return nil, fmt.Errorf("store video blob: %w", err)
	}

	video := domain.NewVideo(videoID, cmd.UserID, cmd.Filename, storagePath, providerName, s.now())
	if err := s.deps.Videos.Save(ctx, video); err != nil {
		if _, delErr := store.Delete(ctx, storagePath); delErr != nil {
			s.deps.Logger.Error("orphaned blob cleanup failed", delErr, logging.LogFields{
				"video_id": videoID,
				"path":     storagePath,
			})
		}
		s.deps.Metrics.RecordUpload(metrics.OutcomeFailure)
		return nil, fmt.Errorf("persist video: %w", err)
	}

	if err := s.deps.Bus.Publish(ctx, events.VideoUploaded{VideoID: videoID, UserID: cmd.UserID}); err != nil {
		s.deps.Metrics.RecordUpload(metrics.OutcomeFailure)
		return nil, err
	}

	s.deps.Metrics.RecordUpload(metrics.OutcomeSuccess)
	s.deps.Logger.Info("video uploaded", logging.LogFields{
		"video_id": videoID,
		"user_id":  cmd.UserID,
		"storage":  providerName,
	})
	return video, nil
}
