// Package memory provides in-memory repository implementations for tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vidscribe/vidscribe/internal/domain"
	"github.com/vidscribe/vidscribe/internal/repository"
)

// Store keeps all entities in process memory. Entities are copied on save
// and load so callers cannot mutate stored state through shared pointers.
type Store struct {
	mu             sync.RWMutex
	videos         map[string]domain.Video
	transcriptions map[string]domain.Transcription
	summaries      map[string]domain.Summary
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		videos:         make(map[string]domain.Video),
		transcriptions: make(map[string]domain.Transcription),
		summaries:      make(map[string]domain.Summary),
	}
}

func (s *Store) Videos() repository.Videos                 { return videoRepo{s} }
func (s *Store) Transcriptions() repository.Transcriptions { return transcriptionRepo{s} }
func (s *Store) Summaries() repository.Summaries           { return summaryRepo{s} }
func (s *Store) Analytics() repository.Analytics           { return analyticsRepo{s} }

func (s *Store) Close() error { return nil }

type videoRepo struct{ s *Store }

func (r videoRepo) Save(_ context.Context, video *domain.Video) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.videos[video.ID] = *video
	return nil
}

func (r videoRepo) SaveExpecting(_ context.Context, video *domain.Video, expected domain.Status) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.videos[video.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	r.s.videos[video.ID] = *video
	return true, nil
}

func (r videoRepo) FindByID(_ context.Context, id string) (*domain.Video, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	video, ok := r.s.videos[id]
	if !ok {
		return nil, nil
	}
	return domain.RestoreVideo(video.ID, video.UserID, video.Filename, video.StoragePath,
		video.StorageProvider, video.Status, video.ErrorMessage, video.CreatedAt, video.UpdatedAt)
}

type transcriptionRepo struct{ s *Store }

func (r transcriptionRepo) Save(_ context.Context, tr *domain.Transcription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.transcriptions[tr.ID] = *tr
	return nil
}

func (r transcriptionRepo) FindByID(_ context.Context, id string) (*domain.Transcription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tr, ok := r.s.transcriptions[id]
	if !ok {
		return nil, nil
	}
	return &tr, nil
}

func (r transcriptionRepo) FindByVideoID(_ context.Context, videoID string) (*domain.Transcription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return latestTranscription(r.s, videoID), nil
}

type summaryRepo struct{ s *Store }

func (r summaryRepo) Save(_ context.Context, sum *domain.Summary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.summaries[sum.ID] = *sum
	return nil
}

func (r summaryRepo) FindByID(_ context.Context, id string) (*domain.Summary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum, ok := r.s.summaries[id]
	if !ok {
		return nil, nil
	}
	return &sum, nil
}

type analyticsRepo struct{ s *Store }

func (r analyticsRepo) AverageProcessingTimes(_ context.Context) (repository.ProcessingStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var stats repository.ProcessingStats
	var trTotal, sumTotal time.Duration
	for id := range r.s.videos {
		video := r.s.videos[id]
		if video.Status != domain.StatusCompleted {
			continue
		}
		tr := latestTranscription(r.s, video.ID)
		if tr == nil || tr.Status != domain.ArtifactCompleted {
			continue
		}
		sum := latestSummary(r.s, tr.ID)
		if sum == nil || sum.Status != domain.ArtifactCompleted {
			continue
		}
		trTotal += tr.UpdatedAt.Sub(tr.CreatedAt)
		sumTotal += sum.UpdatedAt.Sub(sum.CreatedAt)
		stats.VideosAnalyzed++
	}
	if stats.VideosAnalyzed > 0 {
		stats.TranscriptionAvg = trTotal / time.Duration(stats.VideosAnalyzed)
		stats.SummarizationAvg = sumTotal / time.Duration(stats.VideosAnalyzed)
	}
	return stats, nil
}

func latestTranscription(s *Store, videoID string) *domain.Transcription {
	var latest *domain.Transcription
	for id := range s.transcriptions {
		tr := s.transcriptions[id]
		if tr.VideoID != videoID {
			continue
		}
		if latest == nil || tr.CreatedAt.After(latest.CreatedAt) {
			copied := tr
			latest = &copied
		}
	}
	return latest
}

func latestSummary(s *Store, transcriptionID string) *domain.Summary {
	var latest *domain.Summary
	for id := range s.summaries {
		sum := s.summaries[id]
		if sum.TranscriptionID != transcriptionID {
			continue
		}
		if latest == nil || sum.CreatedAt.After(latest.CreatedAt) {
			copied := sum
			latest = &copied
		}
	}
	return latest
}

func (r summaryRepo) FindByTranscriptionID(_ context.Context, transcriptionID string) (*domain.Summary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return latestSummary(r.s, transcriptionID), nil
}
