// Package repository defines the persistence ports for pipeline entities.
// Implementations live in subpackages; the sqlite package is the production
// store and the memory package backs tests.
package repository

import (
	"context"
	"time"

	"github.com/vidscribe/vidscribe/internal/domain"
)

// Videos persists video entities. FindByID returns (nil, nil) when the
// video does not exist.
type Videos interface {
	Save(ctx context.Context, video *domain.Video) error

	// SaveExpecting persists the video only while the stored row still has
	// the expected status. It reports whether the write was applied, which
	// makes the PROCESSING claim atomic across interleaved invocations.
	SaveExpecting(ctx context.Context, video *domain.Video, expected domain.Status) (bool, error)

	FindByID(ctx context.Context, id string) (*domain.Video, error)
}

// Transcriptions persists transcription artifacts. Lookups return (nil, nil)
// when no row matches.
type Transcriptions interface {
	Save(ctx context.Context, transcription *domain.Transcription) error
	FindByID(ctx context.Context, id string) (*domain.Transcription, error)
	FindByVideoID(ctx context.Context, videoID string) (*domain.Transcription, error)
}

// Summaries persists summary artifacts. Lookups return (nil, nil) when no
// row matches.
type Summaries interface {
	Save(ctx context.Context, summary *domain.Summary) error
	FindByID(ctx context.Context, id string) (*domain.Summary, error)
	FindByTranscriptionID(ctx context.Context, transcriptionID string) (*domain.Summary, error)
}

// ProcessingStats aggregates how long completed pipeline runs took, measured
// per stage from the artifact's creation to its completion.
type ProcessingStats struct {
	TranscriptionAvg time.Duration
	SummarizationAvg time.Duration
	VideosAnalyzed   int
}

// Analytics reads aggregate statistics over fully completed videos.
type Analytics interface {
	AverageProcessingTimes(ctx context.Context) (ProcessingStats, error)
}

// Store bundles the repositories behind one connection.
type Store interface {
	Videos() Videos
	Transcriptions() Transcriptions
	Summaries() Summaries
	Analytics() Analytics
	Close() error
}
