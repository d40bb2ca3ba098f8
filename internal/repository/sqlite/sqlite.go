// Package sqlite implements the repository ports on an embedded SQLite
// database. Timestamps are stored as RFC3339Nano text so rows stay readable
// with any sqlite client.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vidscribe/vidscribe/internal/domain"
	"github.com/vidscribe/vidscribe/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS videos (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    filename         TEXT NOT NULL,
    storage_path     TEXT NOT NULL,
    storage_provider TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL,
    updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transcriptions (
    id            TEXT PRIMARY KEY,
    video_id      TEXT NOT NULL,
    provider      TEXT NOT NULL,
    text          TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL,
    updated_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transcriptions_video_id ON transcriptions(video_id);

CREATE TABLE IF NOT EXISTS summaries (
    id               TEXT PRIMARY KEY,
    video_id         TEXT NOT NULL,
    transcription_id TEXT NOT NULL,
    provider         TEXT NOT NULL,
    text             TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL,
    error_message    TEXT NOT NULL DEFAULT '',
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_summaries_transcription_id ON summaries(transcription_id);
`

// Store is the SQLite-backed repository bundle.
type Store struct {
	db   *sql.DB
	path string

	videos         *videoRepo
	transcriptions *transcriptionRepo
	summaries      *summaryRepo
	analytics      *analyticsRepo
}

// Open connects to (or creates) the database at path and bootstraps the
// schema. The parent directory is created if missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	s := &Store{db: db, path: path}
	s.videos = &videoRepo{db: db}
	s.transcriptions = &transcriptionRepo{db: db}
	s.summaries = &summaryRepo{db: db}
	s.analytics = &analyticsRepo{db: db}
	return s, nil
}

func (s *Store) Videos() repository.Videos                 { return s.videos }
func (s *Store) Transcriptions() repository.Transcriptions { return s.transcriptions }
func (s *Store) Summaries() repository.Summaries           { return s.summaries }
func (s *Store) Analytics() repository.Analytics           { return s.analytics }

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", value, err)
	}
	return t, nil
}

type videoRepo struct {
	db *sql.DB
}

func (r *videoRepo) Save(ctx context.Context, video *domain.Video) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO videos (id, user_id, filename, storage_path, storage_provider, status, error_message, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status = excluded.status,
    error_message = excluded.error_message,
    storage_path = excluded.storage_path,
    storage_provider = excluded.storage_provider,
    updated_at = excluded.updated_at`,
		video.ID, video.UserID, video.Filename, video.StoragePath, video.StorageProvider,
		string(video.Status), video.ErrorMessage,
		formatTime(video.CreatedAt), formatTime(video.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save video %s: %w", video.ID, err)
	}
	return nil
}

// SaveExpecting writes the video only while the stored status still equals
// expected, so interleaved claims cannot both win.
func (r *videoRepo) SaveExpecting(ctx context.Context, video *domain.Video, expected domain.Status) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE videos SET
    status = ?,
    error_message = ?,
    storage_path = ?,
    storage_provider = ?,
    updated_at = ?
WHERE id = ? AND status = ?`,
		string(video.Status), video.ErrorMessage, video.StoragePath, video.StorageProvider,
		formatTime(video.UpdatedAt), video.ID, string(expected),
	)
	if err != nil {
		return false, fmt.Errorf("save video %s: %w", video.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save video %s: %w", video.ID, err)
	}
	return affected == 1, nil
}

func (r *videoRepo) FindByID(ctx context.Context, id string) (*domain.Video, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, filename, storage_path, storage_provider, status, error_message, created_at, updated_at
FROM videos WHERE id = ?`, id)

	var (
		vID, userID, filename, storagePath, storageProvider string
		status, errorMessage                                string
		createdAtRaw, updatedAtRaw                          string
	)
	err := row.Scan(&vID, &userID, &filename, &storagePath, &storageProvider, &status, &errorMessage, &createdAtRaw, &updatedAtRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find video %s: %w", id, err)
	}

	createdAt, err := parseTime(createdAtRaw)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(updatedAtRaw)
	if err != nil {
		return nil, err
	}

	return domain.RestoreVideo(vID, userID, filename, storagePath, storageProvider,
		domain.Status(status), errorMessage, createdAt, updatedAt)
}

type transcriptionRepo struct {
	db *sql.DB
}

func (r *transcriptionRepo) Save(ctx context.Context, tr *domain.Transcription) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO transcriptions (id, video_id, provider, text, status, error_message, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    text = excluded.text,
    status = excluded.status,
    error_message = excluded.error_message,
    updated_at = excluded.updated_at`,
		tr.ID, tr.VideoID, tr.Provider, tr.Text,
		string(tr.Status), tr.ErrorMessage,
		formatTime(tr.CreatedAt), formatTime(tr.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save transcription %s: %w", tr.ID, err)
	}
	return nil
}

func (r *transcriptionRepo) FindByID(ctx context.Context, id string) (*domain.Transcription, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *transcriptionRepo) FindByVideoID(ctx context.Context, videoID string) (*domain.Transcription, error) {
	return r.findOne(ctx, "video_id = ? ORDER BY created_at DESC LIMIT 1", videoID)
}

func (r *transcriptionRepo) findOne(ctx context.Context, where string, arg any) (*domain.Transcription, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, video_id, provider, text, status, error_message, created_at, updated_at
FROM transcriptions WHERE `+where, arg)

	var (
		tr                   domain.Transcription
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(&tr.ID, &tr.VideoID, &tr.Provider, &tr.Text, &status, &tr.ErrorMessage, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find transcription: %w", err)
	}

	tr.Status = domain.ArtifactStatus(status)
	if tr.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if tr.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &tr, nil
}

type summaryRepo struct {
	db *sql.DB
}

func (r *summaryRepo) Save(ctx context.Context, sum *domain.Summary) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO summaries (id, video_id, transcription_id, provider, text, status, error_message, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    text = excluded.text,
    status = excluded.status,
    error_message = excluded.error_message,
    updated_at = excluded.updated_at`,
		sum.ID, sum.VideoID, sum.TranscriptionID, sum.Provider, sum.Text,
		string(sum.Status), sum.ErrorMessage,
		formatTime(sum.CreatedAt), formatTime(sum.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save summary %s: %w", sum.ID, err)
	}
	return nil
}

func (r *summaryRepo) FindByID(ctx context.Context, id string) (*domain.Summary, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *summaryRepo) FindByTranscriptionID(ctx context.Context, transcriptionID string) (*domain.Summary, error) {
	return r.findOne(ctx, "transcription_id = ? ORDER BY created_at DESC LIMIT 1", transcriptionID)
}

type analyticsRepo struct {
	db *sql.DB
}

// AverageProcessingTimes averages, per stage, how long completed runs took
// from artifact creation to completion, over videos whose whole pipeline
// finished.
func (r *analyticsRepo) AverageProcessingTimes(ctx context.Context) (repository.ProcessingStats, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT
    COUNT(*),
    COALESCE(AVG((julianday(t.updated_at) - julianday(t.created_at)) * 86400.0), 0),
    COALESCE(AVG((julianday(s.updated_at) - julianday(s.created_at)) * 86400.0), 0)
FROM videos v
JOIN transcriptions t ON t.video_id = v.id
JOIN summaries s ON s.transcription_id = t.id
WHERE v.status = 'COMPLETED' AND t.status = 'COMPLETED' AND s.status = 'COMPLETED'`)

	var (
		analyzed      int
		trAvg, sumAvg float64
	)
	if err := row.Scan(&analyzed, &trAvg, &sumAvg); err != nil {
		return repository.ProcessingStats{}, fmt.Errorf("average processing times: %w", err)
	}
	return repository.ProcessingStats{
		TranscriptionAvg: time.Duration(trAvg * float64(time.Second)),
		SummarizationAvg: time.Duration(sumAvg * float64(time.Second)),
		VideosAnalyzed:   analyzed,
	}, nil
}

func (r *summaryRepo) findOne(ctx context.Context, where string, arg any) (*domain.Summary, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, video_id, transcription_id, provider, text, status, error_message, created_at, updated_at
FROM summaries WHERE `+where, arg)

	var (
		sum                  domain.Summary
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(&sum.ID, &sum.VideoID, &sum.TranscriptionID, &sum.Provider, &sum.Text, &status, &sum.ErrorMessage, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find summary: %w", err)
	}

	sum.Status = domain.ArtifactStatus(status)
	if sum.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sum.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &sum, nil
}
