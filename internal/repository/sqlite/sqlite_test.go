package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidscribe/vidscribe/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "vidscribe.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestVideoRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)

	video := domain.NewVideo("vid-1", "user-1", "talk.mp4", "videos/user-1/vid-1/talk.mp4", "local", now)
	require.NoError(t, store.Videos().Save(ctx, video))

	got, err := store.Videos().FindByID(ctx, "vid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, video.UserID, got.UserID)
	assert.Equal(t, video.Filename, got.Filename)
	assert.Equal(t, domain.StatusUploaded, got.Status)
	assert.True(t, got.CreatedAt.Equal(now), "timestamps must survive the round trip")
}

func TestVideoSaveUpdatesExistingRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	video := domain.NewVideo("vid-1", "user-1", "talk.mp4", "path", "local", now)
	require.NoError(t, store.Videos().Save(ctx, video))

	require.NoError(t, video.Begin(now.Add(time.Second)))
	require.NoError(t, video.Fail("provider unreachable", now.Add(2*time.Second)))
	require.NoError(t, store.Videos().Save(ctx, video))

	got, err := store.Videos().FindByID(ctx, "vid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "provider unreachable", got.ErrorMessage)
}

func TestFindMissingReturnsNilNil(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	video, err := store.Videos().FindByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, video)

	tr, err := store.Transcriptions().FindByVideoID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, tr)

	sum, err := store.Summaries().FindByTranscriptionID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, sum)
}

func TestTranscriptionLookupByVideo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tr := domain.NewTranscription("tr-1", "vid-1", "whisper", now)
	tr.MarkCompleted("hello world", now.Add(time.Second))
	require.NoError(t, store.Transcriptions().Save(ctx, tr))

	got, err := store.Transcriptions().FindByVideoID(ctx, "vid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tr-1", got.ID)
	assert.Equal(t, "hello world", got.Text)
	assert.Equal(t, domain.ArtifactCompleted, got.Status)
}

func TestSummaryLookupByTranscription(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	sum := domain.NewSummary("sum-1", "vid-1", "tr-1", "openai", now)
	sum.MarkFailed("quota exceeded", now.Add(time.Second))
	require.NoError(t, store.Summaries().Save(ctx, sum))

	got, err := store.Summaries().FindByTranscriptionID(ctx, "tr-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sum-1", got.ID)
	assert.Equal(t, domain.ArtifactFailed, got.Status)
	assert.Equal(t, "quota exceeded", got.ErrorMessage)
}

func TestSaveExpectingRequiresStoredStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	video := domain.NewVideo("vid-1", "user-1", "talk.mp4", "path", "local", now)
	require.NoError(t, store.Videos().Save(ctx, video))

	claim := *video
	require.NoError(t, claim.Begin(now.Add(time.Second)))

	ok, err := store.Videos().SaveExpecting(ctx, &claim, domain.StatusUploaded)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second claim carries the stale UPLOADED expectation and must lose.
	rival := *video
	require.NoError(t, rival.Begin(now.Add(time.Second)))
	ok, err = store.Videos().SaveExpecting(ctx, &rival, domain.StatusUploaded)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Videos().FindByID(ctx, "vid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusProcessing, got.Status)
}

func TestFindByIDClearsStaleErrorMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Write a row whose error message contradicts its status; the load must
	// come back normalized.
	_, err := store.db.ExecContext(ctx, `
INSERT INTO videos (id, user_id, filename, storage_path, storage_provider, status, error_message, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"vid-1", "user-1", "talk.mp4", "path", "local",
		string(domain.StatusCompleted), "leftover failure",
		formatTime(now), formatTime(now),
	)
	require.NoError(t, err)

	got, err := store.Videos().FindByID(ctx, "vid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestFindByIDRejectsUnknownStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.db.ExecContext(ctx, `
INSERT INTO videos (id, user_id, filename, storage_path, storage_provider, status, error_message, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"vid-1", "user-1", "talk.mp4", "path", "local",
		"EXPLODED", "", formatTime(now), formatTime(now),
	)
	require.NoError(t, err)

	got, err := store.Videos().FindByID(ctx, "vid-1")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "unknown video status")
}

func TestAverageProcessingTimesCountsCompletedRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	stats, err := store.Analytics().AverageProcessingTimes(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.VideosAnalyzed)

	video := domain.NewVideo("vid-1", "user-1", "talk.mp4", "path", "local", base)
	require.NoError(t, video.Begin(base))
	require.NoError(t, video.Complete(base.Add(3*time.Minute)))
	require.NoError(t, store.Videos().Save(ctx, video))

	tr := domain.NewTranscription("tr-1", "vid-1", "whisper", base)
	tr.MarkCompleted("hello", base.Add(2*time.Minute))
	require.NoError(t, store.Transcriptions().Save(ctx, tr))

	sum := domain.NewSummary("sum-1", "vid-1", "tr-1", "openai", base.Add(2*time.Minute))
	sum.MarkCompleted("short", base.Add(3*time.Minute))
	require.NoError(t, store.Summaries().Save(ctx, sum))

	stats, err = store.Analytics().AverageProcessingTimes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.VideosAnalyzed)
	assert.InDelta(t, (2 * time.Minute).Seconds(), stats.TranscriptionAvg.Seconds(), 0.5)
	assert.InDelta(t, (time.Minute).Seconds(), stats.SummarizationAvg.Seconds(), 0.5)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "vidscribe.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}
