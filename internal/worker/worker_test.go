package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidscribe/vidscribe/internal/analytics"
	"github.com/vidscribe/vidscribe/internal/bus"
	"github.com/vidscribe/vidscribe/internal/config"
	"github.com/vidscribe/vidscribe/internal/domain"
	"github.com/vidscribe/vidscribe/internal/events"
	"github.com/vidscribe/vidscribe/internal/logging"
	"github.com/vidscribe/vidscribe/internal/notify"
	"github.com/vidscribe/vidscribe/internal/pipeline"
	"github.com/vidscribe/vidscribe/internal/provider"
	"github.com/vidscribe/vidscribe/internal/repository/memory"
	"github.com/vidscribe/vidscribe/internal/resilience"
	"github.com/vidscribe/vidscribe/internal/speech"
	"github.com/vidscribe/vidscribe/internal/storage"
	"github.com/vidscribe/vidscribe/internal/storage/local"
	"github.com/vidscribe/vidscribe/internal/summarize"
	"github.com/vidscribe/vidscribe/internal/transport"
)

// flakyRecognizer fails a fixed number of times before succeeding.
type flakyRecognizer struct {
	failures *atomic.Int64
	calls    *atomic.Int64
	text     string
}

func (f flakyRecognizer) ProviderName() string { return "stub" }

func (f flakyRecognizer) Transcribe(context.Context, []byte, string) (string, error) {
	call := f.calls.Add(1)
	if call <= f.failures.Load() {
		return "", errors.New("transient backend error")
	}
	return f.text, nil
}

type stubSummarizer struct {
	calls *atomic.Int64
}

func (s stubSummarizer) ProviderName() string { return "stub" }

func (s stubSummarizer) Summarize(context.Context, string) (string, error) {
	s.calls.Add(1)
	return "short summary", nil
}

// notifyRecorder captures delivered notifications.
type notifyRecorder struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *notifyRecorder) Notify(_ context.Context, notification notify.Notification) error {
	n.mu.Lock()
	n.sent = append(n.sent, notification)
	n.mu.Unlock()
	return nil
}

func (n *notifyRecorder) withOutcome(outcome string) []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Notification
	for _, sent := range n.sent {
		if sent.Outcome == outcome {
			out = append(out, sent)
		}
	}
	return out
}

type fixture struct {
	service  *pipeline.Service
	store    *memory.Store
	notifier *notifyRecorder

	recognizerFailures *atomic.Int64
	recognizerCalls    *atomic.Int64
	summarizerCalls    *atomic.Int64
}

func newFixture(t *testing.T, registerSpeech bool) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Providers.Storage = "local"
	cfg.Providers.Speech = "stub"
	cfg.Providers.Summary = "stub"
	cfg.Providers.LocalStorageDir = t.TempDir()
	cfg.Resilience.RetryInitialInterval = time.Millisecond
	cfg.Resilience.RetryMaxInterval = 2 * time.Millisecond

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, logging.NewWatermillAdapter(logging.Nop()))
	tr := transport.Transport{Publisher: pubSub, Subscriber: pubSub}
	eventBus := bus.New(tr, logging.Nop())

	f := &fixture{
		store:              memory.NewStore(),
		notifier:           &notifyRecorder{},
		recognizerFailures: &atomic.Int64{},
		recognizerCalls:    &atomic.Int64{},
		summarizerCalls:    &atomic.Int64{},
	}

	storages := storage.NewRegistry()
	local.Register(storages)

	recognizers := speech.NewRegistry()
	if registerSpeech {
		recognizers.Register("stub", func(*config.Config) (speech.Recognizer, error) {
			return flakyRecognizer{
				failures: f.recognizerFailures,
				calls:    f.recognizerCalls,
				text:     "hello world",
			}, nil
		})
	}

	summarizers := summarize.NewRegistry()
	summarizers.Register("stub", func(*config.Config) (summarize.Summarizer, error) {
		return stubSummarizer{calls: f.summarizerCalls}, nil
	})

	f.service = pipeline.NewService(pipeline.Deps{
		Config:         cfg,
		Logger:         logging.Nop(),
		Bus:            eventBus,
		Videos:         f.store.Videos(),
		Transcriptions: f.store.Transcriptions(),
		Summaries:      f.store.Summaries(),
		Storages:       storages,
		Recognizers:    recognizers,
		Summarizers:    summarizers,
		Breakers:       resilience.NewRegistry(logging.Nop(), resilience.WithFailureThreshold(100)),
		Estimator:      analytics.NewEstimator(f.store.Analytics()),
	})

	w, err := New(Deps{
		Config:         cfg,
		Logger:         logging.Nop(),
		Transport:      tr,
		Pipeline:       f.service,
		Notifier:       f.notifier,
		Videos:         f.store.Videos(),
		Transcriptions: f.store.Transcriptions(),
		Summaries:      f.store.Summaries(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	select {
	case <-w.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	t.Cleanup(func() {
		cancel()
		<-done
		_ = eventBus.Close()
	})

	return f
}

func (f *fixture) upload(t *testing.T) *domain.Video {
	t.Helper()
	video, err := f.service.UploadVideo(context.Background(), pipeline.UploadCommand{
		UserID:   "u1",
		File:     []byte("media bytes"),
		Filename: "talk.mp4",
	})
	require.NoError(t, err)
	return video
}

func TestUploadDrivesPipelineToCompletedNotification(t *testing.T) {
	f := newFixture(t, true)

	video := f.upload(t)

	assert.Eventually(t, func() bool {
		return len(f.notifier.withOutcome("completed")) >= 1
	}, 5*time.Second, 10*time.Millisecond, "expected a completed notification")

	sent := f.notifier.withOutcome("completed")[0]
	assert.Equal(t, video.ID, sent.VideoID)
	assert.Equal(t, "u1", sent.UserID)
	assert.NotEmpty(t, sent.SummaryID)

	stored, err := f.store.Videos().FindByID(context.Background(), video.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusCompleted, stored.Status)

	summary, err := f.store.Summaries().FindByID(context.Background(), sent.SummaryID)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, domain.ArtifactCompleted, summary.Status)
	assert.Equal(t, "short summary", summary.Text)
}

func TestTransientProviderFailuresAreRetried(t *testing.T) {
	f := newFixture(t, true)
	f.recognizerFailures.Store(2)

	f.upload(t)

	assert.Eventually(t, func() bool {
		return len(f.notifier.withOutcome("completed")) >= 1
	}, 5*time.Second, 10*time.Millisecond, "expected completion after retries")

	assert.GreaterOrEqual(t, f.recognizerCalls.Load(), int64(3))
}

func TestMisconfiguredProviderFailsWithoutRetry(t *testing.T) {
	f := newFixture(t, false)

	video := f.upload(t)

	assert.Eventually(t, func() bool {
		return len(f.notifier.withOutcome("failed")) >= 1
	}, 5*time.Second, 10*time.Millisecond, "expected a failure notification")

	sent := f.notifier.withOutcome("failed")[0]
	assert.Equal(t, video.ID, sent.VideoID)
	assert.Contains(t, sent.Detail, "unknown provider")

	stored, err := f.store.Videos().FindByID(context.Background(), video.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusFailed, stored.Status)

	// Misconfiguration cannot be fixed by redelivery.
	assert.Zero(t, f.recognizerCalls.Load())
}

func TestNonRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"missing entity", &pipeline.NotFoundError{Kind: "video", ID: "v1"}, true},
		{"illegal transition", &domain.IllegalTransitionError{Entity: "video", From: domain.StatusProcessing, To: domain.StatusProcessing}, true},
		{"unknown provider", &provider.UnknownProviderError{Name: "nope"}, true},
		{"undecodable payload", &events.SerializationError{EventName: "video_uploaded", Err: errors.New("bad json")}, true},
		{"unknown event", events.ErrUnknownEvent, true},
		{"stage in flight", pipeline.ErrStageInFlight, true},
		{"wrapped stage in flight", &pipeline.ProviderError{Stage: "summarization", Provider: "stub", Err: pipeline.ErrStageInFlight}, true},
		{"provider failure", &pipeline.ProviderError{Stage: "transcription", Provider: "whisper", Err: errors.New("timeout")}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, nonRetryable(tc.err))
		})
	}
}
