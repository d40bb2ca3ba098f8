// Package worker runs the durable task loop: it subscribes to the pipeline
// topics and re-enters the command handlers for the next stage. Handler
// failures are retried with exponential backoff; errors that retrying cannot
// fix are logged and acknowledged.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vidscribe/vidscribe/internal/config"
	"github.com/vidscribe/vidscribe/internal/domain"
	"github.com/vidscribe/vidscribe/internal/events"
	"github.com/vidscribe/vidscribe/internal/ids"
	"github.com/vidscribe/vidscribe/internal/logging"
	appmetrics "github.com/vidscribe/vidscribe/internal/metrics"
	"github.com/vidscribe/vidscribe/internal/notify"
	"github.com/vidscribe/vidscribe/internal/pipeline"
	"github.com/vidscribe/vidscribe/internal/provider"
	"github.com/vidscribe/vidscribe/internal/repository"
	"github.com/vidscribe/vidscribe/internal/transport"
)

// Deps carries the worker's collaborators.
type Deps struct {
	Config         *config.Config
	Logger         logging.ServiceLogger
	Transport      transport.Transport
	Pipeline       *pipeline.Service
	Notifier       notify.Notifier
	Videos         repository.Videos
	Transcriptions repository.Transcriptions
	Summaries      repository.Summaries
	// Prometheus is optional; when set the router publishes handler metrics
	// on its registry.
	Prometheus *appmetrics.Prometheus
}

// Worker owns the message router.
type Worker struct {
	deps   Deps
	router *message.Router
}

// New builds the router, its middleware chain and the stage handlers.
func New(deps Deps) (*Worker, error) {
	router, err := message.NewRouter(message.RouterConfig{}, logging.NewWatermillAdapter(deps.Logger))
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	w := &Worker{deps: deps, router: router}

	router.AddMiddleware(
		correlationIDMiddleware(),
		logMessagesMiddleware(deps.Logger),
		tracerMiddleware(),
		w.exhaustionMiddleware(),
		retryMiddleware(deps.Config),
		middleware.Recoverer,
	)

	if deps.Prometheus != nil {
		builder := metrics.NewPrometheusMetricsBuilder(
			deps.Prometheus.Registry(),
			"vidscribe",
			deps.Config.Transport.System,
		)
		builder.AddPrometheusRouterMetrics(router)
	}

	w.addHandlers()
	return w, nil
}

// Run blocks until the context is cancelled or the router fails.
func (w *Worker) Run(ctx context.Context) error {
	return w.router.Run(ctx)
}

// Running closes when the router has started all handlers.
func (w *Worker) Running() <-chan struct{} {
	return w.router.Running()
}

// Close stops the router.
func (w *Worker) Close() error {
	return w.router.Close()
}

func (w *Worker) addHandlers() {
	w.addHandler("transcribe_on_upload", events.NameVideoUploaded, func(ctx context.Context, event events.Event) error {
		uploaded := event.(*events.VideoUploaded)
		_, err := w.deps.Pipeline.ProcessTranscription(ctx, pipeline.ProcessTranscriptionCommand{
			VideoID: uploaded.VideoID,
		})
		return err
	})

	w.addHandler("transcribe_on_request", events.NameTranscriptionRequested, func(ctx context.Context, event events.Event) error {
		requested := event.(*events.TranscriptionRequested)
		_, err := w.deps.Pipeline.ProcessTranscription(ctx, pipeline.ProcessTranscriptionCommand{
			VideoID:  requested.VideoID,
			Provider: requested.Provider,
		})
		return err
	})

	w.addHandler("summarize_on_transcription", events.NameTranscriptionCompleted, func(ctx context.Context, event events.Event) error {
		completed := event.(*events.TranscriptionCompleted)
		_, err := w.deps.Pipeline.ProcessSummary(ctx, pipeline.ProcessSummaryCommand{
			TranscriptionID: completed.TranscriptionID,
		})
		return err
	})

	w.addHandler("summarize_on_request", events.NameSummarizationRequested, func(ctx context.Context, event events.Event) error {
		requested := event.(*events.SummarizationRequested)
		_, err := w.deps.Pipeline.ProcessSummary(ctx, pipeline.ProcessSummaryCommand{
			TranscriptionID: requested.TranscriptionID,
			Provider:        requested.Provider,
		})
		return err
	})

	w.addHandler("notify_on_summary", events.NameSummarizationCompleted, func(ctx context.Context, event events.Event) error {
		completed := event.(*events.SummarizationCompleted)
		return w.notifyCompleted(ctx, completed)
	})

	w.addHandler("notify_on_transcription_failure", events.NameTranscriptionFailed, func(ctx context.Context, event events.Event) error {
		failed := event.(*events.TranscriptionFailed)
		return w.notifyFailed(ctx, failed.VideoID, failed.Error)
	})

	w.addHandler("notify_on_summarization_failure", events.NameSummarizationFailed, func(ctx context.Context, event events.Event) error {
		failed := event.(*events.SummarizationFailed)
		videoID := ""
		if tr, err := w.deps.Transcriptions.FindByID(ctx, failed.TranscriptionID); err == nil && tr != nil {
			videoID = tr.VideoID
		}
		return w.notifyFailed(ctx, videoID, failed.Error)
	})
}

// eventHandler processes one decoded event.
type eventHandler func(ctx context.Context, event events.Event) error

func (w *Worker) addHandler(name, topic string, handle eventHandler) {
	w.router.AddNoPublisherHandler(name, topic, w.deps.Transport.Subscriber, func(msg *message.Message) error {
		event, err := events.Unmarshal(topic, msg.Payload)
		if err != nil {
			return err
		}
		return handle(msg.Context(), event)
	})
}

func (w *Worker) notifyCompleted(ctx context.Context, completed *events.SummarizationCompleted) error {
	summary, err := w.deps.Summaries.FindByID(ctx, completed.SummaryID)
	if err != nil {
		return fmt.Errorf("load summary %s: %w", completed.SummaryID, err)
	}
	if summary == nil {
		return &pipeline.NotFoundError{Kind: "summary", ID: completed.SummaryID}
	}

	userID := ""
	if video, err := w.deps.Videos.FindByID(ctx, summary.VideoID); err == nil && video != nil {
		userID = video.UserID
	}

	return w.deps.Notifier.Notify(ctx, notify.Notification{
		VideoID:   summary.VideoID,
		UserID:    userID,
		SummaryID: summary.ID,
		Outcome:   "completed",
		At:        time.Now().UTC(),
	})
}

func (w *Worker) notifyFailed(ctx context.Context, videoID, detail string) error {
	userID := ""
	if video, err := w.deps.Videos.FindByID(ctx, videoID); err == nil && video != nil {
		userID = video.UserID
	}

	return w.deps.Notifier.Notify(ctx, notify.Notification{
		VideoID: videoID,
		UserID:  userID,
		Outcome: "failed",
		Detail:  detail,
		At:      time.Now().UTC(),
	})
}

// nonRetryable reports whether redelivering the message cannot change the
// outcome: missing entities, illegal transitions, misconfigured providers,
// undecodable payloads and duplicate in-flight stages.
func nonRetryable(err error) bool {
	var notFound *pipeline.NotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	var illegal *domain.IllegalTransitionError
	if errors.As(err, &illegal) {
		return true
	}
	var unknown *provider.UnknownProviderError
	if errors.As(err, &unknown) {
		return true
	}
	var serialization *events.SerializationError
	if errors.As(err, &serialization) {
		return true
	}
	return errors.Is(err, pipeline.ErrStageInFlight) || errors.Is(err, events.ErrUnknownEvent)
}

func retryMiddleware(cfg *config.Config) message.HandlerMiddleware {
	r := cfg.Resilience
	maxRetries := r.RetryMaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	initial := r.RetryInitialInterval
	if initial <= 0 {
		initial = time.Second
	}
	maxInterval := r.RetryMaxInterval
	if maxInterval <= 0 {
		maxInterval = 16 * time.Second
	}

	return middleware.Retry{
		MaxRetries:      maxRetries,
		InitialInterval: initial,
		MaxInterval:     maxInterval,
		Multiplier:      2,
		ShouldRetry: func(params middleware.RetryParams) bool {
			return !nonRetryable(params.Err)
		},
	}.Middleware
}

// exhaustionMiddleware acknowledges messages whose handler error survived the
// retry policy. The failure is already recorded on the entity; redelivery
// would only repeat it.
func (w *Worker) exhaustionMiddleware() message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			produced, err := h(msg)
			if err != nil {
				w.deps.Logger.Error("handler failed, giving up on message", err, logging.LogFields{
					"message_uuid": msg.UUID,
					"retryable":    !nonRetryable(err),
				})
				return nil, nil
			}
			return produced, nil
		}
	}
}

func correlationIDMiddleware() message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			if _, ok := msg.Metadata["correlation_id"]; !ok {
				msg.Metadata["correlation_id"] = ids.NewMessageID()
			}
			return h(msg)
		}
	}
}

func logMessagesMiddleware(logger logging.ServiceLogger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			logger.Trace("processing message", logging.LogFields{
				"message_uuid": msg.UUID,
				"metadata":     msg.Metadata,
			})
			return h(msg)
		}
	}
}

func tracerMiddleware() message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			tracer := otel.Tracer("vidscribe-worker")
			ctx, span := tracer.Start(msg.Context(), "ProcessMessage")
			defer span.End()
			msg.SetContext(ctx)

			span.SetAttributes(
				attribute.String("message.uuid", msg.UUID),
				attribute.String("message.correlation_id", msg.Metadata["correlation_id"]),
			)
			return h(msg)
		}
	}
}
