package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vidscribe/vidscribe/internal/analytics"
	"github.com/vidscribe/vidscribe/internal/bus"
	"github.com/vidscribe/vidscribe/internal/config"
	"github.com/vidscribe/vidscribe/internal/logging"
	"github.com/vidscribe/vidscribe/internal/metrics"
	"github.com/vidscribe/vidscribe/internal/notify"
	"github.com/vidscribe/vidscribe/internal/pipeline"
	"github.com/vidscribe/vidscribe/internal/repository/sqlite"
	"github.com/vidscribe/vidscribe/internal/resilience"
	"github.com/vidscribe/vidscribe/internal/speech"
	"github.com/vidscribe/vidscribe/internal/speech/fastwhisper"
	speechhf "github.com/vidscribe/vidscribe/internal/speech/huggingface"
	"github.com/vidscribe/vidscribe/internal/speech/whisper"
	"github.com/vidscribe/vidscribe/internal/storage"
	"github.com/vidscribe/vidscribe/internal/storage/local"
	"github.com/vidscribe/vidscribe/internal/storage/s3"
	"github.com/vidscribe/vidscribe/internal/summarize"
	summaryhf "github.com/vidscribe/vidscribe/internal/summarize/huggingface"
	"github.com/vidscribe/vidscribe/internal/summarize/openai"
	"github.com/vidscribe/vidscribe/internal/transport"
	"github.com/vidscribe/vidscribe/internal/transport/transports"
	"github.com/vidscribe/vidscribe/internal/worker"
)

func newWorkerCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the pipeline worker until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runWorker(cmd.Context(), cfg)
		},
	}
}

func runWorker(parent context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logging.NewSlogServiceLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	transportRegistry := transport.NewRegistry()
	transports.RegisterDefaults(transportRegistry)

	tr, err := transportRegistry.Build(ctx, cfg, logging.NewWatermillAdapter(logger))
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}

	caps := transportRegistry.Capabilities(cfg.Transport.System)
	logger.Info("transport selected", logging.LogFields{
		"system":  caps.Name,
		"durable": caps.Durable,
		"ack":     caps.SupportsAck,
		"nack":    caps.SupportsNack,
	})

	eventBus := bus.New(tr, logger)
	defer eventBus.Close()

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	storages := storage.NewRegistry()
	local.Register(storages)
	s3.Register(storages)

	recognizers := speech.NewRegistry()
	whisper.Register(recognizers)
	fastwhisper.Register(recognizers)
	speechhf.Register(recognizers)

	summarizers := summarize.NewRegistry()
	openai.Register(summarizers)
	summaryhf.Register(summarizers)

	breakers := resilience.NewRegistry(logger,
		resilience.WithFailureThreshold(cfg.Resilience.BreakerFailureThreshold),
		resilience.WithResetTimeout(cfg.Resilience.BreakerResetTimeout),
	)

	prom := metrics.NewPrometheus()
	if cfg.MetricsEnabled {
		stopMetrics := serveMetrics(cfg, prom, logger)
		defer stopMetrics()
	}

	notifier, err := notify.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("build notifier: %w", err)
	}

	service := pipeline.NewService(pipeline.Deps{
		Config:         cfg,
		Logger:         logger,
		Bus:            eventBus,
		Videos:         store.Videos(),
		Transcriptions: store.Transcriptions(),
		Summaries:      store.Summaries(),
		Storages:       storages,
		Recognizers:    recognizers,
		Summarizers:    summarizers,
		Breakers:       breakers,
		Metrics:        prom,
		Estimator:      analytics.NewEstimator(store.Analytics()),
	})

	w, err := worker.New(worker.Deps{
		Config:         cfg,
		Logger:         logger,
		Transport:      tr,
		Pipeline:       service,
		Notifier:       notifier,
		Videos:         store.Videos(),
		Transcriptions: store.Transcriptions(),
		Summaries:      store.Summaries(),
		Prometheus:     prom,
	})
	if err != nil {
		return fmt.Errorf("build worker: %w", err)
	}
	defer w.Close()

	logger.Info("worker starting", logging.LogFields{"database": cfg.SQLitePath})
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker: %w", err)
	}
	logger.Info("worker shut down", nil)
	return nil
}

func serveMetrics(cfg *config.Config, prom *metrics.Prometheus, logger logging.ServiceLogger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", err, logging.LogFields{"port": cfg.MetricsPort})
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
