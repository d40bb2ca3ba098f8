// Package analytics estimates pipeline processing time from the history of
// completed runs. Before any run has completed it falls back to a
// duration-based default.
package analytics

import (
	"context"

	"github.com/vidscribe/vidscribe/internal/repository"
)

// Confidence levels reported with an estimate.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Defaults used while no completed run has been recorded: transcription takes
// roughly as long as the media runs, summarization a fixed minute.
const (
	defaultTranscriptionFactor  = 1.0
	defaultSummarizationSeconds = 60.0
	highConfidenceRuns          = 10
)

// Estimate breaks the expected processing time down per stage.
type Estimate struct {
	TotalSeconds         float64
	TranscriptionSeconds float64
	SummarizationSeconds float64
	Confidence           string
}

// Estimator predicts processing time. A nil Estimator always yields the
// default estimate, so callers never need a nil check.
type Estimator struct {
	history repository.Analytics
}

// NewEstimator builds an estimator over recorded processing times. history
// may be nil.
func NewEstimator(history repository.Analytics) *Estimator {
	return &Estimator{history: history}
}

// EstimateProcessingTime predicts how long a full pipeline run takes for
// media of the given duration. Historical averages win over the duration
// heuristic as soon as one complete run exists; confidence grows with the
// number of runs analyzed.
func (e *Estimator) EstimateProcessingTime(ctx context.Context, mediaDurationSeconds float64) Estimate {
	if e == nil || e.history == nil {
		return defaultEstimate(mediaDurationSeconds)
	}

	stats, err := e.history.AverageProcessingTimes(ctx)
	if err != nil || stats.VideosAnalyzed == 0 {
		return defaultEstimate(mediaDurationSeconds)
	}

	est := Estimate{
		TranscriptionSeconds: stats.TranscriptionAvg.Seconds(),
		SummarizationSeconds: stats.SummarizationAvg.Seconds(),
		Confidence:           ConfidenceMedium,
	}
	if stats.VideosAnalyzed > highConfidenceRuns {
		est.Confidence = ConfidenceHigh
	}
	est.TotalSeconds = est.TranscriptionSeconds + est.SummarizationSeconds
	return est
}

func defaultEstimate(mediaDurationSeconds float64) Estimate {
	est := Estimate{
		TranscriptionSeconds: mediaDurationSeconds * defaultTranscriptionFactor,
		SummarizationSeconds: defaultSummarizationSeconds,
		Confidence:           ConfidenceLow,
	}
	est.TotalSeconds = est.TranscriptionSeconds + est.SummarizationSeconds
	return est
}
