package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCountsOutcomes(t *testing.T) {
	p := NewPrometheus()

	p.RecordUpload(OutcomeSuccess)
	p.RecordUpload(OutcomeSuccess)
	p.RecordUpload(OutcomeFailure)

	assert.Equal(t, float64(2), testutil.ToFloat64(p.uploads.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.uploads.WithLabelValues("failure")))
}

func TestPrometheusRecordsProviderLabels(t *testing.T) {
	p := NewPrometheus()

	p.RecordTranscription("whisper", OutcomeSuccess, 3*time.Second)
	p.RecordTranscription("whisper", OutcomeFailure, 0)
	p.RecordSummarization("openai", OutcomeSuccess, time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(p.transcriptions.WithLabelValues("whisper", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.transcriptions.WithLabelValues("whisper", "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.summarizations.WithLabelValues("openai", "success")))

	count, err := testutil.GatherAndCount(p.Registry(),
		"vidscribe_transcription_duration_seconds",
		"vidscribe_summarization_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "only successful attempts observe latency")
}

func TestNopIsSafe(t *testing.T) {
	var sink Sink = Nop{}
	sink.RecordUpload(OutcomeSuccess)
	sink.RecordTranscription("whisper", OutcomeFailure, 0)
	sink.RecordSummarization("openai", OutcomeSuccess, time.Second)
}
