// Package events defines the closed set of domain events that coordinate the
// pipeline stages. Events are immutable value records: every field is a
// primitive so the payload can cross a process boundary as JSON. The event
// name doubles as the durable transport topic.
package events

// Event is implemented by every domain event.
type Event interface {
	// EventName returns the stable wire name of the event. It is used as the
	// pub/sub topic and must never change once published.
	EventName() string
}

// Wire names for every event in the system.
const (
	NameVideoUploaded          = "video_uploaded"
	NameTranscriptionRequested = "transcription_requested"
	NameTranscriptionStarted   = "transcription_started"
	NameTranscriptionCompleted = "transcription_completed"
	NameTranscriptionFailed    = "transcription_failed"
	NameSummarizationRequested = "summarization_requested"
	NameSummarizationProgress  = "summarization_progress"
	NameSummarizationCompleted = "summarization_completed"
	NameSummarizationFailed    = "summarization_failed"
)

// VideoUploaded is published when a video has been stored successfully.
type VideoUploaded struct {
	VideoID string `json:"video_id"`
	UserID  string `json:"user_id"`
}

func (VideoUploaded) EventName() string { return NameVideoUploaded }

// TranscriptionRequested is published when a transcription is explicitly
// requested for a video.
type TranscriptionRequested struct {
	VideoID  string `json:"video_id"`
	Provider string `json:"provider"`
}

func (TranscriptionRequested) EventName() string { return NameTranscriptionRequested }

// TranscriptionStarted marks the start of a transcription attempt.
type TranscriptionStarted struct {
	VideoID string `json:"video_id"`
}

func (TranscriptionStarted) EventName() string { return NameTranscriptionStarted }

// TranscriptionCompleted is published when a transcription artifact reached
// COMPLETED, including re-emissions for already completed artifacts.
type TranscriptionCompleted struct {
	VideoID         string `json:"video_id"`
	TranscriptionID string `json:"transcription_id"`
}

func (TranscriptionCompleted) EventName() string { return NameTranscriptionCompleted }

// TranscriptionFailed carries the truncated failure reason.
type TranscriptionFailed struct {
	VideoID string `json:"video_id"`
	Error   string `json:"error"`
}

func (TranscriptionFailed) EventName() string { return NameTranscriptionFailed }

// SummarizationRequested is published when a user requests a new summary.
type SummarizationRequested struct {
	TranscriptionID string `json:"transcription_id"`
	Provider        string `json:"provider"`
}

func (SummarizationRequested) EventName() string { return NameSummarizationRequested }

// SummarizationProgress reports the progress of a summarization task.
// EstimatedTotalSeconds is only present on early progress reports.
type SummarizationProgress struct {
	TranscriptionID       string   `json:"transcription_id"`
	Progress              int      `json:"progress"`
	Stage                 string   `json:"stage"`
	EstimatedTotalSeconds *float64 `json:"estimated_total_seconds,omitempty"`
}

func (SummarizationProgress) EventName() string { return NameSummarizationProgress }

// SummarizationCompleted is published when a summary artifact reached
// COMPLETED. The notification stage subscribes to it.
type SummarizationCompleted struct {
	TranscriptionID string `json:"transcription_id"`
	SummaryID       string `json:"summary_id"`
}

func (SummarizationCompleted) EventName() string { return NameSummarizationCompleted }

// SummarizationFailed carries the truncated failure reason.
type SummarizationFailed struct {
	TranscriptionID string `json:"transcription_id"`
	Error           string `json:"error"`
}

func (SummarizationFailed) EventName() string { return NameSummarizationFailed }
