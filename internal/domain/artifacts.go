package domain

import "time"

// ArtifactStatus is the lifecycle state of a derived artifact, independent of
// the owning video's status.
type ArtifactStatus string

const (
	ArtifactPending    ArtifactStatus = "PENDING"
	ArtifactProcessing ArtifactStatus = "PROCESSING"
	ArtifactCompleted  ArtifactStatus = "COMPLETED"
	ArtifactFailed     ArtifactStatus = "FAILED"
)

// Transcription is the text produced from a video's audio track.
type Transcription struct {
	ID           string
	VideoID      string
	Provider     string
	Text         string
	Status       ArtifactStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewTranscription creates a transcription record for a stage that is about
// to run.
func NewTranscription(id, videoID, provider string, now time.Time) *Transcription {
	return &Transcription{
		ID:        id,
		VideoID:   videoID,
		Provider:  provider,
		Status:    ArtifactProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkCompleted records the produced text.
func (t *Transcription) MarkCompleted(text string, now time.Time) {
	t.Text = text
	t.Status = ArtifactCompleted
	t.ErrorMessage = ""
	t.UpdatedAt = now
}

// MarkFailed records the failure reason.
func (t *Transcription) MarkFailed(reason string, now time.Time) {
	t.Status = ArtifactFailed
	t.ErrorMessage = reason
	t.UpdatedAt = now
}

// Summary is the condensed text derived from a transcription.
type Summary struct {
	ID              string
	VideoID         string
	TranscriptionID string
	Provider        string
	Text            string
	Status          ArtifactStatus
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewSummary creates a summary record for a stage that is about to run.
func NewSummary(id, videoID, transcriptionID, provider string, now time.Time) *Summary {
	return &Summary{
		ID:              id,
		VideoID:         videoID,
		TranscriptionID: transcriptionID,
		Provider:        provider,
		Status:          ArtifactProcessing,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// MarkCompleted records the produced summary text.
func (s *Summary) MarkCompleted(text string, now time.Time) {
	s.Text = text
	s.Status = ArtifactCompleted
	s.ErrorMessage = ""
	s.UpdatedAt = now
}

// MarkFailed records the failure reason.
func (s *Summary) MarkFailed(reason string, now time.Time) {
	s.Status = ArtifactFailed
	s.ErrorMessage = reason
	s.UpdatedAt = now
}
