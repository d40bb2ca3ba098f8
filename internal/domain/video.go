// Package domain holds the pipeline entities and their state machines. All
// transition logic is pure: entities never touch storage, transports or
// providers, which keeps the rules trivially testable.
package domain

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a video moving through the pipeline.
type Status string

const (
	StatusUploaded   Status = "UPLOADED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// IllegalTransitionError is returned when an entity is asked to move between
// states the lifecycle does not allow. Handlers treat it as non-retryable:
// redelivering the triggering message cannot make the transition legal.
type IllegalTransitionError struct {
	Entity string
	From   Status
	To     Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("vidscribe: illegal %s transition %s -> %s", e.Entity, e.From, e.To)
}

// transitions is the single source of truth for the video lifecycle.
// FAILED -> PROCESSING permits reprocessing after a failure.
var transitions = map[Status][]Status{
	StatusUploaded:   {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusProcessing},
	StatusCompleted:  {},
}

func canTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Video is the root entity of the pipeline. ErrorMessage is set only while
// the video is FAILED.
type Video struct {
	ID              string
	UserID          string
	Filename        string
	StoragePath     string
	StorageProvider string
	Status          Status
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewVideo creates a freshly uploaded video.
func NewVideo(id, userID, filename, storagePath, storageProvider string, now time.Time) *Video {
	return &Video{
		ID:              id,
		UserID:          userID,
		Filename:        filename,
		StoragePath:     storagePath,
		StorageProvider: storageProvider,
		Status:          StatusUploaded,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Begin moves the video into PROCESSING. Starting from FAILED clears the
// previous error message. Starting from PROCESSING is illegal, which is what
// suppresses duplicate stage invocations for the same video.
func (v *Video) Begin(now time.Time) error {
	return v.transition(StatusProcessing, "", now)
}

// Complete moves the video into COMPLETED.
func (v *Video) Complete(now time.Time) error {
	return v.transition(StatusCompleted, "", now)
}

// Fail moves the video into FAILED and records the reason.
func (v *Video) Fail(reason string, now time.Time) error {
	return v.transition(StatusFailed, reason, now)
}

// RestoreVideo rebuilds a persisted video, validating the stored status.
func RestoreVideo(id, userID, filename, storagePath, storageProvider string, status Status, errorMessage string, createdAt, updatedAt time.Time) (*Video, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("vidscribe: unknown video status %q", status)
	}
	if status != StatusFailed {
		errorMessage = ""
	}
	return &Video{
		ID:              id,
		UserID:          userID,
		Filename:        filename,
		StoragePath:     storagePath,
		StorageProvider: storageProvider,
		Status:          status,
		ErrorMessage:    errorMessage,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

func (v *Video) transition(to Status, errorMessage string, now time.Time) error {
	if !canTransition(v.Status, to) {
		return &IllegalTransitionError{Entity: "video", From: v.Status, To: to}
	}
	v.Status = to
	v.ErrorMessage = errorMessage
	v.UpdatedAt = now
	return nil
}
