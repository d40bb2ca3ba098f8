// Package ids generates the identifiers used across the pipeline: ULIDs for
// transport message IDs (time-sortable, useful when inspecting queues) and
// UUIDs for entity identities persisted in the relational store.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewMessageID returns a time-sortable ULID encoded as a 26-character string.
func NewMessageID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// NewEntityID returns a random UUID string for videos, transcriptions and summaries.
func NewEntityID() string {
	return uuid.NewString()
}
