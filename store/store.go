// Package store persists population snapshots and the experiment log.
// Snapshot blobs are opaque to the store: whatever Arena.ExportState emits
// goes in, and whatever came out last is handed back to ImportState.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a session.
var ErrSnapshotNotFound = errors.New("store: snapshot not found")

// ExperimentRecord is one persisted experiment outcome.
type ExperimentRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	VariantID string    `json:"variant_id"`
	Role      string    `json:"role"`
	Overall   float64   `json:"overall"`
	Payload   []byte    `json:"payload"` // full ExperimentOutcome JSON
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence collaborator for sessions.
type Store interface {
	// SaveSnapshot upserts the latest population snapshot for a session.
	SaveSnapshot(ctx context.Context, sessionID string, blob []byte) error

	// LoadSnapshot returns the latest snapshot, ErrSnapshotNotFound when absent.
	LoadSnapshot(ctx context.Context, sessionID string) ([]byte, error)

	// AppendExperiment stores one experiment record.
	AppendExperiment(ctx context.Context, rec ExperimentRecord) error

	// ListExperiments returns a session's records, oldest first.
	ListExperiments(ctx context.Context, sessionID string) ([]ExperimentRecord, error)

	// Close releases underlying resources.
	Close() error
}
