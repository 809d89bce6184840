// Package store persists task records in sqlite. Status changes are
// guarded single-row UPDATEs: the queued to transcribing claim is the
// system's only exclusivity mechanism, so it must be atomic.
package store

import (
	"context"
	"encoding/json"
	"time"

	"transcript-hub/internal/domain"
)

// Store is the task persistence boundary consumed by the pipeline,
// the sync coordinator, and the HTTP server.
type Store interface {
	Create(ctx context.Context, task *domain.Task) error
	Get(ctx context.Context, id string) (domain.Task, error)
	List(ctx context.Context) ([]domain.Task, error)
	Claim(ctx context.Context, id string) (bool, error)
	MarkTranscribed(ctx context.Context, id string, result TranscriptionResult) error
	MarkError(ctx context.Context, id, message string) error
	SetReviewed(ctx context.Context, id string, segments []domain.Segment) error
	SetMirror(ctx context.Context, id string, mirrorID int64, mirrorURL string) error
	ClearMirror(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// TranscriptionResult is the single persisted write of a successful
// pipeline run.
type TranscriptionResult struct {
	Duration *float64
	Segments []domain.Segment
	PeaksURL string
	STTRaw   json.RawMessage
}

// nowUTC is the store clock, overridable in tests.
var nowUTC = func() time.Time { return time.Now().UTC() }
