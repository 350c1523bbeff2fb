// Package storage persists processing runs: their flight and cloud blocks,
// extracted segments and populated grid cells.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Store is implemented by every results backend.
type Store interface {
	// SaveRun writes a run and all of its records atomically.
	SaveRun(ctx context.Context, r *RunResults) error
	// ListRuns returns every run, newest first.
	ListRuns(ctx context.Context) ([]Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	// Blocks returns a run's blocks of one kind, or of every kind when kind
	// is empty, ordered by kind then sequence.
	Blocks(ctx context.Context, id uuid.UUID, kind BlockKind) ([]BlockRecord, error)
	// Cells returns a run's populated cells ordered by time.
	Cells(ctx context.Context, id uuid.UUID) ([]CellRecord, error)
	Close() error
}
