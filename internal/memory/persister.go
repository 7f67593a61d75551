package memory

import (
	"context"
	"errors"
	"fmt"
)

// snapshotID keys the single memory record in document and SQL stores
const snapshotID = "correction_memory"

// ErrNotFound is returned by a persister that holds no memory yet
var ErrNotFound = errors.New("memory not found")

// Persister is durable storage for a whole Snapshot. Every Save rewrites
// the full document.
type Persister interface {
	Name() string
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

// PersistError wraps a failed write so callers can tell it apart from
// lookup failures
type PersistError struct {
	Backend string
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist memory to %s: %v", e.Backend, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
