package memory

import (
	"context"
	"sync"
)

// MemoryPersister keeps the snapshot in process. It backs tests and
// deployments that do not need the memory to survive a restart.
type MemoryPersister struct {
	mu    sync.Mutex
	snap  *Snapshot
	saves int

	// FailWith, when set, is returned by every Save
	FailWith error
}

// NewMemoryPersister creates an empty in-process persister
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (m *MemoryPersister) Name() string { return "memory" }

func (m *MemoryPersister) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, ErrNotFound
	}
	return m.snap.Clone(), nil
}

func (m *MemoryPersister) Save(ctx context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.snap = snap.Clone()
	m.saves++
	return nil
}

// Saves counts successful writes
func (m *MemoryPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
