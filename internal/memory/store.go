// Package memory keeps the correction memory: canonical names learned from
// earlier documents, OCR digit confusions, and a log of the corrections
// made with them.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Caia-Tech/caia-extract/pkg/fuzzy"
	"github.com/Caia-Tech/caia-extract/pkg/logging"
)

// DefaultThreshold is the minimum similarity for a name correction
const DefaultThreshold = 80

// minLearnLength is the shortest candidate that is learned as a new name
const minLearnLength = 4

// Store is the shared correction memory. Mutations are serialized and
// persisted before they return; lookups run concurrently.
type Store struct {
	mu        sync.RWMutex
	persister Persister
	snap      *Snapshot
	now       func() time.Time
}

// New creates a store over the given persister. The store is empty until
// Load is called.
func New(persister Persister) *Store {
	return &Store{
		persister: persister,
		snap:      EmptySnapshot(),
		now:       time.Now,
	}
}

// Backend names the persister behind the store
func (s *Store) Backend() string {
	return s.persister.Name()
}

// Load reads the memory from the persister. A persister that holds nothing
// yet is seeded with DefaultSnapshot, which is saved immediately.
func (s *Store) Load(ctx context.Context) error {
	logger := logging.GetMemoryLogger("load", s.persister.Name())

	snap, err := s.persister.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		logger.Info().Msg("No stored memory, seeding defaults")
		seed := DefaultSnapshot()
		seed.UpdatedAt = s.now()
		if err := s.persister.Save(ctx, seed); err != nil {
			return &PersistError{Backend: s.persister.Name(), Err: err}
		}
		snap = seed
	} else if err != nil {
		return fmt.Errorf("failed to load memory: %w", err)
	}
	snap.normalize()

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	logger.Debug().
		Int("categories", len(snap.Names)).
		Int("log_entries", len(snap.CorrectionLog)).
		Msg("Memory loaded")
	return nil
}

// Snapshot returns a deep copy of the current memory
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Names returns a copy of the known names in a category
func (s *Store) Names(category string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.snap.Names[category]...)
}

// BestMatch finds the closest known name without touching the store
func (s *Store) BestMatch(category, candidate string) (string, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fuzzy.ExtractOne(candidate, s.snap.Names[category])
}

// CorrectName maps candidate onto a known name in category when the best
// similarity reaches threshold, recording the correction. Otherwise a
// novel candidate longer than three characters is learned. Either mutation
// is persisted before returning; a failed persist is rolled back and
// returned as a *PersistError together with the uncorrected candidate.
func (s *Store) CorrectName(ctx context.Context, category, candidate string, threshold int) (string, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return candidate, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	known := s.snap.Names[category]
	match, score, ok := fuzzy.ExtractOne(candidate, known)
	if ok && score >= threshold {
		if match == candidate {
			return match, nil
		}
		entry := LogEntry{
			Category:  category,
			Original:  candidate,
			Corrected: match,
			Score:     score,
			Timestamp: s.now(),
		}
		err := s.mutate(ctx, "correct", func(snap *Snapshot) {
			snap.CorrectionLog = append(snap.CorrectionLog, entry)
		})
		if err != nil {
			return candidate, err
		}
		logger := logging.GetMemoryLogger("correct", s.persister.Name())
		logger.Info().
			Str("category", category).
			Str("original", candidate).
			Str("corrected", match).
			Int("score", score).
			Msg("Name corrected")
		return match, nil
	}

	if len([]rune(candidate)) >= minLearnLength && !containsName(known, candidate) {
		if err := s.learnLocked(ctx, category, candidate); err != nil {
			return candidate, err
		}
	}
	return candidate, nil
}

// LearnName adds name to category unless it is already known. It reports
// whether the store changed.
func (s *Store) LearnName(ctx context.Context, category, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if containsName(s.snap.Names[category], name) {
		return false, nil
	}
	if err := s.learnLocked(ctx, category, name); err != nil {
		return false, err
	}
	return true, nil
}

// NormalizeNumber parses an OCR read amount using the store's digit
// confusions. Unparseable input yields 0.
func (s *Store) NormalizeNumber(raw string) float64 {
	s.mu.RLock()
	confusions := s.snap.DigitConfusions
	replacer := confusionReplacer(confusions)
	s.mu.RUnlock()

	return normalizeNumber(raw, replacer)
}

// Reset replaces the memory with an empty store and persists it
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.mutate(ctx, "reset", func(snap *Snapshot) {
		*snap = *EmptySnapshot()
	})
	if err != nil {
		return err
	}
	logger := logging.GetMemoryLogger("reset", s.persister.Name())
	logger.Info().Msg("Memory reset")
	return nil
}

func (s *Store) learnLocked(ctx context.Context, category, name string) error {
	err := s.mutate(ctx, "learn", func(snap *Snapshot) {
		snap.Names[category] = append(snap.Names[category], name)
	})
	if err != nil {
		return err
	}
	logger := logging.GetMemoryLogger("learn", s.persister.Name())
	logger.Info().
		Str("category", category).
		Str("name", name).
		Msg("Learned new name")
	return nil
}

// mutate applies fn to a copy of the memory, persists the copy and only
// then swaps it in. The caller holds the write lock.
func (s *Store) mutate(ctx context.Context, op string, fn func(*Snapshot)) error {
	next := s.snap.Clone()
	fn(next)
	next.UpdatedAt = s.now()

	if err := s.persister.Save(ctx, next); err != nil {
		logger := logging.GetMemoryLogger(op, s.persister.Name())
		logger.Error().
			Err(err).
			Msg("Failed to persist memory")
		return &PersistError{Backend: s.persister.Name(), Err: err}
	}
	s.snap = next
	return nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
