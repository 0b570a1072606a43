// Package syncstate holds a locally displayed copy of sheet rows and applies
// edits to it ahead of the remote write, restoring the previous copy when the
// write fails.
package syncstate

import (
	"context"
	"slices"
	"sync"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseApplied   Phase = "optimistically-applied"
	PhasePending   Phase = "pending-remote"
	PhaseCommitted Phase = "committed"
	PhaseReverted  Phase = "reverted"
)

// Ticket identifies one fetch. Only the newest ticket may replace items.
type Ticket uint64

type Store[T any] struct {
	mu         sync.RWMutex
	items      []T
	loaded     bool
	phase      Phase
	outcome    Phase
	generation uint64
	observers  []func([]T)

	// writeMu serialises Optimistic and Confirmed so a rollback restores
	// exactly the state its own mutation started from.
	writeMu sync.Mutex
}

func New[T any]() *Store[T] {
	return &Store[T]{phase: PhaseIdle, outcome: PhaseIdle}
}

// Items returns a copy of the current items.
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Loaded reports whether items were ever set by a fetch or Seed.
func (s *Store[T]) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store[T]) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// LastOutcome is committed or reverted for the most recent write, idle
// before any write.
func (s *Store[T]) LastOutcome() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome
}

// OnChange registers fn to receive a copy of the items after every change.
func (s *Store[T]) OnChange(fn func([]T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Seed sets items without notifying observers, for state restored from a
// local cache.
func (s *Store[T]) Seed(items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.Clone(items)
	s.loaded = true
}

func (s *Store[T]) BeginFetch() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return Ticket(s.generation)
}

// ApplyFetch replaces items with a fetch result unless a newer fetch or a
// write started after the ticket was issued. It reports whether the result
// was applied.
func (s *Store[T]) ApplyFetch(ticket Ticket, items []T) bool {
	s.mu.Lock()
	if uint64(ticket) != s.generation {
		s.mu.Unlock()
		return false
	}
	s.items = slices.Clone(items)
	s.loaded = true
	snapshot, observers := s.notifyLocked()
	s.mu.Unlock()

	notify(observers, snapshot)
	return true
}

// Optimistic applies mutate to a copy of the items, publishes it, then runs
// remote. When remote fails the items present before mutate are restored and
// the remote error is returned. A mutate error aborts before anything is
// published.
func (s *Store[T]) Optimistic(ctx context.Context, mutate func([]T) ([]T, error), remote func(context.Context) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	snapshot := slices.Clone(s.items)
	next, err := mutate(slices.Clone(s.items))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	// In-flight fetches predate this edit and must not overwrite it.
	s.generation++
	s.items = next
	s.phase = PhaseApplied
	applied, observers := s.notifyLocked()
	s.mu.Unlock()
	notify(observers, applied)

	s.setPhase(PhasePending)
	if err := remote(ctx); err != nil {
		s.mu.Lock()
		s.generation++
		s.items = snapshot
		s.outcome = PhaseReverted
		s.phase = PhaseIdle
		restored, observers := s.notifyLocked()
		s.mu.Unlock()
		notify(observers, restored)
		return err
	}

	s.mu.Lock()
	s.outcome = PhaseCommitted
	s.phase = PhaseIdle
	s.mu.Unlock()
	return nil
}

// Confirmed runs remote first, handing it the current items, and applies
// mutate only after it succeeds.
func (s *Store[T]) Confirmed(ctx context.Context, remote func(context.Context, []T) error, mutate func([]T) ([]T, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	current := slices.Clone(s.items)
	s.phase = PhasePending
	s.mu.Unlock()
	if err := remote(ctx, current); err != nil {
		s.mu.Lock()
		s.outcome = PhaseReverted
		s.phase = PhaseIdle
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	next, err := mutate(slices.Clone(s.items))
	if err != nil {
		s.phase = PhaseIdle
		s.mu.Unlock()
		return err
	}
	s.generation++
	s.items = next
	s.outcome = PhaseCommitted
	s.phase = PhaseIdle
	updated, observers := s.notifyLocked()
	s.mu.Unlock()
	notify(observers, updated)
	return nil
}

func (s *Store[T]) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *Store[T]) notifyLocked() ([]T, []func([]T)) {
	if len(s.observers) == 0 {
		return nil, nil
	}
	return slices.Clone(s.items), slices.Clone(s.observers)
}

func notify[T any](observers []func([]T), items []T) {
	for _, fn := range observers {
		fn(items)
	}
}
