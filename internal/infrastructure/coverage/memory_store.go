// Package coverage provides coverage counter stores backed by process memory
// or Redis.
package coverage

import (
	"context"
	"sync"

	"github.com/curricula/backend/internal/domain/content"
	"github.com/curricula/backend/internal/domain/coverage"
	"github.com/google/uuid"
)

type frameworkKey struct {
	tenantID    uuid.UUID
	frameworkID uuid.UUID
}

type frameworkState struct {
	mu         sync.Mutex
	total      int
	mapped     int
	pairs      map[content.MappingKey]struct{}
	objectives map[uuid.UUID]int
	// retired is set once a replacing seed has taken over the pairs
	retired bool
}

func newFrameworkState(seed coverage.Seed) *frameworkState {
	s := &frameworkState{
		total:      seed.TotalObjectives,
		pairs:      make(map[content.MappingKey]struct{}, len(seed.Keys)),
		objectives: make(map[uuid.UUID]int),
	}
	for _, key := range seed.Keys {
		s.add(key)
	}
	return s
}

// add must be called with mu held or before the state is shared
func (s *frameworkState) add(key content.MappingKey) bool {
	if _, ok := s.pairs[key]; ok {
		return false
	}
	s.pairs[key] = struct{}{}
	s.objectives[key.ObjectiveID]++
	if s.objectives[key.ObjectiveID] == 1 {
		s.mapped++
	}
	return true
}

// MemoryStore keeps coverage counters in process memory. Each framework has
// its own lock so concurrent jobs only contend on shared frameworks.
type MemoryStore struct {
	mu         sync.RWMutex
	frameworks map[frameworkKey]*frameworkState
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{frameworks: make(map[frameworkKey]*frameworkState)}
}

// Seed loads a framework's counter. A replacing seed keeps every pair the
// previous state recorded, so adds racing a rebuild are not lost.
func (s *MemoryStore) Seed(_ context.Context, seed coverage.Seed, replace bool) (bool, error) {
	key := frameworkKey{seed.TenantID, seed.FrameworkID}
	state := newFrameworkState(seed)

	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.frameworks[key]
	if ok && !replace {
		return false, nil
	}
	if ok {
		old.mu.Lock()
		for pair := range old.pairs {
			state.add(pair)
		}
		old.retired = true
		old.mu.Unlock()
	}
	s.frameworks[key] = state
	return true, nil
}

// Has reports whether the framework has been seeded
func (s *MemoryStore) Has(_ context.Context, tenantID, frameworkID uuid.UUID) (bool, error) {
	return s.state(tenantID, frameworkID) != nil, nil
}

// AddPair records an accepted (content, objective) pair
func (s *MemoryStore) AddPair(_ context.Context, tenantID, frameworkID uuid.UUID, key content.MappingKey) (bool, error) {
	for {
		state := s.state(tenantID, frameworkID)
		if state == nil {
			return false, coverage.ErrNotSeeded
		}
		state.mu.Lock()
		if state.retired {
			// replaced after lookup; retry against the new state
			state.mu.Unlock()
			continue
		}
		added := state.add(key)
		state.mu.Unlock()
		return added, nil
	}
}

// Get returns the framework's counter
func (s *MemoryStore) Get(_ context.Context, tenantID, frameworkID uuid.UUID) (coverage.Counter, bool, error) {
	state := s.state(tenantID, frameworkID)
	if state == nil {
		return coverage.Counter{}, false, nil
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return coverage.Counter{
		TenantID:         tenantID,
		FrameworkID:      frameworkID,
		TotalObjectives:  state.total,
		MappedObjectives: state.mapped,
	}, true, nil
}

func (s *MemoryStore) state(tenantID, frameworkID uuid.UUID) *frameworkState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameworks[frameworkKey{tenantID, frameworkID}]
}

var _ coverage.Store = (*MemoryStore)(nil)
