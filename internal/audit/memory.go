package audit

import (
	"context"
	"sync"

	"github.com/medsecop/platform/internal/shared/errors"
	"github.com/medsecop/platform/internal/shared/types"
)

// MemoryStore is an in-memory Store for tests and local development.
// It preserves the hash chain semantics of the PostgreSQL repository.
type MemoryStore struct {
	mu       sync.Mutex
	entries  []Entry
	lastHash string
}

// NewMemoryStore creates an empty in-memory audit store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.PrevHash = s.lastHash
	entry.Hash = entry.calculateHash()
	entry.Sequence = int64(len(s.entries) + 1)

	s.entries = append(s.entries, *entry)
	s.lastHash = entry.Hash
	return nil
}

func (s *MemoryStore) List(ctx context.Context, filter ListEntriesFilter) ([]Entry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if filter.ActorID != nil && e.ActorID != *filter.ActorID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.ResourceType != "" && e.ResourceType != filter.ResourceType {
			continue
		}
		if filter.ResourceID != nil && (e.ResourceID == nil || *e.ResourceID != *filter.ResourceID) {
			continue
		}
		matched = append(matched, e)
	}

	total := len(matched)

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, total, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id types.ID) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.ID == id {
			found := e
			return &found, nil
		}
	}
	return nil, errors.NotFound("audit entry", id.String())
}

func (s *MemoryStore) GetByResource(ctx context.Context, resourceType string, resourceID types.ID, limit int) ([]Entry, error) {
	entries, _, err := s.List(ctx, ListEntriesFilter{
		ResourceType: resourceType,
		ResourceID:   &resourceID,
		Limit:        limit,
	})
	return entries, err
}

func (s *MemoryStore) VerifyChain(ctx context.Context, limit int, includeDetails bool) (*VerifyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	// Descending sequence order, like the PostgreSQL repository
	n := len(s.entries)
	if n > limit {
		n = limit
	}
	desc := make([]Entry, 0, n)
	for i := len(s.entries) - 1; i >= len(s.entries)-n; i-- {
		desc = append(desc, s.entries[i])
	}

	return verifyEntries(desc, includeDetails), nil
}

// All returns a copy of every stored entry in append order
func (s *MemoryStore) All() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
