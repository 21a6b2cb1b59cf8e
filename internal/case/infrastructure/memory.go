package infrastructure

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/medsecop/platform/internal/case/domain"
	"github.com/medsecop/platform/internal/shared/errors"
	"github.com/medsecop/platform/internal/shared/types"
)

// MemoryRepository is an in-memory case repository for tests and local runs.
// It enforces the same version checks as the PostgreSQL repository.
type MemoryRepository struct {
	mu    sync.RWMutex
	cases map[types.ID]domain.Case
}

// NewMemoryRepository creates a new in-memory case repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{cases: make(map[types.ID]domain.Case)}
}

// Save persists a new case
func (r *MemoryRepository) Save(ctx context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cases[c.ID]; ok {
		return errors.Conflict("case with this number already exists")
	}
	r.cases[c.ID] = *c
	return nil
}

// FindByID finds a case by ID
func (r *MemoryRepository) FindByID(ctx context.Context, id types.ID) (*domain.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cases[id]
	if !ok {
		return nil, errors.NotFound("case", id.String())
	}
	return &c, nil
}

// Update persists a mutated case, conditioned on its current version
func (r *MemoryRepository) Update(ctx context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.cases[c.ID]
	if !ok {
		return errors.NotFound("case", c.ID.String())
	}
	if stored.Version != c.Version {
		return errors.Conflict("case was modified by another request")
	}

	c.Version++
	r.cases[c.ID] = *c
	return nil
}

// List lists cases with optional filters
func (r *MemoryRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Case, int, error) {
	return r.list(filter, func(domain.Case) bool { return true })
}

// FindByPatient lists cases owned by the given patient
func (r *MemoryRepository) FindByPatient(ctx context.Context, patientID types.ID, filter domain.ListFilter) ([]domain.Case, int, error) {
	return r.list(filter, func(c domain.Case) bool { return c.PatientID == patientID })
}

// FindByDoctor lists cases assigned to the given doctor
func (r *MemoryRepository) FindByDoctor(ctx context.Context, doctorID types.ID, filter domain.ListFilter) ([]domain.Case, int, error) {
	return r.list(filter, func(c domain.Case) bool {
		return c.DoctorID != nil && *c.DoctorID == doctorID
	})
}

func (r *MemoryRepository) list(filter domain.ListFilter, owned func(domain.Case) bool) ([]domain.Case, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.Case
	for _, c := range r.cases {
		if !owned(c) {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.Specialty != nil && c.Specialty != *filter.Specialty {
			continue
		}
		if filter.Priority != nil && c.Priority != *filter.Priority {
			continue
		}
		if filter.Search != "" {
			search := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(c.Title), search) &&
				!strings.Contains(strings.ToLower(c.CaseNumber), search) {
				continue
			}
		}
		matched = append(matched, c)
	}

	sort.Slice(matched, func(i, j int) bool {
		if filter.OrderDesc {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := len(matched)

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, total, nil
}
