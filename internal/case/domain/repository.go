package domain

import (
	"context"

	"github.com/medsecop/platform/internal/shared/types"
)

// Repository defines the interface for case persistence
type Repository interface {
	// Save persists a new case
	Save(ctx context.Context, c *Case) error

	// FindByID finds a case by ID
	FindByID(ctx context.Context, id types.ID) (*Case, error)

	// Update persists a mutated case. The write is conditioned on the
	// aggregate's current Version; on success the Version is incremented.
	// A stale version yields a Conflict error.
	Update(ctx context.Context, c *Case) error

	// Query operations
	List(ctx context.Context, filter ListFilter) ([]Case, int, error)
	FindByPatient(ctx context.Context, patientID types.ID, filter ListFilter) ([]Case, int, error)
	FindByDoctor(ctx context.Context, doctorID types.ID, filter ListFilter) ([]Case, int, error)
}

// ListFilter defines filters for listing cases
type ListFilter struct {
	Status    *Status    `json:"status,omitempty"`
	Specialty *Specialty `json:"specialty,omitempty"`
	Priority  *Priority  `json:"priority,omitempty"`
	Search    string     `json:"search,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
	OrderBy   string     `json:"order_by,omitempty"`
	OrderDesc bool       `json:"order_desc,omitempty"`
}
