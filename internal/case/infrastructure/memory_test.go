package infrastructure

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/medsecop/platform/internal/case/domain"
	"github.com/medsecop/platform/internal/shared/errors"
	"github.com/medsecop/platform/internal/shared/types"
)

func seedCase(t *testing.T, repo *MemoryRepository) *domain.Case {
	t.Helper()
	c, err := domain.NewCase(types.NewID(), "Chest pain", "desc", domain.SpecialtyCardiology, domain.PriorityMedium, false)
	if err != nil {
		t.Fatalf("NewCase failed: %v", err)
	}
	if err := repo.Save(context.Background(), c); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return c
}

func TestMemoryRepositoryRoundTrip(t *testing.T) {
	repo := NewMemoryRepository()
	c := seedCase(t, repo)

	got, err := repo.FindByID(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.CaseNumber != c.CaseNumber {
		t.Errorf("expected case number %s, got %s", c.CaseNumber, got.CaseNumber)
	}

	_, err = repo.FindByID(context.Background(), types.NewID())
	if !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMemoryRepositoryVersionConflict(t *testing.T) {
	repo := NewMemoryRepository()
	c := seedCase(t, repo)
	ctx := context.Background()

	// Two readers load the same version
	first, _ := repo.FindByID(ctx, c.ID)
	second, _ := repo.FindByID(ctx, c.ID)

	first.Title = "Updated by first"
	if err := repo.Update(ctx, first); err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	if first.Version != c.Version+1 {
		t.Errorf("update should increment version, got %d", first.Version)
	}

	second.Title = "Updated by second"
	err := repo.Update(ctx, second)
	if !stderrors.Is(err, errors.ErrConflict) {
		t.Errorf("stale update should conflict, got %v", err)
	}

	stored, _ := repo.FindByID(ctx, c.ID)
	if stored.Title != "Updated by first" {
		t.Errorf("conflicting write must not overwrite, got %q", stored.Title)
	}
}

func TestMemoryRepositoryPaginationBounds(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	seedCase(t, repo)
	seedCase(t, repo)

	cases, total, err := repo.List(ctx, domain.ListFilter{Offset: -1, Limit: -5})
	if err != nil {
		t.Fatalf("List with negative pagination failed: %v", err)
	}
	if total != 2 || len(cases) != 2 {
		t.Errorf("negative offset should read from the start, got %d of %d", len(cases), total)
	}

	cases, total, err = repo.List(ctx, domain.ListFilter{Offset: 10})
	if err != nil {
		t.Fatalf("List past the end failed: %v", err)
	}
	if total != 2 || len(cases) != 0 {
		t.Errorf("offset past the end should return no rows, got %d of %d", len(cases), total)
	}
}

func TestMemoryRepositoryOwnerQueries(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	patientID := types.NewID()
	doctorID := types.NewID()

	c, err := domain.NewCase(patientID, "Chest pain", "desc", domain.SpecialtyCardiology, domain.PriorityMedium, true)
	if err != nil {
		t.Fatalf("NewCase failed: %v", err)
	}
	if err := c.AssignDoctor(doctorID, types.NewID()); err != nil {
		t.Fatalf("AssignDoctor failed: %v", err)
	}
	repo.Save(ctx, c)
	seedCase(t, repo)

	byPatient, total, err := repo.FindByPatient(ctx, patientID, domain.ListFilter{})
	if err != nil {
		t.Fatalf("FindByPatient failed: %v", err)
	}
	if total != 1 || len(byPatient) != 1 {
		t.Errorf("expected 1 case for patient, got %d", total)
	}

	byDoctor, total, err := repo.FindByDoctor(ctx, doctorID, domain.ListFilter{})
	if err != nil {
		t.Fatalf("FindByDoctor failed: %v", err)
	}
	if total != 1 || len(byDoctor) != 1 {
		t.Errorf("expected 1 case for doctor, got %d", total)
	}

	status := domain.StatusAssigned
	filtered, total, err := repo.List(ctx, domain.ListFilter{Status: &status})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || len(filtered) != 1 {
		t.Errorf("expected 1 assigned case, got %d", total)
	}
}
