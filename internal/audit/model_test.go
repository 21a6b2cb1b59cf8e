package audit

import (
	"context"
	"testing"

	platformauth "github.com/medsecop/platform/internal/auth"
	"github.com/medsecop/platform/internal/shared/types"
)

func testEntry(details map[string]any) *Entry {
	resourceID := types.NewID()
	return NewEntry(types.NewID(), platformauth.RoleAdmin, ActionCaseCreated, ResourceTypeCase, &resourceID, details)
}

func TestNewEntry(t *testing.T) {
	actorID := types.NewID()
	resourceID := types.NewID()

	entry := NewEntry(actorID, platformauth.RolePatient, ActionCaseCreated, ResourceTypeCase, &resourceID,
		map[string]any{"case_number": "CAR-2026-000001"})

	if entry.ID.IsZero() {
		t.Error("expected non-zero ID")
	}
	if entry.ActorID != actorID {
		t.Errorf("expected actor %s, got %s", actorID, entry.ActorID)
	}
	if entry.ActorRole != platformauth.RolePatient {
		t.Errorf("expected patient role, got %s", entry.ActorRole)
	}
	if entry.Hash == "" {
		t.Error("expected non-empty hash")
	}
	if !entry.VerifyHash() {
		t.Error("freshly created entry should verify")
	}
}

func TestHashDeterministic(t *testing.T) {
	entry := testEntry(map[string]any{"b": "2", "a": "1", "c": "3"})

	first := entry.ComputeHash()
	for i := 0; i < 10; i++ {
		if got := entry.ComputeHash(); got != first {
			t.Fatalf("hash not deterministic: %s != %s", got, first)
		}
	}
}

func TestTamperDetection(t *testing.T) {
	entry := testEntry(map[string]any{"status": "draft"})

	entry.Action = ActionCaseCancelled
	if entry.VerifyHash() {
		t.Error("modified action should invalidate the hash")
	}

	entry = testEntry(map[string]any{"status": "draft"})
	entry.Details["status"] = "completed"
	if entry.VerifyHash() {
		t.Error("modified details should invalidate the hash")
	}

	entry = testEntry(nil)
	entry.ActorID = types.NewID()
	if entry.VerifyHash() {
		t.Error("modified actor should invalidate the hash")
	}
}

func TestMemoryStoreChainsEntries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 5; i++ {
		if err := store.Append(ctx, testEntry(map[string]any{"index": i})); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	entries := store.All()
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}

	if entries[0].PrevHash != "" {
		t.Error("first entry should have empty prev_hash")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].PrevHash != entries[i-1].Hash {
			t.Errorf("chain broken at entry %d", i)
		}
	}
}

func TestVerifyChain(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 10; i++ {
		store.Append(ctx, testEntry(map[string]any{"index": i}))
	}

	result, err := store.VerifyChain(ctx, 100, false)
	if err != nil {
		t.Fatalf("VerifyChain failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("untampered chain should verify: %+v", result)
	}
	if result.Checked != 10 {
		t.Errorf("expected 10 entries checked, got %d", result.Checked)
	}
	if result.ContentInvalid != 0 || result.LinkageInvalid != 0 {
		t.Errorf("expected no invalid entries, got %+v", result)
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 5; i++ {
		store.Append(ctx, testEntry(map[string]any{"index": i}))
	}

	// Tamper with a stored entry behind the store's back
	store.entries[2].Action = ActionCaseCompleted

	result, err := store.VerifyChain(ctx, 100, false)
	if err != nil {
		t.Fatalf("VerifyChain failed: %v", err)
	}
	if result.Valid {
		t.Error("tampered chain should not verify")
	}
	if result.ContentInvalid == 0 {
		t.Error("expected at least one content-invalid entry")
	}
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	actorA := types.NewID()
	caseID := types.NewID()

	store.Append(ctx, NewEntry(actorA, platformauth.RolePatient, ActionCaseCreated, ResourceTypeCase, &caseID, nil))
	store.Append(ctx, NewEntry(actorA, platformauth.RolePatient, ActionCaseSubmitted, ResourceTypeCase, &caseID, nil))
	store.Append(ctx, testEntry(nil))

	byActor, total, err := store.List(ctx, ListEntriesFilter{ActorID: &actorA})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 2 || len(byActor) != 2 {
		t.Errorf("expected 2 entries for actor, got %d", total)
	}

	byAction, total, err := store.List(ctx, ListEntriesFilter{Action: ActionCaseSubmitted})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || len(byAction) != 1 {
		t.Errorf("expected 1 submitted entry, got %d", total)
	}

	trail, err := store.GetByResource(ctx, ResourceTypeCase, caseID, 10)
	if err != nil {
		t.Fatalf("GetByResource failed: %v", err)
	}
	if len(trail) != 2 {
		t.Errorf("expected 2 trail entries, got %d", len(trail))
	}
}
