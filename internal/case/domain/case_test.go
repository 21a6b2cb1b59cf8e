package domain

import (
	"testing"

	"github.com/medsecop/platform/internal/shared/errors"
	"github.com/medsecop/platform/internal/shared/types"
)

func newTestCase(t *testing.T, submit bool) *Case {
	t.Helper()
	c, err := NewCase(types.NewID(), "Chest pain", "Recurring chest pain on exertion", SpecialtyCardiology, PriorityHigh, submit)
	if err != nil {
		t.Fatalf("NewCase failed: %v", err)
	}
	return c
}

func TestNewCase(t *testing.T) {
	c := newTestCase(t, false)

	if c.Status != StatusDraft {
		t.Errorf("new case should be draft, got %s", c.Status)
	}
	if c.DoctorID != nil {
		t.Error("new case should have no doctor")
	}
	if c.CompletedAt != nil {
		t.Error("new case should have no completion time")
	}
	if c.Version != 1 {
		t.Errorf("new case should start at version 1, got %d", c.Version)
	}
	if c.CaseNumber == "" {
		t.Error("case number should be generated")
	}

	events := c.GetDomainEvents()
	if len(events) != 1 || events[0].Type != EventCreated {
		t.Errorf("expected one created event, got %v", events)
	}
}

func TestNewCaseSubmitted(t *testing.T) {
	c := newTestCase(t, true)

	if c.Status != StatusSubmitted {
		t.Errorf("case should start submitted, got %s", c.Status)
	}
}

func TestNewCaseValidation(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		description string
		specialty   Specialty
		field       string
	}{
		{"missing title", "", "desc", SpecialtyGeneral, "title"},
		{"missing description", "title", "", SpecialtyGeneral, "description"},
		{"missing specialty", "title", "desc", "", "specialty"},
		{"whitespace title", "   ", "desc", SpecialtyGeneral, "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCase(types.NewID(), tt.title, tt.description, tt.specialty, PriorityMedium, false)
			if err == nil {
				t.Fatal("expected validation error")
			}
			appErr, ok := err.(*errors.AppError)
			if !ok || appErr.Code != "VALIDATION_ERROR" {
				t.Errorf("expected VALIDATION_ERROR, got %v", err)
			}
			if _, ok := appErr.Details[tt.field]; !ok {
				t.Errorf("expected details for field %s, got %v", tt.field, appErr.Details)
			}
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusDraft, StatusSubmitted, true},
		{StatusDraft, StatusCancelled, true},
		{StatusDraft, StatusAssigned, false},
		{StatusDraft, StatusCompleted, false},
		{StatusSubmitted, StatusAssigned, true},
		{StatusSubmitted, StatusCancelled, true},
		{StatusSubmitted, StatusInReview, false},
		{StatusAssigned, StatusInReview, true},
		{StatusAssigned, StatusCancelled, true},
		{StatusAssigned, StatusCompleted, false},
		{StatusInReview, StatusCompleted, true},
		{StatusInReview, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusDraft, false},
		{StatusCancelled, StatusSubmitted, false},
	}

	for _, tt := range tests {
		got := CanTransition(tt.from, tt.to)
		if got != tt.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusSubmitted, StatusAssigned, StatusInReview} {
		if IsTerminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !IsTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestFullLifecycle(t *testing.T) {
	actor := types.NewID()
	doctor := types.NewID()

	c := newTestCase(t, false)
	c.GetDomainEvents()

	if err := c.Submit(actor); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := c.AssignDoctor(doctor, actor); err != nil {
		t.Fatalf("AssignDoctor failed: %v", err)
	}
	if c.DoctorID == nil || *c.DoctorID != doctor {
		t.Error("doctor should be set after assignment")
	}
	if err := c.CheckInvariants(); err != nil {
		t.Errorf("invariants violated after assignment: %v", err)
	}

	if err := c.StartReview(actor); err != nil {
		t.Fatalf("StartReview failed: %v", err)
	}
	if err := c.Complete(actor); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if c.CompletedAt == nil {
		t.Error("completed case should have completion time")
	}
	if err := c.CheckInvariants(); err != nil {
		t.Errorf("invariants violated after completion: %v", err)
	}

	events := c.GetDomainEvents()
	want := []EventType{EventSubmitted, EventDoctorAssigned, EventReviewStarted, EventCompleted}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, et := range want {
		if events[i].Type != et {
			t.Errorf("event %d: got %s, want %s", i, events[i].Type, et)
		}
	}
}

func TestIllegalJumpRejected(t *testing.T) {
	actor := types.NewID()
	c := newTestCase(t, false)

	err := c.Complete(actor)
	if err == nil {
		t.Fatal("draft case should not complete directly")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok || appErr.Code != "INVALID_TRANSITION" {
		t.Errorf("expected INVALID_TRANSITION, got %v", err)
	}
	if c.Status != StatusDraft {
		t.Errorf("failed transition should not change status, got %s", c.Status)
	}
	if c.CompletedAt != nil {
		t.Error("failed completion should not stamp completed_at")
	}
}

func TestAssignRequiresDoctor(t *testing.T) {
	c := newTestCase(t, true)

	err := c.AssignDoctor(types.ID(""), types.NewID())
	if err == nil {
		t.Fatal("assignment without doctor should fail")
	}
	if c.Status != StatusSubmitted {
		t.Errorf("failed assignment should not change status, got %s", c.Status)
	}
}

func TestCancelReleasesDoctor(t *testing.T) {
	actor := types.NewID()
	doctor := types.NewID()

	c := newTestCase(t, true)
	if err := c.AssignDoctor(doctor, actor); err != nil {
		t.Fatalf("AssignDoctor failed: %v", err)
	}
	c.GetDomainEvents()

	if err := c.Cancel(actor); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if c.DoctorID != nil {
		t.Error("cancel should release the assigned doctor")
	}
	if err := c.CheckInvariants(); err != nil {
		t.Errorf("invariants violated after cancel: %v", err)
	}

	events := c.GetDomainEvents()
	if len(events) != 1 || events[0].Type != EventCancelled {
		t.Fatalf("expected one cancelled event, got %v", events)
	}
	if _, ok := events[0].Data["released_doctor_id"]; !ok {
		t.Error("cancel event should record the released doctor")
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	actor := types.NewID()

	completed := newTestCase(t, true)
	completed.AssignDoctor(types.NewID(), actor)
	completed.StartReview(actor)
	completed.Complete(actor)

	cancelled := newTestCase(t, false)
	cancelled.Cancel(actor)

	for _, c := range []*Case{completed, cancelled} {
		if err := c.Submit(actor); err == nil {
			t.Errorf("submit should fail from %s", c.Status)
		}
		if err := c.Cancel(actor); err == nil {
			t.Errorf("cancel should fail from %s", c.Status)
		}
		if err := c.StartReview(actor); err == nil {
			t.Errorf("start review should fail from %s", c.Status)
		}
	}
}

func TestCompletedAtSetOnce(t *testing.T) {
	actor := types.NewID()
	c := newTestCase(t, true)
	c.AssignDoctor(types.NewID(), actor)
	c.StartReview(actor)

	if err := c.Complete(actor); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	first := *c.CompletedAt

	if err := c.Complete(actor); err == nil {
		t.Fatal("second completion should fail")
	}
	if !c.CompletedAt.Equal(first) {
		t.Error("completed_at must not change after the first completion")
	}
}

func TestChangeStatusExcludesAssigned(t *testing.T) {
	c := newTestCase(t, true)

	err := c.ChangeStatus(StatusAssigned, types.NewID())
	if err == nil {
		t.Fatal("generic status change to assigned should be rejected")
	}
	if c.Status != StatusSubmitted {
		t.Errorf("status should be unchanged, got %s", c.Status)
	}
}

func TestCaseNumberPrefix(t *testing.T) {
	tests := []struct {
		specialty Specialty
		prefix    string
	}{
		{SpecialtyCardiology, "CAR"},
		{SpecialtyOncology, "ONC"},
		{SpecialtyGeneral, "GEN"},
		{Specialty("UNKNOWN"), "GEN"},
	}

	for _, tt := range tests {
		got := generateCaseNumber(tt.specialty)
		if got[:3] != tt.prefix {
			t.Errorf("generateCaseNumber(%s) = %s, want prefix %s", tt.specialty, got, tt.prefix)
		}
	}
}
