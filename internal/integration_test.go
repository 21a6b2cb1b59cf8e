package internal

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	platformauth "github.com/medsecop/platform/internal/auth"
	"github.com/medsecop/platform/internal/audit"
	casedomain "github.com/medsecop/platform/internal/case/domain"
	caseinfra "github.com/medsecop/platform/internal/case/infrastructure"
	caseservice "github.com/medsecop/platform/internal/case/service"
	"github.com/medsecop/platform/internal/notification"
	"github.com/medsecop/platform/internal/shared/auth"
	"github.com/medsecop/platform/internal/shared/types"
	"github.com/medsecop/platform/internal/user"
)

// TestFullCaseWorkflow walks a case through its complete lifecycle and checks
// the audit trail written along the way.
func TestFullCaseWorkflow(t *testing.T) {
	ctx := context.Background()

	cases := caseinfra.NewMemoryRepository()
	users := user.NewMemoryRepository()
	entries := audit.NewMemoryStore()
	recorder := audit.NewSyncRecorder(entries, zerolog.Nop())

	notifier := notification.NewService(
		map[notification.Channel]notification.Provider{
			notification.ChannelEmail: notification.NewLogProvider(zerolog.Nop()),
			notification.ChannelInApp: notification.NewLogProvider(zerolog.Nop()),
		},
		notification.DefaultServiceConfig(),
		zerolog.Nop(),
	)
	if err := notifier.Start(ctx); err != nil {
		t.Fatalf("failed to start notifier: %v", err)
	}
	defer notifier.Stop()

	svc := caseservice.NewService(cases, users, recorder, notifier, nil, zerolog.Nop())

	admin := &auth.User{ID: types.NewID(), Role: platformauth.RoleAdmin}
	patient := &auth.User{ID: types.NewID(), Role: platformauth.RolePatient}
	doctor := &auth.User{ID: types.NewID(), Role: platformauth.RoleDoctor}

	users.Save(ctx, &user.User{
		ID: doctor.ID, Email: "cardio@example.com", Name: "Dr. Cardio",
		Role: platformauth.RoleDoctor, Specialty: casedomain.SpecialtyCardiology, Active: true,
	})

	// 1. Patient creates a draft case
	c, err := svc.Create(ctx, patient, caseservice.CreateInput{
		PatientID:   patient.ID,
		Title:       "Chest pain",
		Description: "Recurring chest pain on exertion, seeking a second opinion",
		Specialty:   casedomain.SpecialtyCardiology,
		Priority:    casedomain.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("failed to create case: %v", err)
	}
	if c.Status != casedomain.StatusDraft {
		t.Errorf("new case should be draft, got %s", c.Status)
	}

	// 2. Patient submits it
	c, err = svc.Submit(ctx, patient, c.ID)
	if err != nil {
		t.Fatalf("failed to submit case: %v", err)
	}
	if c.Status != casedomain.StatusSubmitted {
		t.Errorf("case should be submitted, got %s", c.Status)
	}

	// 3. Admin assigns the doctor
	c, err = svc.AssignDoctor(ctx, admin, c.ID, doctor.ID)
	if err != nil {
		t.Fatalf("failed to assign doctor: %v", err)
	}
	if c.Status != casedomain.StatusAssigned {
		t.Errorf("case should be assigned, got %s", c.Status)
	}

	// 4. The assigned doctor reviews and completes
	if _, err := svc.StartReview(ctx, doctor, c.ID); err != nil {
		t.Fatalf("failed to start review: %v", err)
	}
	c, err = svc.Complete(ctx, doctor, c.ID)
	if err != nil {
		t.Fatalf("failed to complete case: %v", err)
	}
	if c.Status != casedomain.StatusCompleted {
		t.Errorf("case should be completed, got %s", c.Status)
	}
	if c.CompletedAt == nil {
		t.Error("completed case should have a completion time")
	}
	if err := c.CheckInvariants(); err != nil {
		t.Errorf("invariants violated at end of lifecycle: %v", err)
	}

	// 5. The audit trail covers every step, in order, on an intact chain
	wantActions := []string{
		audit.ActionCaseCreated,
		audit.ActionCaseSubmitted,
		audit.ActionCaseDoctorAssigned,
		audit.ActionCaseUpdated,
		audit.ActionCaseCompleted,
	}
	all := entries.All()
	if len(all) != len(wantActions) {
		t.Fatalf("expected %d audit entries, got %d", len(wantActions), len(all))
	}
	for i, action := range wantActions {
		if all[i].Action != action {
			t.Errorf("audit entry %d: got %s, want %s", i, all[i].Action, action)
		}
	}

	result, err := entries.VerifyChain(ctx, 100, false)
	if err != nil {
		t.Fatalf("chain verification failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("audit chain should verify: %+v", result)
	}

	// 6. Terminal state rejects further mutation
	if _, err := svc.Cancel(ctx, patient, c.ID); err == nil {
		t.Error("completed case should not be cancellable")
	}
}
