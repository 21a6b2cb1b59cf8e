package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/rs/zerolog"

	platformauth "github.com/medsecop/platform/internal/auth"
	"github.com/medsecop/platform/internal/audit"
	"github.com/medsecop/platform/internal/case/domain"
	"github.com/medsecop/platform/internal/notification"
	"github.com/medsecop/platform/internal/shared/auth"
	"github.com/medsecop/platform/internal/shared/errors"
	"github.com/medsecop/platform/internal/shared/events"
	"github.com/medsecop/platform/internal/shared/metrics"
	"github.com/medsecop/platform/internal/shared/types"
	"github.com/medsecop/platform/internal/user"
)

// Service implements the case lifecycle operations. Every mutation is gated
// by a role check, applies the status transition table, and emits exactly one
// audit entry. Audit and notifications are best effort and never fail the
// primary operation.
type Service struct {
	repo     domain.Repository
	users    user.Repository
	recorder audit.Recorder
	notifier *notification.Service
	bus      *events.Bus
	logger   zerolog.Logger
}

// NewService creates a new case service. notifier and bus may be nil.
func NewService(
	repo domain.Repository,
	users user.Repository,
	recorder audit.Recorder,
	notifier *notification.Service,
	bus *events.Bus,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		recorder: recorder,
		notifier: notifier,
		bus:      bus,
		logger:   logger.With().Str("component", "case-service").Logger(),
	}
}

// CreateInput holds the fields for creating a case
type CreateInput struct {
	PatientID   types.ID         `json:"patient_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Specialty   domain.Specialty `json:"specialty"`
	Priority    domain.Priority  `json:"priority"`
	Submit      bool             `json:"submit"`
}

// UpdateInput holds a partial update. Absent fields are untouched. When
// ExpectedVersion is set the update only applies if the case still has that
// version; a mismatch yields a Conflict.
type UpdateInput struct {
	Title           *string          `json:"title,omitempty"`
	Description     *string          `json:"description,omitempty"`
	Priority        *domain.Priority `json:"priority,omitempty"`
	Status          *domain.Status   `json:"status,omitempty"`
	ExpectedVersion *int64           `json:"expected_version,omitempty"`
}

// Create creates a new case owned by input.PatientID. Patients may only
// create cases for themselves; admins may create on behalf of any patient.
func (s *Service) Create(ctx context.Context, actor *auth.User, input CreateInput) (*domain.Case, error) {
	if actor == nil {
		return nil, errors.Unauthorized("authentication required")
	}

	allowed := actor.HasPermission(platformauth.PermCaseCreate) &&
		(actor.IsAdmin() || actor.ID == input.PatientID)
	metrics.RecordAuthorizationDecision("case.create", allowed)
	if !allowed {
		return nil, errors.Forbidden("cannot create a case for another patient")
	}

	c, err := domain.NewCase(input.PatientID, input.Title, input.Description, input.Specialty, input.Priority, input.Submit)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return nil, s.classify(ctx, err, "create case")
	}

	metrics.RecordCaseCreated(string(c.Specialty), string(c.Priority))
	s.audit(ctx, actor, audit.ActionCaseCreated, c.ID, map[string]any{
		"case_number": c.CaseNumber,
		"status":      string(c.Status),
		"specialty":   string(c.Specialty),
	})
	s.publish(ctx, actor, c)

	return c, nil
}

// Get returns a case visible to the actor. Every permitted read is recorded
// in the audit log; denied reads are not.
func (s *Service) Get(ctx context.Context, actor *auth.User, id types.ID) (*domain.Case, error) {
	if actor == nil {
		return nil, errors.Unauthorized("authentication required")
	}

	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.classify(ctx, err, "get case")
	}

	allowed := s.canAccess(actor, c)
	metrics.RecordAuthorizationDecision("case.read", allowed)
	if !allowed {
		return nil, errors.Forbidden("no access to this case")
	}

	s.audit(ctx, actor, audit.ActionCaseAccessed, c.ID, nil)
	return c, nil
}

// List returns cases scoped to the actor's role: admins see all cases,
// patients their own, doctors the cases assigned to them.
func (s *Service) List(ctx context.Context, actor *auth.User, filter domain.ListFilter) ([]domain.Case, int, error) {
	if actor == nil {
		return nil, 0, errors.Unauthorized("authentication required")
	}

	var (
		cases []domain.Case
		total int
		err   error
	)

	switch {
	case actor.IsAdmin():
		cases, total, err = s.repo.List(ctx, filter)
	case actor.Role == platformauth.RoleDoctor:
		cases, total, err = s.repo.FindByDoctor(ctx, actor.ID, filter)
	default:
		cases, total, err = s.repo.FindByPatient(ctx, actor.ID, filter)
	}

	if err != nil {
		return nil, 0, s.classify(ctx, err, "list cases")
	}
	return cases, total, nil
}

// Update applies a partial update to a case. Content fields are applied as
// given; a status field goes through the transition table and the same
// per-transition role checks as the dedicated operations. An empty update
// still refreshes updated_at and emits one audit entry.
func (s *Service) Update(ctx context.Context, actor *auth.User, id types.ID, input UpdateInput) (*domain.Case, error) {
	if actor == nil {
		return nil, errors.Unauthorized("authentication required")
	}

	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.classify(ctx, err, "get case")
	}

	allowed := s.canAccess(actor, c)
	metrics.RecordAuthorizationDecision("case.update", allowed)
	if !allowed {
		return nil, errors.Forbidden("no access to this case")
	}

	if input.ExpectedVersion != nil && *input.ExpectedVersion != c.Version {
		return nil, errors.Conflict("case was modified since it was last read")
	}

	contentEdit := input.Title != nil || input.Description != nil || input.Priority != nil
	if contentEdit && !actor.IsAdmin() && domain.IsTerminal(c.Status) {
		return nil, errors.Forbidden("case is closed and can no longer be edited")
	}

	previousStatus := c.Status
	var changed []string

	if input.Title != nil {
		c.Title = *input.Title
		changed = append(changed, "title")
	}
	if input.Description != nil {
		c.Description = *input.Description
		changed = append(changed, "description")
	}
	if input.Priority != nil {
		c.Priority = *input.Priority
		changed = append(changed, "priority")
	}

	if details := domain.ValidateContent(c.Title, c.Description, c.Specialty); len(details) > 0 {
		return nil, errors.Validation("missing required fields", details)
	}

	if input.Status != nil && *input.Status != c.Status {
		target := *input.Status
		// Assignment needs a doctor and only happens through AssignDoctor
		if target == domain.StatusAssigned || !domain.CanTransition(c.Status, target) {
			return nil, errors.InvalidTransition(string(c.Status), string(target))
		}
		if err := s.allowTransition(actor, c, target); err != nil {
			return nil, err
		}
		if err := c.ChangeStatus(target, actor.ID); err != nil {
			return nil, err
		}
		changed = append(changed, "status")
		metrics.RecordCaseStatusChange(string(previousStatus), string(c.Status))
	}

	c.Touch(actor.ID, changed)

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, s.classify(ctx, err, "update case")
	}

	auditDetails := map[string]any{"changed_fields": changed}
	if previousStatus != c.Status {
		auditDetails["previous_status"] = string(previousStatus)
		auditDetails["new_status"] = string(c.Status)
	}
	s.audit(ctx, actor, audit.ActionCaseUpdated, c.ID, auditDetails)
	s.publish(ctx, actor, c)

	if previousStatus != c.Status && (c.Status == domain.StatusCompleted || c.Status == domain.StatusCancelled) {
		s.notifyTerminal(ctx, c)
	}

	return c, nil
}

// Submit moves a draft case into the submitted state
func (s *Service) Submit(ctx context.Context, actor *auth.User, id types.ID) (*domain.Case, error) {
	return s.mutate(ctx, actor, id, "case.submit", audit.ActionCaseSubmitted, func(c *domain.Case) error {
		if err := s.allowTransition(actor, c, domain.StatusSubmitted); err != nil {
			return err
		}
		return c.Submit(actor.ID)
	})
}

// StartReview moves an assigned case into review. Only the assigned doctor
// or an admin may start the review.
func (s *Service) StartReview(ctx context.Context, actor *auth.User, id types.ID) (*domain.Case, error) {
	return s.mutate(ctx, actor, id, "case.review", audit.ActionCaseUpdated, func(c *domain.Case) error {
		if err := s.allowTransition(actor, c, domain.StatusInReview); err != nil {
			return err
		}
		return c.StartReview(actor.ID)
	})
}

// Complete finishes the review and stamps the completion time. Only the
// assigned doctor or an admin may complete a case.
func (s *Service) Complete(ctx context.Context, actor *auth.User, id types.ID) (*domain.Case, error) {
	return s.mutate(ctx, actor, id, "case.complete", audit.ActionCaseCompleted, func(c *domain.Case) error {
		if err := s.allowTransition(actor, c, domain.StatusCompleted); err != nil {
			return err
		}
		return c.Complete(actor.ID)
	})
}

// Cancel cancels a case from any non-terminal state. Only the owning patient
// or an admin may cancel.
func (s *Service) Cancel(ctx context.Context, actor *auth.User, id types.ID) (*domain.Case, error) {
	return s.mutate(ctx, actor, id, "case.cancel", audit.ActionCaseCancelled, func(c *domain.Case) error {
		if err := s.allowTransition(actor, c, domain.StatusCancelled); err != nil {
			return err
		}
		return c.Cancel(actor.ID)
	})
}

// AssignDoctor assigns an active doctor to a submitted case. The actor's
// admin role is verified here; it is never taken from a request parameter.
func (s *Service) AssignDoctor(ctx context.Context, actor *auth.User, caseID, doctorID types.ID) (*domain.Case, error) {
	if actor == nil {
		return nil, errors.Unauthorized("authentication required")
	}

	allowed := actor.IsAdmin() && actor.HasPermission(platformauth.PermCaseAssign)
	metrics.RecordAuthorizationDecision("case.assign", allowed)
	if !allowed {
		return nil, errors.Forbidden("only admins may assign doctors")
	}

	c, err := s.repo.FindByID(ctx, caseID)
	if err != nil {
		return nil, s.classify(ctx, err, "get case")
	}

	doctor, err := s.users.FindByID(ctx, doctorID)
	if err != nil {
		return nil, s.classify(ctx, err, "get doctor")
	}
	if !doctor.IsAssignableDoctor() {
		return nil, errors.InvalidDoctor(doctorID.String(), "not an active doctor")
	}

	previousStatus := c.Status
	if err := c.AssignDoctor(doctorID, actor.ID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, s.classify(ctx, err, "update case")
	}

	metrics.RecordCaseStatusChange(string(previousStatus), string(c.Status))
	metrics.RecordDoctorAssigned(string(c.Specialty))
	s.audit(ctx, actor, audit.ActionCaseDoctorAssigned, c.ID, map[string]any{
		"doctor_id":       doctorID.String(),
		"previous_status": string(previousStatus),
	})
	s.publish(ctx, actor, c)
	s.notifyAssignment(ctx, c, doctor)

	return c, nil
}

// mutate is the shared path for the single-transition operations: load,
// authorize, apply, persist, audit, publish.
func (s *Service) mutate(
	ctx context.Context,
	actor *auth.User,
	id types.ID,
	decision string,
	action string,
	apply func(c *domain.Case) error,
) (*domain.Case, error) {
	if actor == nil {
		return nil, errors.Unauthorized("authentication required")
	}

	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.classify(ctx, err, "get case")
	}

	allowed := s.canAccess(actor, c)
	metrics.RecordAuthorizationDecision(decision, allowed)
	if !allowed {
		return nil, errors.Forbidden("no access to this case")
	}

	previousStatus := c.Status
	if err := apply(c); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, s.classify(ctx, err, "update case")
	}

	metrics.RecordCaseStatusChange(string(previousStatus), string(c.Status))
	s.audit(ctx, actor, action, c.ID, map[string]any{
		"previous_status": string(previousStatus),
		"new_status":      string(c.Status),
	})
	s.publish(ctx, actor, c)

	if c.Status == domain.StatusCompleted || c.Status == domain.StatusCancelled {
		s.notifyTerminal(ctx, c)
	}

	return c, nil
}

// allowTransition enforces who may drive each status transition, regardless
// of which path requested it: the owning patient submits and cancels, the
// assigned doctor starts the review and completes, admins may do any of them.
func (s *Service) allowTransition(actor *auth.User, c *domain.Case, target domain.Status) error {
	if actor.IsAdmin() {
		return nil
	}

	switch target {
	case domain.StatusSubmitted:
		if isOwningPatient(actor, c) {
			return nil
		}
		return errors.Forbidden("only the case owner may submit")
	case domain.StatusInReview:
		if isAssignedDoctor(actor, c) {
			return nil
		}
		return errors.Forbidden("only the assigned doctor may start the review")
	case domain.StatusCompleted:
		if isAssignedDoctor(actor, c) {
			return nil
		}
		return errors.Forbidden("only the assigned doctor may complete the case")
	case domain.StatusCancelled:
		if isOwningPatient(actor, c) {
			return nil
		}
		return errors.Forbidden("only the case owner may cancel")
	}
	return errors.Forbidden("transition not permitted")
}

// canAccess is the three-way visibility rule shared by reads and updates
func (s *Service) canAccess(actor *auth.User, c *domain.Case) bool {
	switch actor.Role {
	case platformauth.RoleAdmin:
		return true
	case platformauth.RolePatient:
		return c.PatientID == actor.ID
	case platformauth.RoleDoctor:
		return isAssignedDoctor(actor, c)
	}
	return false
}

func isAssignedDoctor(actor *auth.User, c *domain.Case) bool {
	return actor.Role == platformauth.RoleDoctor && c.DoctorID != nil && *c.DoctorID == actor.ID
}

func isOwningPatient(actor *auth.User, c *domain.Case) bool {
	return actor.Role == platformauth.RolePatient && c.PatientID == actor.ID
}

// classify maps infrastructure failures into the service error taxonomy.
// Deadline expiry becomes a Timeout; anything already classified passes
// through unchanged.
func (s *Service) classify(ctx context.Context, err error, operation string) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Timeout(operation)
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	return errors.Internal(fmt.Errorf("%s: %w", operation, err))
}

// audit records one entry for a committed operation. The recorder is best
// effort and never returns an error. The recorder counts the entry once it
// is actually appended.
func (s *Service) audit(ctx context.Context, actor *auth.User, action string, caseID types.ID, details map[string]any) {
	id := caseID
	s.recorder.Record(ctx, audit.NewEntry(actor.ID, actor.Role, action, audit.ResourceTypeCase, &id, details))
}

// publish drains the aggregate's domain events onto the event bus
func (s *Service) publish(ctx context.Context, actor *auth.User, c *domain.Case) {
	domainEvents := c.GetDomainEvents()
	if s.bus == nil {
		return
	}

	for _, de := range domainEvents {
		event := events.NewEvent("case."+string(de.Type), "case-service", de).
			WithActor(actor.ID, string(actor.Role))
		if err := s.bus.Publish(ctx, event); err != nil {
			s.logger.Warn().Err(err).
				Str("case_id", c.ID.String()).
				Str("event_type", string(de.Type)).
				Msg("failed to publish domain event")
		}
	}
}

// notifyAssignment fans out assignment notifications to the doctor and the
// patient. Dispatch is asynchronous and best effort.
func (s *Service) notifyAssignment(ctx context.Context, c *domain.Case, doctor *user.User) {
	if s.notifier == nil {
		return
	}

	s.notifier.Notify(ctx, &notification.Notification{
		RecipientID: doctor.ID,
		Channel:     notification.ChannelEmail,
		Kind:        notification.KindCaseAssigned,
		Subject:     fmt.Sprintf("New case assigned: %s", c.CaseNumber),
		Body:        fmt.Sprintf("Case %s (%s) has been assigned to you for review.", c.CaseNumber, c.Specialty),
		Data:        map[string]any{"case_id": c.ID},
	})
	s.notifier.Notify(ctx, &notification.Notification{
		RecipientID: c.PatientID,
		Channel:     notification.ChannelInApp,
		Kind:        notification.KindCaseAssigned,
		Subject:     fmt.Sprintf("A specialist was assigned to case %s", c.CaseNumber),
		Body:        "A reviewing specialist has been assigned to your case.",
		Data:        map[string]any{"case_id": c.ID},
	})
}

// notifyTerminal tells the patient their case reached a terminal state
func (s *Service) notifyTerminal(ctx context.Context, c *domain.Case) {
	if s.notifier == nil {
		return
	}

	kind := notification.KindCaseCompleted
	body := "Your second opinion review is complete."
	if c.Status == domain.StatusCancelled {
		kind = notification.KindCaseCancelled
		body = "Your case has been cancelled."
	}

	s.notifier.Notify(ctx, &notification.Notification{
		RecipientID: c.PatientID,
		Channel:     notification.ChannelInApp,
		Kind:        kind,
		Subject:     fmt.Sprintf("Case %s %s", c.CaseNumber, c.Status),
		Body:        body,
		Data:        map[string]any{"case_id": c.ID},
	})
}
