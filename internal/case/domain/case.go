package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/medsecop/platform/internal/shared/errors"
	"github.com/medsecop/platform/internal/shared/types"
)

// Specialty defines the medical specialty a case is routed to
type Specialty string

const (
	SpecialtyCardiology  Specialty = "CARDIOLOGY"
	SpecialtyOncology    Specialty = "ONCOLOGY"
	SpecialtyNeurology   Specialty = "NEUROLOGY"
	SpecialtyRadiology   Specialty = "RADIOLOGY"
	SpecialtyOrthopedics Specialty = "ORTHOPEDICS"
	SpecialtyDermatology Specialty = "DERMATOLOGY"
	SpecialtyGeneral     Specialty = "GENERAL"
)

// Status defines the lifecycle state of a case
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusAssigned  Status = "assigned"
	StatusInReview  Status = "in_review"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Priority defines case priority. Informational only, never gates transitions.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// statusTransitions is the authoritative transition table. Any status change
// not listed here is rejected, including on the generic update path.
var statusTransitions = map[Status][]Status{
	StatusDraft:     {StatusSubmitted, StatusCancelled},
	StatusSubmitted: {StatusAssigned, StatusCancelled},
	StatusAssigned:  {StatusInReview, StatusCancelled},
	StatusInReview:  {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransition reports whether from -> to is a legal status change
func CanTransition(from, to Status) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transitions leave the given status
func IsTerminal(s Status) bool {
	return len(statusTransitions[s]) == 0
}

// EventType defines the domain events a case can emit
type EventType string

const (
	EventCreated        EventType = "created"
	EventUpdated        EventType = "updated"
	EventSubmitted      EventType = "submitted"
	EventDoctorAssigned EventType = "doctor_assigned"
	EventReviewStarted  EventType = "review_started"
	EventCompleted      EventType = "completed"
	EventCancelled      EventType = "cancelled"
)

// Event is a domain event for publishing to the event stream
type Event struct {
	Type      EventType      `json:"type"`
	CaseID    types.ID       `json:"case_id"`
	ActorID   types.ID       `json:"actor_id"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Case is the aggregate root for second-opinion cases
type Case struct {
	ID          types.ID  `json:"id"`
	CaseNumber  string    `json:"case_number"`
	PatientID   types.ID  `json:"patient_id"`
	DoctorID    *types.ID `json:"doctor_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Specialty   Specialty `json:"specialty"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`

	// Version increments on every persisted mutation; updates are
	// conditioned on the caller's last-seen version to prevent lost writes.
	Version int64 `json:"version"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Domain events (not persisted, drained by the publisher)
	domainEvents []Event
}

// ValidateContent checks the patient-supplied required fields. The returned
// map is empty when all fields are present.
func ValidateContent(title, description string, specialty Specialty) map[string]string {
	details := make(map[string]string)
	if strings.TrimSpace(title) == "" {
		details["title"] = "required"
	}
	if strings.TrimSpace(description) == "" {
		details["description"] = "required"
	}
	if strings.TrimSpace(string(specialty)) == "" {
		details["specialty"] = "required"
	}
	return details
}

// NewCase creates a new case owned by the given patient. When submit is true
// the case starts its life submitted rather than draft.
func NewCase(patientID types.ID, title, description string, specialty Specialty, priority Priority, submit bool) (*Case, error) {
	if details := ValidateContent(title, description, specialty); len(details) > 0 {
		return nil, errors.Validation("missing required fields", details)
	}
	if patientID.IsZero() {
		return nil, errors.Validation("missing required fields", map[string]string{"patient_id": "required"})
	}
	if priority == "" {
		priority = PriorityMedium
	}

	now := time.Now()
	status := StatusDraft
	if submit {
		status = StatusSubmitted
	}

	c := &Case{
		ID:          types.NewID(),
		CaseNumber:  generateCaseNumber(specialty),
		PatientID:   patientID,
		Title:       title,
		Description: description,
		Specialty:   specialty,
		Status:      status,
		Priority:    priority,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	c.addEvent(EventCreated, patientID, map[string]any{
		"status":    status,
		"specialty": specialty,
	})
	if submit {
		c.addEvent(EventSubmitted, patientID, nil)
	}

	return c, nil
}

// Submit transitions the case from draft to submitted
func (c *Case) Submit(actorID types.ID) error {
	if err := c.transition(StatusSubmitted); err != nil {
		return err
	}
	c.addEvent(EventSubmitted, actorID, nil)
	return nil
}

// AssignDoctor sets the reviewing doctor and transitions the case to assigned.
// The caller is responsible for verifying the doctor is active and qualified.
func (c *Case) AssignDoctor(doctorID, actorID types.ID) error {
	if doctorID.IsZero() {
		return errors.Validation("missing required fields", map[string]string{"doctor_id": "required"})
	}

	previous := c.Status
	if err := c.transition(StatusAssigned); err != nil {
		return err
	}

	c.DoctorID = &doctorID
	c.addEvent(EventDoctorAssigned, actorID, map[string]any{
		"doctor_id":       doctorID,
		"previous_status": previous,
	})
	return nil
}

// StartReview transitions the case from assigned to in_review
func (c *Case) StartReview(actorID types.ID) error {
	if err := c.transition(StatusInReview); err != nil {
		return err
	}
	c.addEvent(EventReviewStarted, actorID, nil)
	return nil
}

// Complete transitions the case into its completed terminal state and stamps
// CompletedAt. CompletedAt is set exactly once and never changes afterwards.
func (c *Case) Complete(actorID types.ID) error {
	previous := c.Status
	if err := c.transition(StatusCompleted); err != nil {
		return err
	}

	now := time.Now()
	c.CompletedAt = &now
	c.addEvent(EventCompleted, actorID, map[string]any{
		"previous_status": previous,
	})
	return nil
}

// Cancel transitions the case into its cancelled terminal state. Any assigned
// doctor is released so the doctor/status invariant holds.
func (c *Case) Cancel(actorID types.ID) error {
	previous := c.Status
	if err := c.transition(StatusCancelled); err != nil {
		return err
	}

	data := map[string]any{"previous_status": previous}
	if c.DoctorID != nil {
		data["released_doctor_id"] = *c.DoctorID
		c.DoctorID = nil
	}
	c.addEvent(EventCancelled, actorID, data)
	return nil
}

// ChangeStatus applies a status change requested on the generic update path.
// Assignment is excluded here: it needs a doctor and goes through AssignDoctor.
func (c *Case) ChangeStatus(to Status, actorID types.ID) error {
	switch to {
	case StatusSubmitted:
		return c.Submit(actorID)
	case StatusInReview:
		return c.StartReview(actorID)
	case StatusCompleted:
		return c.Complete(actorID)
	case StatusCancelled:
		return c.Cancel(actorID)
	default:
		return errors.InvalidTransition(string(c.Status), string(to))
	}
}

// Touch refreshes the update timestamp and records a generic update event
func (c *Case) Touch(actorID types.ID, changed []string) {
	c.UpdatedAt = time.Now()
	c.addEvent(EventUpdated, actorID, map[string]any{
		"changed_fields": changed,
	})
}

// CheckInvariants verifies the structural invariants of the aggregate.
// Used by tests and as a guard before persistence.
func (c *Case) CheckInvariants() error {
	doctorStates := c.Status == StatusAssigned || c.Status == StatusInReview || c.Status == StatusCompleted
	if (c.DoctorID != nil) != doctorStates {
		return fmt.Errorf("doctor_id presence does not match status %s", c.Status)
	}
	if (c.CompletedAt != nil) != (c.Status == StatusCompleted) {
		return fmt.Errorf("completed_at presence does not match status %s", c.Status)
	}
	return nil
}

// GetDomainEvents returns and clears domain events
func (c *Case) GetDomainEvents() []Event {
	events := c.domainEvents
	c.domainEvents = nil
	return events
}

func (c *Case) transition(to Status) error {
	if !CanTransition(c.Status, to) {
		return errors.InvalidTransition(string(c.Status), string(to))
	}
	c.Status = to
	c.UpdatedAt = time.Now()
	return nil
}

func (c *Case) addEvent(eventType EventType, actorID types.ID, data map[string]any) {
	c.domainEvents = append(c.domainEvents, Event{
		Type:      eventType,
		CaseID:    c.ID,
		ActorID:   actorID,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// generateCaseNumber generates a unique case number
func generateCaseNumber(specialty Specialty) string {
	// Format: PREFIX-YEAR-SEQUENCE (e.g. CAR-2026-000001)
	prefix := map[Specialty]string{
		SpecialtyCardiology:  "CAR",
		SpecialtyOncology:    "ONC",
		SpecialtyNeurology:   "NEU",
		SpecialtyRadiology:   "RAD",
		SpecialtyOrthopedics: "ORT",
		SpecialtyDermatology: "DER",
		SpecialtyGeneral:     "GEN",
	}

	p, ok := prefix[specialty]
	if !ok {
		p = "GEN"
	}

	year := time.Now().Year()
	// In production, this would use a database sequence
	seq := time.Now().UnixNano() % 1000000

	return fmt.Sprintf("%s-%d-%06d", p, year, seq)
}
