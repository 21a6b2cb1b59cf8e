package notification

import (
	"time"

	"github.com/medsecop/platform/internal/shared/types"
)

// Channel is the delivery channel for a notification
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
)

// Status is the delivery status of a notification
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Kind identifies what a notification is about
type Kind string

const (
	KindCaseAssigned  Kind = "case_assigned"
	KindCaseCompleted Kind = "case_completed"
	KindCaseCancelled Kind = "case_cancelled"
)

// Notification is a message queued for delivery to a user
type Notification struct {
	ID          types.ID       `json:"id"`
	RecipientID types.ID       `json:"recipient_id"`
	Channel     Channel        `json:"channel"`
	Kind        Kind           `json:"kind"`
	Subject     string         `json:"subject"`
	Body        string         `json:"body"`
	Data        map[string]any `json:"data,omitempty"`

	Status       Status     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
}

// Stats tracks delivery counters for the service
type Stats struct {
	TotalSent   int64              `json:"total_sent"`
	TotalFailed int64              `json:"total_failed"`
	ByChannel   map[Channel]int64  `json:"by_channel"`
	ByKind      map[Kind]int64     `json:"by_kind"`
}
