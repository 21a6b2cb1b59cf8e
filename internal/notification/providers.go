package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// Provider delivers a notification over a single channel
type Provider interface {
	Send(ctx context.Context, n *Notification) error
}

// LogProvider writes notifications to the structured log. It stands in for
// real email and push transports in development and tests.
type LogProvider struct {
	logger zerolog.Logger
}

// NewLogProvider creates a log-backed provider
func NewLogProvider(logger zerolog.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

// Send logs the notification
func (p *LogProvider) Send(ctx context.Context, n *Notification) error {
	p.logger.Info().
		Str("notification_id", n.ID.String()).
		Str("recipient_id", n.RecipientID.String()).
		Str("channel", string(n.Channel)).
		Str("kind", string(n.Kind)).
		Str("subject", n.Subject).
		Msg("notification delivered")
	return nil
}
