package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medsecop/platform/internal/shared/metrics"
	"github.com/medsecop/platform/internal/shared/types"
)

// Service delivers notifications asynchronously through channel providers.
// Delivery is best effort: a full buffer or a failing provider never blocks
// or fails the caller.
type Service struct {
	providers map[Channel]Provider
	logger    zerolog.Logger

	mu    sync.RWMutex
	stats Stats

	notifCh chan *Notification
	workers int

	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	config ServiceConfig
}

// ServiceConfig holds service configuration
type ServiceConfig struct {
	Workers       int
	BufferSize    int
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultServiceConfig returns default configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Workers:       2,
		BufferSize:    256,
		RetryAttempts: 3,
		RetryDelay:    10 * time.Second,
	}
}

// NewService creates a new notification service
func NewService(providers map[Channel]Provider, config ServiceConfig, logger zerolog.Logger) *Service {
	if config.Workers <= 0 {
		config.Workers = DefaultServiceConfig().Workers
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultServiceConfig().BufferSize
	}
	return &Service{
		providers: providers,
		logger:    logger.With().Str("component", "notification").Logger(),
		notifCh:   make(chan *Notification, config.BufferSize),
		workers:   config.Workers,
		stopCh:    make(chan struct{}),
		config:    config,
	}
}

// Start starts the delivery workers
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("service already started")
	}
	s.started = true
	s.mu.Unlock()

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	return nil
}

// Stop stops the delivery workers
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("service not started")
	}
	s.started = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	return nil
}

// Notify queues a notification for delivery. It never blocks: when the
// buffer is full the notification is dropped and logged.
func (s *Service) Notify(ctx context.Context, n *Notification) {
	if n.ID.IsZero() {
		n.ID = types.NewID()
	}
	if n.Channel == "" {
		n.Channel = ChannelInApp
	}
	n.Status = StatusPending
	n.CreatedAt = time.Now()

	select {
	case s.notifCh <- n:
	default:
		metrics.RecordNotification(string(n.Channel), "dropped")
		s.logger.Warn().
			Str("recipient_id", n.RecipientID.String()).
			Str("kind", string(n.Kind)).
			Msg("notification buffer full, dropping")
	}
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case n := <-s.notifCh:
			s.deliver(ctx, n)
		}
	}
}

func (s *Service) deliver(ctx context.Context, n *Notification) {
	provider, ok := s.providers[n.Channel]
	if !ok {
		s.fail(n, fmt.Errorf("no provider for channel %s", n.Channel))
		return
	}

	if err := provider.Send(ctx, n); err != nil {
		n.RetryCount++
		if n.RetryCount >= s.config.RetryAttempts {
			s.fail(n, err)
			return
		}

		// Re-queue after a delay
		go func() {
			time.Sleep(s.config.RetryDelay)
			select {
			case s.notifCh <- n:
			case <-s.stopCh:
			}
		}()
		return
	}

	now := time.Now()
	n.SentAt = &now
	n.Status = StatusSent
	metrics.RecordNotification(string(n.Channel), "sent")

	s.mu.Lock()
	s.record(n, true)
	s.mu.Unlock()
}

func (s *Service) fail(n *Notification, err error) {
	n.Status = StatusFailed
	n.ErrorMessage = err.Error()
	metrics.RecordNotification(string(n.Channel), "failed")
	s.logger.Warn().
		Err(err).
		Str("recipient_id", n.RecipientID.String()).
		Str("kind", string(n.Kind)).
		Msg("notification delivery failed")

	s.mu.Lock()
	s.record(n, false)
	s.mu.Unlock()
}

func (s *Service) record(n *Notification, success bool) {
	if s.stats.ByChannel == nil {
		s.stats.ByChannel = make(map[Channel]int64)
	}
	if s.stats.ByKind == nil {
		s.stats.ByKind = make(map[Kind]int64)
	}
	if success {
		s.stats.TotalSent++
	} else {
		s.stats.TotalFailed++
	}
	s.stats.ByChannel[n.Channel]++
	s.stats.ByKind[n.Kind]++
}

// GetStats returns a snapshot of delivery counters
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.stats
	snapshot.ByChannel = make(map[Channel]int64, len(s.stats.ByChannel))
	for k, v := range s.stats.ByChannel {
		snapshot.ByChannel[k] = v
	}
	snapshot.ByKind = make(map[Kind]int64, len(s.stats.ByKind))
	for k, v := range s.stats.ByKind {
		snapshot.ByKind[k] = v
	}
	return snapshot
}
