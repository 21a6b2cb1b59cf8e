package audit

import (
	"context"
	"sync"
	"time"

	"github.com/medsecop/platform/internal/shared/metrics"
	"github.com/rs/zerolog"
)

// Recorder accepts audit entries from domain services. Record must never
// fail the caller: audit durability is a best-effort side channel and is
// deliberately decoupled from the mutation it describes.
type Recorder interface {
	Record(ctx context.Context, entry *Entry)
}

// AsyncRecorder buffers entries on a channel and appends them to the store
// from a background worker. Backpressure and store failures drop the entry,
// count it, and log it to the operational channel.
type AsyncRecorder struct {
	store  Store
	inbox  chan *Entry
	logger zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// appendTimeout bounds each store write; the request context that produced
// the entry may already be gone by the time the worker runs.
const appendTimeout = 5 * time.Second

// NewAsyncRecorder creates a recorder and starts its worker
func NewAsyncRecorder(store Store, bufferSize int, logger zerolog.Logger) *AsyncRecorder {
	if bufferSize <= 0 {
		bufferSize = 1024
	}

	r := &AsyncRecorder{
		store:  store,
		inbox:  make(chan *Entry, bufferSize),
		logger: logger,
		done:   make(chan struct{}),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Record enqueues an entry without blocking. A full buffer drops the entry.
func (r *AsyncRecorder) Record(ctx context.Context, entry *Entry) {
	select {
	case <-r.done:
		metrics.RecordAuditDrop("closed")
		r.logger.Warn().Str("action", entry.Action).Msg("audit entry dropped: recorder closed")
	case r.inbox <- entry:
	default:
		metrics.RecordAuditDrop("backpressure")
		r.logger.Warn().Str("action", entry.Action).Msg("audit entry dropped: buffer full")
	}
}

// Close stops accepting entries and drains the buffer
func (r *AsyncRecorder) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}

func (r *AsyncRecorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case entry := <-r.inbox:
			r.append(entry)
		case <-r.done:
			// Drain whatever is still buffered
			for {
				select {
				case entry := <-r.inbox:
					r.append(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *AsyncRecorder) append(entry *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	if err := r.store.Append(ctx, entry); err != nil {
		metrics.RecordAuditDrop("store_error")
		r.logger.Error().Err(err).
			Str("action", entry.Action).
			Str("actor_id", entry.ActorID.String()).
			Msg("failed to append audit entry")
		return
	}

	metrics.RecordAuditEntry()
}

// SyncRecorder appends entries inline, swallowing failures. Useful in tests
// and small deployments where the write path is the database anyway.
type SyncRecorder struct {
	store  Store
	logger zerolog.Logger
}

// NewSyncRecorder creates a synchronous best-effort recorder
func NewSyncRecorder(store Store, logger zerolog.Logger) *SyncRecorder {
	return &SyncRecorder{store: store, logger: logger}
}

// Record appends the entry, logging and swallowing any failure
func (r *SyncRecorder) Record(ctx context.Context, entry *Entry) {
	if err := r.store.Append(ctx, entry); err != nil {
		metrics.RecordAuditDrop("store_error")
		r.logger.Error().Err(err).Str("action", entry.Action).Msg("failed to append audit entry")
		return
	}
	metrics.RecordAuditEntry()
}
