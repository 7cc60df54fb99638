// Package audit writes audit-log rows as a best-effort side effect of
// mutations. The core mutation's outcome never depends on the audit write:
// a full queue or a failed insert is logged as a warning and swallowed.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"backoffice-backend/internal/domain"
	"backoffice-backend/internal/repository"
	"backoffice-backend/pkg/observability"
)

const auditTable = "audit_logs"

// Recorder queues audit entries and writes them from a background worker.
type Recorder struct {
	client  repository.DataClient
	logger  *zap.Logger
	metrics *observability.Metrics

	queue chan domain.AuditLog
	done  chan struct{}
	wg    sync.WaitGroup

	// writeTimeout bounds each background insert so a stuck data client
	// cannot wedge the worker forever.
	writeTimeout time.Duration
}

// NewRecorder starts the worker. queueSize bounds the backlog; entries
// beyond it are dropped and counted.
func NewRecorder(client repository.DataClient, queueSize int, logger *zap.Logger, metrics *observability.Metrics) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		client:       client,
		logger:       logger,
		metrics:      metrics,
		queue:        make(chan domain.AuditLog, queueSize),
		done:         make(chan struct{}),
		writeTimeout: 5 * time.Second,
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record enqueues one entry without blocking the caller.
func (r *Recorder) Record(entry domain.AuditLog) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	select {
	case r.queue <- entry:
		r.metrics.AuditQueueDepth(len(r.queue))
	default:
		r.metrics.AuditDropped()
		r.logger.Warn("audit queue full, entry dropped",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource))
	}
}

// Close stops the worker after draining the queue.
func (r *Recorder) Close() {
	close(r.done)
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case entry := <-r.queue:
			r.write(entry)
		case <-r.done:
			// Drain what is already queued, then stop.
			for {
				select {
				case entry := <-r.queue:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry domain.AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	if _, err := r.client.Insert(ctx, entry.CompanyID, auditTable, entry); err != nil {
		r.logger.Warn("audit write failed",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource),
			zap.String("correlation_id", entry.CorrelationID),
			zap.Error(err))
	}
	r.metrics.AuditQueueDepth(len(r.queue))
}
