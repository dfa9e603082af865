package service

import (
	"context"
	"sync"
	"time"

	"transport-connect/internal/domain/notification"
	"transport-connect/internal/general/logger"
	"transport-connect/internal/general/metrics"
	"transport-connect/internal/ports"
)

const deliverTimeout = 10 * time.Second

// Dispatcher is a bounded in-process queue in front of a NotificationSink.
// Notify never blocks; intents beyond the queue capacity are dropped.
type Dispatcher struct {
	logger  *logger.Logger
	sink    ports.NotificationSink
	queue   chan notification.Intent
	workers int

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

var _ ports.Notifier = (*Dispatcher)(nil)

func NewDispatcher(logger *logger.Logger, sink ports.NotificationSink, queueSize, workers int) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		logger:  logger,
		sink:    sink,
		queue:   make(chan notification.Intent, queueSize),
		workers: workers,
	}
}

// Start launches the workers. They drain the queue after ctx ends, then exit.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
	go func() {
		<-ctx.Done()
		d.mu.Lock()
		d.stopped = true
		close(d.queue)
		d.mu.Unlock()
	}()
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Notify enqueues in. It is dropped when invalid, when the queue is full or
// after shutdown began.
func (d *Dispatcher) Notify(ctx context.Context, in notification.Intent) {
	if err := in.Validate(); err != nil {
		d.logger.Warn(ctx, "notification_invalid", "Dropped invalid notification intent", err, nil)
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		metrics.NotificationsDropped.Inc()
		return
	}
	select {
	case d.queue <- in:
		metrics.NotificationsEnqueued.Inc()
	default:
		metrics.NotificationsDropped.Inc()
		d.logger.Warn(ctx, "notification_dropped", "Notification queue is full", nil,
			map[string]any{"user_id": in.UserID, "type": string(in.Kind)})
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	base := context.WithoutCancel(ctx)
	for in := range d.queue {
		dctx, cancel := context.WithTimeout(base, deliverTimeout)
		if err := d.sink.Deliver(dctx, in); err != nil {
			d.logger.Error(dctx, "notification_handoff_failed", "Failed to hand off notification", err,
				map[string]any{"user_id": in.UserID, "type": string(in.Kind)})
		}
		cancel()
	}
}
