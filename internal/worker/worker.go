// Package worker runs the detached side-effect pipeline for accepted
// booking mutations: audit record, notifications, event publication. The
// lifecycle controller enqueues; this worker consumes. Structurally, nothing
// here can block or revert a transition that has already committed.
package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/slotable/service-booking/internal/application"
	"github.com/slotable/service-booking/internal/domain/audit"
	booking "github.com/slotable/service-booking/internal/domain/booking"
	"github.com/slotable/service-booking/internal/events"
	"github.com/slotable/service-booking/internal/notification"
	"github.com/slotable/service-booking/internal/platform/kafka"
)

const (
	defaultQueueSize   = 256
	defaultTaskTimeout = 10 * time.Second
)

// SideEffectWorker consumes transition events from an in-process queue and
// executes their side effects under a per-task timeout. A task that exceeds
// the timeout is abandoned; its ledger entry records non-delivery.
type SideEffectWorker struct {
	queue       chan booking.TransitionEvent
	dispatcher  *notification.Dispatcher
	auditor     *application.AuditService
	producer    *kafka.Producer
	logger      *zap.Logger
	taskTimeout time.Duration
	wg          sync.WaitGroup
}

// New creates a SideEffectWorker with default queue size and task timeout.
func New(
	dispatcher *notification.Dispatcher,
	auditor *application.AuditService,
	producer *kafka.Producer,
	logger *zap.Logger,
) *SideEffectWorker {
	return &SideEffectWorker{
		queue:       make(chan booking.TransitionEvent, defaultQueueSize),
		dispatcher:  dispatcher,
		auditor:     auditor,
		producer:    producer,
		logger:      logger,
		taskTimeout: defaultTaskTimeout,
	}
}

// Enqueue hands a transition event to the worker without blocking. When the
// queue is full the task is dropped with a logged error; the primary write
// has already committed and is never affected.
func (w *SideEffectWorker) Enqueue(evt booking.TransitionEvent) {
	select {
	case w.queue <- evt:
	default:
		w.logger.Error("side-effect queue full, dropping task",
			zap.String("booking_id", evt.After.ID().String()),
			zap.String("event_type", string(evt.Type)),
		)
	}
}

// Start launches the consumer goroutine and returns immediately. The
// WaitGroup is registered before the goroutine exists so a Wait issued right
// after Start always observes it.
func (w *SideEffectWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// run consumes tasks until the context is cancelled, then drains what is
// already queued.
func (w *SideEffectWorker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case evt := <-w.queue:
					w.process(evt)
				default:
					return
				}
			}
		case evt := <-w.queue:
			w.process(evt)
		}
	}
}

// Wait blocks until Start has returned.
func (w *SideEffectWorker) Wait() {
	w.wg.Wait()
}

// process runs one task. The timeout context is detached from any request:
// the caller's response went out when the write committed.
func (w *SideEffectWorker) process(evt booking.TransitionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), w.taskTimeout)
	defer cancel()

	details, err := json.Marshal(evt.Changes)
	if err != nil {
		w.logger.Error("failed to marshal change set", zap.Error(err))
		details = nil
	}
	w.auditor.Record(ctx, evt.ActorID, evt.AuditAction, evt.After.ID(), audit.EntityTypeBooking, details)

	if evt.Type.Notifies() {
		w.dispatcher.Dispatch(ctx, evt)
	}

	w.publish(ctx, evt)
}

func (w *SideEffectWorker) publish(ctx context.Context, evt booking.TransitionEvent) {
	if w.producer == nil {
		return
	}

	ce, err := kafka.NewCloudEvent("service-booking", string(evt.Type), events.NewBookingEvent(evt))
	if err != nil {
		w.logger.Error("failed to create cloud event",
			zap.String("event_type", string(evt.Type)),
			zap.Error(err),
		)
		return
	}

	if err := w.producer.PublishEvent(ctx, events.TopicBookingEvents, evt.After.ID().String(), ce); err != nil {
		w.logger.Error("failed to publish booking event",
			zap.String("event_type", string(evt.Type)),
			zap.String("booking_id", evt.After.ID().String()),
			zap.Error(err),
		)
	}
}
