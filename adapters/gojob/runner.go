package gojob

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWiki15/server-party-polaris/core"
)

// SweepService is the slice of the settlement service the job worker drives.
type SweepService interface {
	SweepJournal(ctx context.Context, req core.SweepJournalRequest) (core.SweepReport, error)
	CheckFunding(ctx context.Context, eventID string) (core.FundingStatus, error)
}

// SweepScheduler enqueues a settlement sweep job on a fixed interval. The
// queue deduplicates on idempotency key, so a sweep still running when the
// next tick fires is not queued twice.
type SweepScheduler struct {
	enqueuer core.JobEnqueuer
	interval time.Duration
	request  core.SweepJournalRequest
	logger   core.Logger
}

func NewSweepScheduler(enqueuer core.JobEnqueuer, interval time.Duration, req core.SweepJournalRequest, logger core.Logger) *SweepScheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SweepScheduler{
		enqueuer: enqueuer,
		interval: interval,
		request:  req,
		logger:   logger,
	}
}

func (s *SweepScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueueSweep(ctx)
		}
	}
}

func (s *SweepScheduler) enqueueSweep(ctx context.Context) {
	if s == nil || s.enqueuer == nil {
		return
	}
	msg := NewSweepMessage(s.request.OlderThan, s.request.Limit)
	if err := s.enqueuer.Enqueue(ctx, msg); err != nil && s.logger != nil {
		s.logger.Error("sweep job enqueue failed", "error", err.Error())
	}
}

// Worker drains the job queue and dispatches settlement jobs. A sweep that
// escalates stale intents queues a funding recheck for each affected event,
// since an abandoned settlement often points at a drained treasury.
type Worker struct {
	dequeuer core.JobDequeuer
	enqueuer core.JobEnqueuer
	service  SweepService
	hook     core.JobWorkerHook
	logger   core.Logger
}

func NewWorker(dequeuer core.JobDequeuer, enqueuer core.JobEnqueuer, service SweepService, logger core.Logger) *Worker {
	return &Worker{
		dequeuer: dequeuer,
		enqueuer: enqueuer,
		service:  service,
		logger:   logger,
	}
}

// WithHook registers lifecycle callbacks for every processed job.
func (w *Worker) WithHook(hook core.JobWorkerHook) *Worker {
	w.hook = hook
	return w
}

func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		delivery, err := w.dequeuer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logError("job dequeue failed", err)
			continue
		}
		w.process(ctx, delivery)
	}
}

func (w *Worker) process(ctx context.Context, delivery core.JobDelivery) {
	if delivery == nil {
		return
	}
	msg := delivery.Message()
	if msg == nil {
		_ = delivery.Ack(ctx)
		return
	}
	startedAt := time.Now().UTC()
	if w.hook != nil {
		w.hook.OnStart(ctx, core.JobWorkerEvent{Message: msg, StartedAt: startedAt})
	}

	err := w.dispatch(ctx, msg)
	event := core.JobWorkerEvent{
		Message:   msg,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Err:       err,
	}
	if err != nil {
		if w.hook != nil {
			w.hook.OnFailure(ctx, event)
		}
		w.logError("job "+msg.JobID+" failed", err)
		// A failed sweep is not redelivered: the scheduler enqueues a fresh
		// one next tick, and a poisoned payload must not loop.
		if nackErr := delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     err.Error(),
		}); nackErr != nil {
			w.logError("job nack failed", nackErr)
		}
		return
	}
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
	if ackErr := delivery.Ack(ctx); ackErr != nil {
		w.logError("job ack failed", ackErr)
	}
}

func (w *Worker) dispatch(ctx context.Context, msg *core.JobExecutionMessage) error {
	switch msg.JobID {
	case JobIDSettlementSweep:
		req, err := SweepRequestFromMessage(msg)
		if err != nil {
			return err
		}
		report, err := w.service.SweepJournal(ctx, req)
		if err != nil {
			return err
		}
		w.queueFundingRechecks(ctx, report.Events)
		return nil
	case JobIDFundingRecheck:
		eventID, err := EventIDFromMessage(msg)
		if err != nil {
			return err
		}
		status, err := w.service.CheckFunding(ctx, eventID)
		if err != nil {
			return err
		}
		if !status.Funded && w.logger != nil {
			w.logger.Info("event wallet remains underfunded after escalation",
				"event_id", eventID,
				"required_hbar", status.RequiredHbar.String(),
				"current_hbar", status.CurrentHbar.String(),
			)
		}
		return nil
	default:
		return fmt.Errorf("gojob: unknown job id %q", msg.JobID)
	}
}

func (w *Worker) queueFundingRechecks(ctx context.Context, eventIDs []string) {
	if w.enqueuer == nil {
		return
	}
	for _, eventID := range eventIDs {
		if err := w.enqueuer.Enqueue(ctx, NewFundingRecheckMessage(eventID)); err != nil {
			w.logError("funding recheck enqueue failed", err)
		}
	}
}

func (w *Worker) logError(msg string, err error) {
	if w == nil || w.logger == nil {
		return
	}
	w.logger.Error(msg, "error", err.Error())
}
