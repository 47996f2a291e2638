// Package queue decouples "decide to notify" from "actually deliver": an
// unbounded in-process FIFO fed by the trigger layer and drained by one
// background worker. Each job gets exactly one delivery attempt and exactly
// one delivery-log entry; there is no automatic retry.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/siteplanhq/notify/internal/channel"
	"github.com/siteplanhq/notify/internal/model"
	"github.com/siteplanhq/notify/internal/repo"
)

// Dispatcher routes a job to the channel client matching its kind.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *model.Job) (channel.Result, error)
}

type Options struct {
	// Synchronous makes Enqueue dispatch inline instead of queueing.
	// Used when no background worker is configured; keeps one code path.
	Synchronous bool
}

type Queue struct {
	dispatcher Dispatcher
	logs       repo.DeliveryLogRepository
	sync       bool

	mu   sync.Mutex
	jobs []*model.Job

	// wake nudges an idle worker; buffered so Enqueue never blocks.
	wake chan struct{}
}

func New(dispatcher Dispatcher, logs repo.DeliveryLogRepository, opts Options) (*Queue, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher must not be nil")
	}
	if logs == nil {
		return nil, fmt.Errorf("logs repository must not be nil")
	}
	return &Queue{
		dispatcher: dispatcher,
		logs:       logs,
		sync:       opts.Synchronous,
		wake:       make(chan struct{}, 1),
	}, nil
}

// Enqueue appends a job. It never blocks and never fails; in synchronous
// mode it dispatches inline instead.
func (q *Queue) Enqueue(job *model.Job) {
	if job == nil {
		return
	}
	job.EnqueuedAt = time.Now().UTC()

	if q.sync {
		q.process(context.Background(), job)
		return
	}

	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *Queue) pop() *model.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job
}

// process runs one delivery attempt and appends its log entry. Panics and
// dispatch errors are contained here so a poisoned job never stalls the
// queue.
func (q *Queue) process(ctx context.Context, job *model.Job) {
	var res channel.Result

	func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("job dispatch panic recovered", "job_id", job.ID, "kind", job.Kind, "panic", r)
				res = channel.Result{
					Status: model.DeliveryFailed,
					Detail: fmt.Sprintf("panic: %v", r),
				}
			}
		}()

		var err error
		res, err = q.dispatcher.Dispatch(ctx, job)
		if err != nil {
			slog.Error("job dispatch failed", "job_id", job.ID, "kind", job.Kind, "error", err)
			res = channel.Result{
				Status: model.DeliveryFailed,
				Detail: err.Error(),
			}
		}
	}()

	entry := &model.DeliveryLogEntry{
		JobID:             job.ID,
		Kind:              job.Kind,
		Recipient:         job.Recipient,
		Body:              job.Body,
		Status:            res.Status,
		ProviderMessageID: res.ProviderMessageID,
		ErrorDetail:       res.Detail,
		AttemptedAt:       time.Now().UTC(),
	}
	if err := q.logs.Append(ctx, entry); err != nil {
		slog.Error("delivery log append failed", "job_id", job.ID, "error", err)
	}

	switch res.Status {
	case model.DeliverySent:
		slog.Info("job delivered", "job_id", job.ID, "kind", job.Kind, "provider_id", res.ProviderMessageID)
	default:
		slog.Warn("job not delivered", "job_id", job.ID, "kind", job.Kind, "status", res.Status, "detail", res.Detail)

		// One-level fallback declared by the trigger layer, e.g. a failed
		// WhatsApp template falling back to SMS. The fallback is its own
		// job with its own single attempt.
		if job.Fallback != nil {
			fb := job.Fallback
			fb.Fallback = nil
			slog.Info("enqueueing fallback job", "job_id", job.ID, "fallback_id", fb.ID, "fallback_kind", fb.Kind)
			q.Enqueue(fb)
		}
	}
}
