package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Worker is the single consumer draining the queue in FIFO order. One
// long-lived goroutine, not one per job: dispatch order follows enqueue
// order. Running N workers against one queue would trade that ordering for
// throughput; this design wires exactly one.
type Worker struct {
	queue    *Queue
	idleWait time.Duration

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(q *Queue, idleWait time.Duration) (*Worker, error) {
	if q == nil {
		return nil, errors.New("queue must not be nil")
	}
	if idleWait <= 0 {
		return nil, errors.New("idleWait must be > 0")
	}
	return &Worker{
		queue:    q,
		idleWait: idleWait,
		done:     make(chan struct{}),
	}, nil
}

func (w *Worker) Start() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running.Store(true)

	go func() {
		defer close(w.done)

		slog.Info("notification worker started")

		for {
			job := w.queue.pop()
			if job == nil {
				// Bounded idle wait so the stop signal is noticed even
				// when nothing is enqueued.
				select {
				case <-ctx.Done():
					slog.Info("notification worker stopping", "abandoned", w.queue.Len())
					return
				case <-w.queue.wake:
				case <-time.After(w.idleWait):
				}
				continue
			}

			// An in-flight dispatch is allowed to finish after Stop; the
			// channel clients carry their own timeouts, bounding shutdown.
			w.queue.process(context.WithoutCancel(ctx), job)

			select {
			case <-ctx.Done():
				slog.Info("notification worker stopping", "abandoned", w.queue.Len())
				return
			default:
			}
		}
	}()

	return true
}

func (w *Worker) Stop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running.Load() {
		return false
	}

	w.cancel()
	<-w.done
	w.running.Store(false)

	slog.Info("notification worker stopped")
	return true
}

func (w *Worker) IsRunning() bool {
	return w.running.Load()
}
