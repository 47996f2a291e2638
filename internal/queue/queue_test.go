package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/siteplanhq/notify/internal/channel"
	"github.com/siteplanhq/notify/internal/model"
	"github.com/siteplanhq/notify/internal/repo"
)

// fakeDispatcher records dispatch order and returns per-job scripted
// outcomes.
type fakeDispatcher struct {
	mu       sync.Mutex
	order    []string
	failIDs  map[string]bool
	panicIDs map[string]bool
}

var _ Dispatcher = (*fakeDispatcher)(nil)

func (f *fakeDispatcher) Dispatch(_ context.Context, job *model.Job) (channel.Result, error) {
	f.mu.Lock()
	f.order = append(f.order, job.ID)
	f.mu.Unlock()

	if f.panicIDs[job.ID] {
		panic("poisoned job")
	}
	if f.failIDs[job.ID] {
		return channel.Result{Status: model.DeliveryFailed, Detail: "provider rejected"}, nil
	}
	return channel.Result{Status: model.DeliverySent, ProviderMessageID: "pm-" + job.ID}, nil
}

func (f *fakeDispatcher) dispatched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []model.DeliveryLogEntry
}

var _ repo.DeliveryLogRepository = (*fakeLogRepo)(nil)

func (f *fakeLogRepo) Append(_ context.Context, e *model.DeliveryLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeLogRepo) List(_ context.Context, _, _ int) ([]model.DeliveryLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.DeliveryLogEntry(nil), f.entries...), nil
}

func (f *fakeLogRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func newTestQueue(t *testing.T, d Dispatcher, logs repo.DeliveryLogRepository, opts Options) *Queue {
	t.Helper()

	q, err := New(d, logs, opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return q
}

func waitForEntries(t *testing.T, logs *fakeLogRepo, n int, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if logs.count() >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %d log entries (got %d)", n, logs.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func job(id string, kind model.JobKind) *model.Job {
	return &model.Job{ID: id, Kind: kind, Recipient: "+361234567", Body: "body-" + id}
}

func TestWorker_FIFOAndIsolation(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{failIDs: map[string]bool{"J2": true}}
	logs := &fakeLogRepo{}
	q := newTestQueue(t, d, logs, Options{})

	w, err := NewWorker(q, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWorker returned error: %v", err)
	}

	q.Enqueue(job("J1", model.KindSMS))
	q.Enqueue(job("J2", model.KindSMS))
	q.Enqueue(job("J3", model.KindSMS))

	if ok := w.Start(); !ok {
		t.Fatalf("expected Start() true")
	}
	defer w.Stop()

	waitForEntries(t, logs, 3, time.Second)

	entries, _ := logs.List(context.Background(), 0, 0)
	if len(entries) != 3 {
		t.Fatalf("expected exactly 3 log entries, got %d", len(entries))
	}

	// FIFO: log entries appended in enqueue order.
	for i, want := range []string{"J1", "J2", "J3"} {
		if entries[i].JobID != want {
			t.Fatalf("entry %d: expected job %s, got %s", i, want, entries[i].JobID)
		}
	}

	// One bad job does not block its neighbors.
	if entries[0].Status != model.DeliverySent {
		t.Fatalf("expected J1 sent, got %+v", entries[0])
	}
	if entries[1].Status != model.DeliveryFailed || entries[1].ErrorDetail != "provider rejected" {
		t.Fatalf("expected J2 failed with detail, got %+v", entries[1])
	}
	if entries[2].Status != model.DeliverySent {
		t.Fatalf("expected J3 sent, got %+v", entries[2])
	}
}

func TestWorker_PanicContained(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{panicIDs: map[string]bool{"J1": true}}
	logs := &fakeLogRepo{}
	q := newTestQueue(t, d, logs, Options{})

	w, err := NewWorker(q, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWorker returned error: %v", err)
	}

	q.Enqueue(job("J1", model.KindSMS))
	q.Enqueue(job("J2", model.KindSMS))

	if ok := w.Start(); !ok {
		t.Fatalf("expected Start() true")
	}
	defer w.Stop()

	waitForEntries(t, logs, 2, time.Second)

	entries, _ := logs.List(context.Background(), 0, 0)
	if entries[0].Status != model.DeliveryFailed {
		t.Fatalf("expected panicking job logged as failed, got %+v", entries[0])
	}
	if entries[1].Status != model.DeliverySent {
		t.Fatalf("expected worker to survive the panic, got %+v", entries[1])
	}
}

func TestWorker_FallbackEnqueuedOnFailure(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{failIDs: map[string]bool{"J1": true}}
	logs := &fakeLogRepo{}
	q := newTestQueue(t, d, logs, Options{})

	w, err := NewWorker(q, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWorker returned error: %v", err)
	}

	primary := job("J1", model.KindWhatsAppTemplate)
	primary.Fallback = job("J1-fb", model.KindSMS)
	q.Enqueue(primary)

	if ok := w.Start(); !ok {
		t.Fatalf("expected Start() true")
	}
	defer w.Stop()

	waitForEntries(t, logs, 2, time.Second)

	order := d.dispatched()
	if len(order) != 2 || order[0] != "J1" || order[1] != "J1-fb" {
		t.Fatalf("expected fallback dispatched after primary, got %v", order)
	}

	entries, _ := logs.List(context.Background(), 0, 0)
	if entries[1].JobID != "J1-fb" || entries[1].Status != model.DeliverySent {
		t.Fatalf("expected fallback sent, got %+v", entries[1])
	}
}

func TestWorker_NoFallbackAfterSuccess(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	logs := &fakeLogRepo{}
	q := newTestQueue(t, d, logs, Options{})

	w, err := NewWorker(q, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWorker returned error: %v", err)
	}

	primary := job("J1", model.KindWhatsAppTemplate)
	primary.Fallback = job("J1-fb", model.KindSMS)
	q.Enqueue(primary)

	if ok := w.Start(); !ok {
		t.Fatalf("expected Start() true")
	}
	defer w.Stop()

	waitForEntries(t, logs, 1, time.Second)
	time.Sleep(50 * time.Millisecond)

	if got := d.dispatched(); len(got) != 1 {
		t.Fatalf("expected only the primary dispatched, got %v", got)
	}
}

func TestWorker_StartStop(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, &fakeDispatcher{}, &fakeLogRepo{}, Options{})
	w, err := NewWorker(q, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWorker returned error: %v", err)
	}

	if w.IsRunning() {
		t.Fatalf("expected worker not running initially")
	}
	if ok := w.Start(); !ok {
		t.Fatalf("expected Start() true on first call")
	}
	if ok := w.Start(); ok {
		t.Fatalf("expected Start() false when already running")
	}
	if ok := w.Stop(); !ok {
		t.Fatalf("expected Stop() true on first call")
	}
	if ok := w.Stop(); ok {
		t.Fatalf("expected Stop() false when already stopped")
	}
}

func TestQueue_EnqueueNeverBlocks(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, &fakeDispatcher{}, &fakeLogRepo{}, Options{})

	// No worker running; the queue just grows.
	for i := 0; i < 1000; i++ {
		q.Enqueue(job("J", model.KindSMS))
	}
	if q.Len() != 1000 {
		t.Fatalf("expected 1000 queued jobs, got %d", q.Len())
	}
}

func TestQueue_SynchronousModeDispatchesInline(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	logs := &fakeLogRepo{}
	q := newTestQueue(t, d, logs, Options{Synchronous: true})

	q.Enqueue(job("J1", model.KindSMS))

	// No worker involved; the attempt and its log entry already happened.
	if got := d.dispatched(); len(got) != 1 || got[0] != "J1" {
		t.Fatalf("expected inline dispatch, got %v", got)
	}
	if logs.count() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.count())
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue in synchronous mode, got %d", q.Len())
	}
}

func TestNew_InvalidArgs(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &fakeLogRepo{}, Options{}); err == nil {
		t.Fatalf("expected error for nil dispatcher")
	}
	if _, err := New(&fakeDispatcher{}, nil, Options{}); err == nil {
		t.Fatalf("expected error for nil logs repository")
	}
	if _, err := NewWorker(nil, time.Second); err == nil {
		t.Fatalf("expected error for nil queue")
	}

	q := newTestQueue(t, &fakeDispatcher{}, &fakeLogRepo{}, Options{})
	if _, err := NewWorker(q, 0); err == nil {
		t.Fatalf("expected error for non-positive idle wait")
	}
}
