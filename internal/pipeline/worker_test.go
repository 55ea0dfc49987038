package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/novadesk/triage/internal/config"
	"github.com/novadesk/triage/internal/domain"
)

type fakeQueue struct {
	mu        sync.Mutex
	pending   []domain.Job
	completed []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeQueue) Claim(ctx context.Context, workerID string, limit, maxAttempts int) ([]domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil, nil
	}
	job := f.pending[0]
	f.pending = f.pending[1:]
	job.Attempts++
	return []domain.Job{job}, nil
}

func (f *fakeQueue) Complete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeQueue) Fail(ctx context.Context, id uuid.UUID, cause string, maxAttempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeQueue) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

type fakeProcessor struct {
	mu        sync.Mutex
	processed []uuid.UUID
	err       error
}

func (f *fakeProcessor) Process(ctx context.Context, ticketID uuid.UUID, opts domain.ProcessOptions) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.processed = append(f.processed, ticketID)
	return &domain.Ticket{ID: ticketID}, nil
}

func poolConfig() config.PipelineConfig {
	return config.PipelineConfig{
		Workers:             2,
		PollIntervalSeconds: 1,
		MaxAttempts:         3,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPoolProcessesJobs(t *testing.T) {
	queue := &fakeQueue{pending: []domain.Job{
		{ID: uuid.New(), TicketID: uuid.New()},
		{ID: uuid.New(), TicketID: uuid.New()},
	}}
	proc := &fakeProcessor{}

	pool := NewPool(queue, proc, poolConfig())
	pool.pollInterval = 20 * time.Millisecond

	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()

	waitFor(t, 2*time.Second, func() bool {
		queue.mu.Lock()
		defer queue.mu.Unlock()
		return len(queue.completed) == 2
	})

	proc.mu.Lock()
	defer proc.mu.Unlock()
	if len(proc.processed) != 2 {
		t.Errorf("processed = %d, want 2", len(proc.processed))
	}
}

func TestPoolMarksFailedJobs(t *testing.T) {
	queue := &fakeQueue{pending: []domain.Job{{ID: uuid.New(), TicketID: uuid.New()}}}
	proc := &fakeProcessor{err: errors.New("boom")}

	pool := NewPool(queue, proc, poolConfig())
	pool.pollInterval = 20 * time.Millisecond

	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()

	waitFor(t, 2*time.Second, func() bool {
		queue.mu.Lock()
		defer queue.mu.Unlock()
		return len(queue.failed) == 1
	})
}

func TestPoolDoubleStart(t *testing.T) {
	pool := NewPool(&fakeQueue{}, &fakeProcessor{}, poolConfig())
	pool.pollInterval = time.Hour

	if err := pool.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := pool.Start(); err == nil {
		t.Error("second Start must fail")
	}
	pool.Stop()

	// Restart after Stop is allowed.
	if err := pool.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	pool.Stop()
}
