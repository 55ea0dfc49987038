package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novadesk/triage/internal/config"
	"github.com/novadesk/triage/internal/domain"
)

// JobQueue is the work queue the pool drains.
type JobQueue interface {
	Claim(ctx context.Context, workerID string, limit, maxAttempts int) ([]domain.Job, error)
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, cause string, maxAttempts int) error
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Processor runs the pipeline for one ticket.
type Processor interface {
	Process(ctx context.Context, ticketID uuid.UUID, opts domain.ProcessOptions) (*domain.Ticket, error)
}

// Pool polls the job queue and processes claimed tickets concurrently.
type Pool struct {
	queue     JobQueue
	processor Processor

	workers      int
	pollInterval time.Duration
	maxAttempts  int

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewPool creates a worker pool.
func NewPool(queue JobQueue, processor Processor, cfg config.PipelineConfig) *Pool {
	return &Pool{
		queue:        queue,
		processor:    processor,
		workers:      cfg.Workers,
		pollInterval: cfg.PollInterval(),
		maxAttempts:  cfg.MaxAttempts,
	}
}

// Start launches the workers. Starting a running pool is an error.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("pool already running")
	}
	p.running = true
	p.stop = make(chan struct{})

	for i := 0; i < p.workers; i++ {
		workerID := workerName(i)
		p.wg.Add(1)
		go p.run(workerID)
	}
	log.Printf("Pipeline: %d workers started (poll %s)", p.workers, p.pollInterval)
	return nil
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
	log.Printf("Pipeline: workers stopped")
}

func (p *Pool) run(workerID string) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.drain(workerID)
		}
	}
}

// drain claims and processes jobs until the queue is empty or the pool
// is stopped.
func (p *Pool) drain(workerID string) {
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		ctx := context.Background()
		jobs, err := p.queue.Claim(ctx, workerID, 1, p.maxAttempts)
		if err != nil {
			log.Printf("Pipeline: %s claim failed: %v", workerID, err)
			return
		}
		if len(jobs) == 0 {
			return
		}

		for _, job := range jobs {
			p.handle(ctx, workerID, job)
		}
	}
}

func (p *Pool) handle(ctx context.Context, workerID string, job domain.Job) {
	_, err := p.processor.Process(ctx, job.TicketID, job.Options)
	if err != nil {
		log.Printf("Pipeline: %s job %s attempt %d failed: %v", workerID, job.ID, job.Attempts, err)
		if failErr := p.queue.Fail(ctx, job.ID, err.Error(), p.maxAttempts); failErr != nil {
			log.Printf("Pipeline: %s job %s not marked failed: %v", workerID, job.ID, failErr)
		}
		return
	}
	if err := p.queue.Complete(ctx, job.ID); err != nil {
		log.Printf("Pipeline: %s job %s not marked complete: %v", workerID, job.ID, err)
	}
}

func workerName(i int) string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, i)
}
