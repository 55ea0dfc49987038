package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/novadesk/triage/internal/pkg/distlock"
)

// SLAStore flags overdue tickets.
type SLAStore interface {
	MarkSLABreached(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// AgentCounters resets per-day agent statistics.
type AgentCounters interface {
	ResetDailyCounters(ctx context.Context) (int64, error)
}

// SLAScanner periodically sweeps for tickets past their SLA deadline,
// bumping their priority and flagging them. A distributed lock keeps
// multiple instances from double-scanning.
type SLAScanner struct {
	tickets  SLAStore
	queue    JobQueue
	lock     distlock.DistLock
	interval time.Duration
	staleAge time.Duration
}

// NewSLAScanner creates a scanner. The lock may be nil in single-node
// deployments.
func NewSLAScanner(tickets SLAStore, queue JobQueue, lock distlock.DistLock, interval time.Duration) *SLAScanner {
	return &SLAScanner{
		tickets:  tickets,
		queue:    queue,
		lock:     lock,
		interval: interval,
		staleAge: 10 * time.Minute,
	}
}

// Run blocks until ctx is done, scanning on every tick.
func (s *SLAScanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("SLAScanner: running every %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *SLAScanner) scan(ctx context.Context) {
	if s.lock != nil {
		ok, err := s.lock.Acquire(ctx)
		if err != nil {
			log.Printf("SLAScanner: lock error: %v", err)
			return
		}
		if !ok {
			return
		}
		defer s.lock.Release(ctx)
	}

	ids, err := s.tickets.MarkSLABreached(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("SLAScanner: sweep failed: %v", err)
		return
	}
	if len(ids) > 0 {
		log.Printf("SLAScanner: %d tickets breached SLA", len(ids))
	}

	if s.queue != nil {
		if n, err := s.queue.ReleaseStale(ctx, s.staleAge); err != nil {
			log.Printf("SLAScanner: stale job release failed: %v", err)
		} else if n > 0 {
			log.Printf("SLAScanner: requeued %d stale jobs", n)
		}
	}
}

// DailyReset zeroes agent day counters at midnight UTC.
type DailyReset struct {
	agents AgentCounters
	lock   distlock.DistLock
}

// NewDailyReset creates the scheduler. The lock may be nil.
func NewDailyReset(agents AgentCounters, lock distlock.DistLock) *DailyReset {
	return &DailyReset{agents: agents, lock: lock}
}

// Run blocks until ctx is done, resetting once per UTC day.
func (d *DailyReset) Run(ctx context.Context) {
	for {
		now := time.Now().UTC()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)

		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
			d.reset(ctx)
		}
	}
}

func (d *DailyReset) reset(ctx context.Context) {
	if d.lock != nil {
		ok, err := d.lock.Acquire(ctx)
		if err != nil || !ok {
			return
		}
		defer d.lock.Release(ctx)
	}

	n, err := d.agents.ResetDailyCounters(ctx)
	if err != nil {
		log.Printf("DailyReset: %v", err)
		return
	}
	log.Printf("DailyReset: counters cleared on %d agents", n)
}
