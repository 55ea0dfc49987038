package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is a pipeline job's lifecycle state.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// ProcessOptions tune a single pipeline run for a ticket.
type ProcessOptions struct {
	// SkipRouting leaves the ticket unassigned; every other step runs.
	SkipRouting bool `json:"skip_routing,omitempty"`
	// SkipSuggestions skips knowledge base retrieval.
	SkipSuggestions bool `json:"skip_suggestions,omitempty"`
	// ForceReprocess re-enriches a ticket that was already processed.
	ForceReprocess bool `json:"force_reprocess,omitempty"`
}

// Job is one queued pipeline run for a ticket.
type Job struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	TicketID  uuid.UUID      `json:"ticket_id" db:"ticket_id"`
	Options   ProcessOptions `json:"options" db:"options"`
	Status    JobStatus      `json:"status" db:"status"`
	Attempts  int            `json:"attempts" db:"attempts"`
	LastError string         `json:"last_error,omitempty" db:"last_error"`

	ClaimedBy string     `json:"claimed_by,omitempty" db:"claimed_by"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty" db:"claimed_at"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}
