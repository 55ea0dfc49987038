package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/novadesk/triage/internal/domain"
)

func TestEnqueue(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO pipeline_jobs").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	repo := NewJobRepo(db)
	job, err := repo.Enqueue(context.Background(), uuid.New(), domain.ProcessOptions{SkipRouting: true})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.Status != domain.JobPending {
		t.Errorf("Status = %s, want pending", job.Status)
	}
	if !job.Options.SkipRouting {
		t.Error("options lost on enqueue")
	}
}

func TestClaim(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	jobID := uuid.New()
	ticketID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("UPDATE pipeline_jobs").
		WithArgs("worker-1", 5, 3).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "ticket_id", "options", "status", "attempts", "last_error",
			"claimed_by", "claimed_at", "created_at", "updated_at",
		}).AddRow(jobID, ticketID, []byte(`{"force_reprocess":true}`), "processing", 1, "",
			"worker-1", now, now, now))

	repo := NewJobRepo(db)
	jobs, err := repo.Claim(context.Background(), "worker-1", 5, 3)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("claimed %d jobs, want 1", len(jobs))
	}
	if jobs[0].TicketID != ticketID {
		t.Errorf("TicketID = %s, want %s", jobs[0].TicketID, ticketID)
	}
	if !jobs[0].Options.ForceReprocess {
		t.Error("options not decoded")
	}
	if jobs[0].Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", jobs[0].Attempts)
	}
}

func TestClaimEmptyQueue(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("UPDATE pipeline_jobs").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "ticket_id", "options", "status", "attempts", "last_error",
			"claimed_by", "claimed_at", "created_at", "updated_at",
		}))

	repo := NewJobRepo(db)
	jobs, err := repo.Claim(context.Background(), "worker-1", 5, 3)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("claimed %d jobs from an empty queue", len(jobs))
	}
}

func TestFailRequeuesUntilExhausted(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	jobID := uuid.New()
	mock.ExpectExec("UPDATE pipeline_jobs").
		WithArgs(jobID, "timeout", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewJobRepo(db)
	if err := repo.Fail(context.Background(), jobID, "timeout", 3); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
