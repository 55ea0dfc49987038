package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

func TestAssignTicket(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	agentID := uuid.New()
	ticketID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT current_load, max_load FROM agents").
		WithArgs(agentID).
		WillReturnRows(sqlmock.NewRows([]string{"current_load", "max_load"}).AddRow(3, 10))
	mock.ExpectQuery("SELECT assigned_agent_id FROM tickets").
		WithArgs(ticketID).
		WillReturnRows(sqlmock.NewRows([]string{"assigned_agent_id"}).AddRow(nil))
	mock.ExpectExec("UPDATE agents").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tickets").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewAgentRepo(db)
	if err := repo.AssignTicket(context.Background(), ticketID, agentID, 3); err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAssignTicketAtCapacity(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	agentID := uuid.New()
	ticketID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT current_load, max_load FROM agents").
		WithArgs(agentID).
		WillReturnRows(sqlmock.NewRows([]string{"current_load", "max_load"}).AddRow(10, 10))
	mock.ExpectQuery("SELECT assigned_agent_id FROM tickets").
		WithArgs(ticketID).
		WillReturnRows(sqlmock.NewRows([]string{"assigned_agent_id"}).AddRow(nil))
	mock.ExpectRollback()

	repo := NewAgentRepo(db)
	err := repo.AssignTicket(context.Background(), ticketID, agentID, 3)
	if !errors.Is(err, ErrAgentAtCapacity) {
		t.Fatalf("err = %v, want ErrAgentAtCapacity", err)
	}
}

func TestAssignTicketIdempotent(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	agentID := uuid.New()
	ticketID := uuid.New()

	// Ticket already belongs to the agent, even at full load: no writes.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT current_load, max_load FROM agents").
		WithArgs(agentID).
		WillReturnRows(sqlmock.NewRows([]string{"current_load", "max_load"}).AddRow(10, 10))
	mock.ExpectQuery("SELECT assigned_agent_id FROM tickets").
		WithArgs(ticketID).
		WillReturnRows(sqlmock.NewRows([]string{"assigned_agent_id"}).AddRow(agentID.String()))
	mock.ExpectCommit()

	repo := NewAgentRepo(db)
	if err := repo.AssignTicket(context.Background(), ticketID, agentID, 3); err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAssignTicketReleasesPreviousAgent(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	agentID := uuid.New()
	previousID := uuid.New()
	ticketID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT current_load, max_load FROM agents").
		WithArgs(agentID).
		WillReturnRows(sqlmock.NewRows([]string{"current_load", "max_load"}).AddRow(0, 10))
	mock.ExpectQuery("SELECT assigned_agent_id FROM tickets").
		WithArgs(ticketID).
		WillReturnRows(sqlmock.NewRows([]string{"assigned_agent_id"}).AddRow(previousID.String()))
	mock.ExpectExec("UPDATE agents").
		WillReturnResult(sqlmock.NewResult(0, 1)) // increment new agent
	mock.ExpectExec("UPDATE agents").
		WillReturnResult(sqlmock.NewResult(0, 1)) // release previous agent
	mock.ExpectExec("UPDATE tickets").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewAgentRepo(db)
	if err := repo.AssignTicket(context.Background(), ticketID, agentID, 3); err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAssignTicketRetriesSerializationFailure(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	agentID := uuid.New()
	ticketID := uuid.New()

	// First attempt deadlocks, second succeeds.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT current_load, max_load FROM agents").
		WithArgs(agentID).
		WillReturnError(&pq.Error{Code: "40P01"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT current_load, max_load FROM agents").
		WithArgs(agentID).
		WillReturnRows(sqlmock.NewRows([]string{"current_load", "max_load"}).AddRow(0, 10))
	mock.ExpectQuery("SELECT assigned_agent_id FROM tickets").
		WithArgs(ticketID).
		WillReturnRows(sqlmock.NewRows([]string{"assigned_agent_id"}).AddRow(nil))
	mock.ExpectExec("UPDATE agents").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tickets").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewAgentRepo(db)
	if err := repo.AssignTicket(context.Background(), ticketID, agentID, 3); err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAssignTicketUnknownAgent(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT current_load, max_load FROM agents").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	repo := NewAgentRepo(db)
	err := repo.AssignTicket(context.Background(), uuid.New(), uuid.New(), 3)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestResetDailyCounters(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE agents").
		WillReturnResult(sqlmock.NewResult(0, 7))

	repo := NewAgentRepo(db)
	n, err := repo.ResetDailyCounters(context.Background())
	if err != nil {
		t.Fatalf("ResetDailyCounters: %v", err)
	}
	if n != 7 {
		t.Errorf("reset %d agents, want 7", n)
	}
}
