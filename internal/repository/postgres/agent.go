package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/novadesk/triage/internal/domain"
)

// AgentRepo persists agents and owns the assignment transaction.
type AgentRepo struct{ db *sql.DB }

// NewAgentRepo creates a Postgres-backed agent repository.
func NewAgentRepo(db *sql.DB) *AgentRepo { return &AgentRepo{db: db} }

const agentColumns = `
	id, email, name, role, team, skills, languages, experience_level, specializations,
	current_load, max_load, daily_capacity, tickets_handled_today,
	status, is_active, last_active_at,
	avg_resolution_seconds, avg_first_response_seconds, satisfaction_score, quality_score,
	total_tickets_resolved, tickets_resolved_today, tickets_escalated,
	can_handle_critical, can_handle_vip,
	work_hours_start, work_hours_end, timezone, working_days,
	created_at, updated_at`

// Create inserts a new agent.
func (r *AgentRepo) Create(ctx context.Context, a *domain.Agent) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = domain.AgentOffline
	}

	specializations, _ := json.Marshal(a.Specializations)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agents (
			id, email, name, role, team, skills, languages, experience_level, specializations,
			current_load, max_load, daily_capacity, tickets_handled_today,
			status, is_active, can_handle_critical, can_handle_vip,
			work_hours_start, work_hours_end, timezone, working_days,
			satisfaction_score, quality_score, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)`,
		a.ID, a.Email, a.Name, a.Role, a.Team,
		pq.Array(a.Skills), pq.Array(a.Languages), a.ExperienceLevel, specializations,
		a.CurrentLoad, a.MaxLoad, a.DailyCapacity, a.TicketsHandledToday,
		a.Status, a.IsActive, a.CanHandleCritical, a.CanHandleVIP,
		a.WorkHoursStart, a.WorkHoursEnd, a.Timezone, pq.Array(a.WorkingDays),
		a.SatisfactionScore, a.QualityScore, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// Get loads an agent by ID.
func (r *AgentRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// List returns all active agents. With onlineOnly set, only agents
// currently able to take tickets are returned.
func (r *AgentRepo) List(ctx context.Context, onlineOnly bool) ([]domain.Agent, error) {
	q := `SELECT ` + agentColumns + ` FROM agents WHERE is_active = TRUE`
	if onlineOnly {
		q += ` AND status = 'online'`
	}
	q += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var out []domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// UpdateStatus changes an agent's availability state.
func (r *AgentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AgentStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE agents
		SET status = $2, last_active_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update agent status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes an agent: the row stays for history but the
// agent stops receiving work.
func (r *AgentRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE agents
		SET is_active = FALSE, status = 'offline', updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return fmt.Errorf("deactivate agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignTicket atomically assigns a ticket to an agent. The agent row is
// locked for the duration of the transaction; an agent already at max
// load rejects the assignment with ErrAgentAtCapacity. Assigning a
// ticket to the agent it already belongs to is a no-op. When the ticket
// moves between agents, the previous agent's load is released.
// Serialization failures are retried up to maxRetries times.
func (r *AgentRepo) AssignTicket(ctx context.Context, ticketID, agentID uuid.UUID, maxRetries int) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = r.assignOnce(ctx, ticketID, agentID)
		if err == nil || !isRetryableTxError(err) {
			return err
		}
	}
	return fmt.Errorf("assign ticket %s: %w", ticketID, err)
}

func (r *AgentRepo) assignOnce(ctx context.Context, ticketID, agentID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assign: %w", err)
	}
	defer tx.Rollback()

	var currentLoad, maxLoad int
	err = tx.QueryRowContext(ctx, `
		SELECT current_load, max_load FROM agents
		WHERE id = $1 AND is_active = TRUE
		FOR UPDATE`, agentID).Scan(&currentLoad, &maxLoad)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock agent: %w", err)
	}

	var previous uuid.NullUUID
	err = tx.QueryRowContext(ctx,
		`SELECT assigned_agent_id FROM tickets WHERE id = $1 FOR UPDATE`, ticketID).
		Scan(&previous)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock ticket: %w", err)
	}

	if previous.Valid && previous.UUID == agentID {
		return tx.Commit()
	}

	if currentLoad >= maxLoad {
		return ErrAgentAtCapacity
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE agents
		SET current_load = current_load + 1,
		    tickets_handled_today = tickets_handled_today + 1,
		    updated_at = NOW()
		WHERE id = $1`, agentID); err != nil {
		return fmt.Errorf("increment agent load: %w", err)
	}

	if previous.Valid {
		if _, err := tx.ExecContext(ctx, `
			UPDATE agents
			SET current_load = GREATEST(current_load - 1, 0), updated_at = NOW()
			WHERE id = $1`, previous.UUID); err != nil {
			return fmt.Errorf("release previous agent: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE tickets
		SET assigned_agent_id = $2,
		    previous_agent_id = $3,
		    status = CASE WHEN status = 'new' THEN 'open' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1`, ticketID, agentID, previous); err != nil {
		return fmt.Errorf("update ticket assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assign: %w", err)
	}
	return nil
}

// ReleaseTicket decrements an agent's load when a ticket leaves it
// (resolution, closure, or unassignment).
func (r *AgentRepo) ReleaseTicket(ctx context.Context, agentID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE agents
		SET current_load = GREATEST(current_load - 1, 0),
		    tickets_resolved_today = tickets_resolved_today + 1,
		    total_tickets_resolved = total_tickets_resolved + 1,
		    updated_at = NOW()
		WHERE id = $1`, agentID)
	if err != nil {
		return fmt.Errorf("release agent load: %w", err)
	}
	return nil
}

// ResetDailyCounters zeroes the per-day counters on all agents.
func (r *AgentRepo) ResetDailyCounters(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE agents
		SET tickets_handled_today = 0,
		    tickets_resolved_today = 0,
		    updated_at = NOW()`)
	if err != nil {
		return 0, fmt.Errorf("reset daily counters: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// isRetryableTxError reports whether the error is a serialization or
// deadlock failure worth retrying.
func isRetryableTxError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

type agentScanner interface{ Scan(dest ...interface{}) error }

func scanAgent(row agentScanner) (*domain.Agent, error) {
	var (
		a               domain.Agent
		specializations []byte
		lastActive      sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.Role, &a.Team,
		pq.Array(&a.Skills), pq.Array(&a.Languages), &a.ExperienceLevel, &specializations,
		&a.CurrentLoad, &a.MaxLoad, &a.DailyCapacity, &a.TicketsHandledToday,
		&a.Status, &a.IsActive, &lastActive,
		&a.AvgResolutionSeconds, &a.AvgFirstResponseSeconds, &a.SatisfactionScore, &a.QualityScore,
		&a.TotalTicketsResolved, &a.TicketsResolvedToday, &a.TicketsEscalated,
		&a.CanHandleCritical, &a.CanHandleVIP,
		&a.WorkHoursStart, &a.WorkHoursEnd, &a.Timezone, pq.Array(&a.WorkingDays),
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.LastActiveAt = timePtr(lastActive)
	if len(specializations) > 0 {
		_ = json.Unmarshal(specializations, &a.Specializations)
	}
	return &a, nil
}
