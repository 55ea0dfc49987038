package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/novadesk/triage/internal/domain"
)

// TicketRepo persists tickets.
type TicketRepo struct{ db *sql.DB }

// NewTicketRepo creates a Postgres-backed ticket repository.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `
	id, external_id, external_system, subject, content, content_cleaned, status,
	category, category_confidence, secondary_categories, classification_reasoning,
	sentiment, sentiment_score,
	priority, priority_level, priority_factors,
	assigned_agent_id, assigned_team, previous_agent_id,
	assignment_reason, assignment_confidence, escalated, escalation_reason,
	customer_id, customer_email, customer_name, customer_tier,
	language, language_confidence, source, channel, tags, custom_fields,
	suggested_responses, is_processed, processing_error,
	sla_due_at, sla_breached, resolution, satisfaction_rating,
	created_at, updated_at, first_response_at, resolved_at, closed_at`

// Create inserts a new ticket. A zero ID is generated; timestamps are
// set to now.
func (r *TicketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = domain.TicketNew
	}

	secondary, _ := json.Marshal(t.SecondaryCategories)
	custom, _ := json.Marshal(t.CustomFields)
	suggestions, _ := json.Marshal(t.SuggestedResponses)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tickets (
			id, external_id, external_system, subject, content, content_cleaned, status,
			category, category_confidence, secondary_categories, classification_reasoning,
			sentiment, sentiment_score, priority, priority_level, priority_factors,
			assigned_agent_id, assigned_team, previous_agent_id,
			assignment_reason, assignment_confidence, escalated, escalation_reason,
			customer_id, customer_email, customer_name, customer_tier,
			language, language_confidence, source, channel, tags, custom_fields,
			suggested_responses, is_processed, processing_error,
			sla_due_at, sla_breached, resolution, satisfaction_rating,
			created_at, updated_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
			$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35,$36,$37,$38,
			$39,$40,$41,$42
		)`,
		t.ID, t.ExternalID, t.ExternalSystem, t.Subject, t.Content, t.ContentCleaned, t.Status,
		t.Category, t.CategoryConfidence, secondary, t.ClassificationReasoning,
		t.Sentiment, t.SentimentScore, t.Priority, t.PriorityLevel, pq.Array(t.PriorityFactors),
		uuidOrNil(t.AssignedAgentID), t.AssignedTeam, uuidOrNil(t.PreviousAgentID),
		t.AssignmentReason, t.AssignmentConfidence, t.Escalated, t.EscalationReason,
		uuidOrNil(t.CustomerID), t.CustomerEmail, t.CustomerName, t.CustomerTier,
		t.Language, t.LanguageConfidence, t.Source, t.Channel, pq.Array(t.Tags), custom,
		suggestions, t.IsProcessed, t.ProcessingError,
		t.SLADueAt, t.SLABreached, t.Resolution, t.SatisfactionRating,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

// Get loads a ticket by ID.
func (r *TicketRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// TicketFilter narrows List results. Zero values mean no filter.
type TicketFilter struct {
	Status        domain.TicketStatus
	Category      domain.Category
	Priority      int
	AssignedAgent *uuid.UUID
	CustomerEmail string
	Escalated     *bool
	Limit         int
	Offset        int
}

// List returns tickets matching the filter, newest first, plus the total
// match count.
func (r *TicketRepo) List(ctx context.Context, f TicketFilter) ([]domain.Ticket, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1
	add := func(clause string, v interface{}) {
		where += fmt.Sprintf(" AND "+clause, idx)
		args = append(args, v)
		idx++
	}

	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Priority != 0 {
		add("priority = $%d", f.Priority)
	}
	if f.AssignedAgent != nil {
		add("assigned_agent_id = $%d", *f.AssignedAgent)
	}
	if f.CustomerEmail != "" {
		add("customer_email = $%d", f.CustomerEmail)
	}
	if f.Escalated != nil {
		add("escalated = $%d", *f.Escalated)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tickets"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}

	q := `SELECT ` + ticketColumns + ` FROM tickets` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

// Update saves the mutable state of a ticket, including all enrichment
// and routing fields.
func (r *TicketRepo) Update(ctx context.Context, t *domain.Ticket) error {
	t.UpdatedAt = time.Now().UTC()

	secondary, _ := json.Marshal(t.SecondaryCategories)
	custom, _ := json.Marshal(t.CustomFields)
	suggestions, _ := json.Marshal(t.SuggestedResponses)

	res, err := r.db.ExecContext(ctx, `
		UPDATE tickets SET
			subject = $2, content = $3, content_cleaned = $4, status = $5,
			category = $6, category_confidence = $7, secondary_categories = $8,
			classification_reasoning = $9, sentiment = $10, sentiment_score = $11,
			priority = $12, priority_level = $13, priority_factors = $14,
			assigned_agent_id = $15, assigned_team = $16, previous_agent_id = $17,
			assignment_reason = $18, assignment_confidence = $19,
			escalated = $20, escalation_reason = $21,
			customer_id = $22, customer_tier = $23,
			language = $24, language_confidence = $25, tags = $26,
			suggested_responses = $27, is_processed = $28, processing_error = $29,
			sla_due_at = $30, sla_breached = $31,
			resolution = $32, satisfaction_rating = $33,
			first_response_at = $34, resolved_at = $35, closed_at = $36,
			updated_at = $37, custom_fields = $38
		WHERE id = $1`,
		t.ID, t.Subject, t.Content, t.ContentCleaned, t.Status,
		t.Category, t.CategoryConfidence, secondary,
		t.ClassificationReasoning, t.Sentiment, t.SentimentScore,
		t.Priority, t.PriorityLevel, pq.Array(t.PriorityFactors),
		uuidOrNil(t.AssignedAgentID), t.AssignedTeam, uuidOrNil(t.PreviousAgentID),
		t.AssignmentReason, t.AssignmentConfidence,
		t.Escalated, t.EscalationReason,
		uuidOrNil(t.CustomerID), t.CustomerTier,
		t.Language, t.LanguageConfidence, pq.Array(t.Tags),
		suggestions, t.IsProcessed, t.ProcessingError,
		t.SLADueAt, t.SLABreached,
		t.Resolution, t.SatisfactionRating,
		t.FirstResponseAt, t.ResolvedAt, t.ClosedAt,
		t.UpdatedAt, custom,
	)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSLABreached flags overdue tickets and bumps their priority by one,
// capped at the maximum. Returns the IDs it touched.
func (r *TicketRepo) MarkSLABreached(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE tickets
		SET sla_breached = TRUE,
		    priority = LEAST(priority + 1, $2),
		    updated_at = $1
		WHERE sla_breached = FALSE
		  AND sla_due_at IS NOT NULL
		  AND sla_due_at < $1
		  AND status NOT IN ('resolved', 'closed')
		RETURNING id`,
		now, domain.PriorityMax)
	if err != nil {
		return nil, fmt.Errorf("mark sla breached: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan sla breach id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a ticket. An assigned agent's load is released in the
// same transaction.
func (r *TicketRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	var agentID uuid.NullUUID
	err = tx.QueryRowContext(ctx,
		`SELECT assigned_agent_id FROM tickets WHERE id = $1 FOR UPDATE`, id).
		Scan(&agentID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock ticket: %w", err)
	}

	if agentID.Valid {
		if _, err := tx.ExecContext(ctx, `
			UPDATE agents
			SET current_load = GREATEST(current_load - 1, 0), updated_at = NOW()
			WHERE id = $1`, agentID.UUID); err != nil {
			return fmt.Errorf("release agent load: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

type ticketScanner interface{ Scan(dest ...interface{}) error }

func scanTicket(row ticketScanner) (*domain.Ticket, error) {
	var (
		t             domain.Ticket
		secondary     []byte
		custom        []byte
		suggestions   []byte
		assignedAgent uuid.NullUUID
		previousAgent uuid.NullUUID
		customerID    uuid.NullUUID
		slaDue        sql.NullTime
		firstResponse sql.NullTime
		resolvedAt    sql.NullTime
		closedAt      sql.NullTime
	)

	err := row.Scan(
		&t.ID, &t.ExternalID, &t.ExternalSystem, &t.Subject, &t.Content, &t.ContentCleaned, &t.Status,
		&t.Category, &t.CategoryConfidence, &secondary, &t.ClassificationReasoning,
		&t.Sentiment, &t.SentimentScore,
		&t.Priority, &t.PriorityLevel, pq.Array(&t.PriorityFactors),
		&assignedAgent, &t.AssignedTeam, &previousAgent,
		&t.AssignmentReason, &t.AssignmentConfidence, &t.Escalated, &t.EscalationReason,
		&customerID, &t.CustomerEmail, &t.CustomerName, &t.CustomerTier,
		&t.Language, &t.LanguageConfidence, &t.Source, &t.Channel, pq.Array(&t.Tags), &custom,
		&suggestions, &t.IsProcessed, &t.ProcessingError,
		&slaDue, &t.SLABreached, &t.Resolution, &t.SatisfactionRating,
		&t.CreatedAt, &t.UpdatedAt, &firstResponse, &resolvedAt, &closedAt,
	)
	if err != nil {
		return nil, err
	}

	if assignedAgent.Valid {
		t.AssignedAgentID = &assignedAgent.UUID
	}
	if previousAgent.Valid {
		t.PreviousAgentID = &previousAgent.UUID
	}
	if customerID.Valid {
		t.CustomerID = &customerID.UUID
	}
	t.SLADueAt = timePtr(slaDue)
	t.FirstResponseAt = timePtr(firstResponse)
	t.ResolvedAt = timePtr(resolvedAt)
	t.ClosedAt = timePtr(closedAt)

	if len(secondary) > 0 {
		_ = json.Unmarshal(secondary, &t.SecondaryCategories)
	}
	if len(custom) > 0 {
		_ = json.Unmarshal(custom, &t.CustomFields)
	}
	if len(suggestions) > 0 {
		_ = json.Unmarshal(suggestions, &t.SuggestedResponses)
	}
	return &t, nil
}

func uuidOrNil(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
