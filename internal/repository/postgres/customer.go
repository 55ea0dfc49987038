package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/novadesk/triage/internal/domain"
)

// CustomerRepo persists customers.
type CustomerRepo struct{ db *sql.DB }

// NewCustomerRepo creates a Postgres-backed customer repository.
func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

const customerColumns = `
	id, external_id, email, name, tier, language,
	total_tickets, open_tickets, avg_satisfaction, last_ticket_at,
	created_at, updated_at`

// GetByEmail looks up a customer by email.
func (r *CustomerRepo) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE email = $1`, email)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer by email: %w", err)
	}
	return c, nil
}

// Upsert inserts the customer or refreshes name and tier on conflict,
// and returns the stored row.
func (r *CustomerRepo) Upsert(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Tier == "" {
		c.Tier = domain.TierStandard
	}
	now := time.Now().UTC()

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO customers (id, external_id, email, name, tier, language, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
		ON CONFLICT (email) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), customers.name),
			tier = CASE WHEN EXCLUDED.tier <> 'standard' THEN EXCLUDED.tier ELSE customers.tier END,
			updated_at = EXCLUDED.updated_at
		RETURNING `+customerColumns,
		c.ID, c.ExternalID, c.Email, c.Name, c.Tier, c.Language, now)

	stored, err := scanCustomer(row)
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}
	return stored, nil
}

// RecordTicket updates ticket counters when a new ticket arrives.
func (r *CustomerRepo) RecordTicket(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE customers
		SET total_tickets = total_tickets + 1,
		    open_tickets = open_tickets + 1,
		    last_ticket_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("record customer ticket: %w", err)
	}
	return nil
}

// RecordResolution closes out a ticket and folds the satisfaction rating
// into the running average when one was given.
func (r *CustomerRepo) RecordResolution(ctx context.Context, id uuid.UUID, rating float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE customers
		SET open_tickets = GREATEST(open_tickets - 1, 0),
		    avg_satisfaction = CASE
		        WHEN $2 <= 0 THEN avg_satisfaction
		        WHEN avg_satisfaction = 0 THEN $2
		        ELSE (avg_satisfaction + $2) / 2
		    END,
		    updated_at = NOW()
		WHERE id = $1`, id, rating)
	if err != nil {
		return fmt.Errorf("record customer resolution: %w", err)
	}
	return nil
}

type customerScanner interface{ Scan(dest ...interface{}) error }

func scanCustomer(row customerScanner) (*domain.Customer, error) {
	var (
		c          domain.Customer
		lastTicket sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.ExternalID, &c.Email, &c.Name, &c.Tier, &c.Language,
		&c.TotalTickets, &c.OpenTickets, &c.AvgSatisfaction, &lastTicket,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.LastTicketAt = timePtr(lastTicket)
	return &c, nil
}
