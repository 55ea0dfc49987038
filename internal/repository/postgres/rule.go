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

// RuleRepo persists routing rules.
type RuleRepo struct{ db *sql.DB }

// NewRuleRepo creates a Postgres-backed rule repository.
func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

const ruleColumns = `
	id, name, description, rule_type, conditions, action, action_params,
	priority, is_active, is_exclusive, applies_to_sources, applies_to_categories,
	active_from, active_until, active_hours_start, active_hours_end, active_days,
	times_triggered, last_triggered_at, created_by, created_at, updated_at`

// Create inserts a routing rule.
func (r *RuleRepo) Create(ctx context.Context, rule *domain.RoutingRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	conditions, err := rule.MarshalConditions()
	if err != nil {
		return fmt.Errorf("marshal rule conditions: %w", err)
	}
	params, err := rule.MarshalParams()
	if err != nil {
		return fmt.Errorf("marshal rule params: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO routing_rules (
			id, name, description, rule_type, conditions, action, action_params,
			priority, is_active, is_exclusive, applies_to_sources, applies_to_categories,
			active_from, active_until, active_hours_start, active_hours_end, active_days,
			created_by, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		rule.ID, rule.Name, rule.Description, rule.RuleType, conditions, rule.Action, params,
		rule.Priority, rule.IsActive, rule.IsExclusive,
		pq.Array(rule.AppliesToSources), pq.Array(rule.AppliesToCategories),
		rule.ActiveFrom, rule.ActiveUntil, rule.ActiveHoursStart, rule.ActiveHoursEnd,
		pq.Array(rule.ActiveDays),
		rule.CreatedBy, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

// ListActive returns enabled rules, highest priority first.
func (r *RuleRepo) ListActive(ctx context.Context) ([]domain.RoutingRule, error) {
	return r.list(ctx, `WHERE is_active = TRUE`)
}

// List returns all rules, highest priority first.
func (r *RuleRepo) List(ctx context.Context) ([]domain.RoutingRule, error) {
	return r.list(ctx, ``)
}

func (r *RuleRepo) list(ctx context.Context, where string) ([]domain.RoutingRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM routing_rules `+where+` ORDER BY priority DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []domain.RoutingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

// SetActive toggles a rule.
func (r *RuleRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE routing_rules SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set rule active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordTriggered bumps the trigger counters for the named rules.
func (r *RuleRepo) RecordTriggered(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE routing_rules
		SET times_triggered = times_triggered + 1, last_triggered_at = NOW()
		WHERE name = ANY($1)`, pq.Array(names))
	if err != nil {
		return fmt.Errorf("record rules triggered: %w", err)
	}
	return nil
}

// SeedDefaults installs the default rule set when the table is empty.
func (r *RuleRepo) SeedDefaults(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM routing_rules`).Scan(&count); err != nil {
		return fmt.Errorf("count rules: %w", err)
	}
	if count > 0 {
		return nil
	}
	for i := range domain.DefaultRoutingRules {
		rule := domain.DefaultRoutingRules[i]
		if err := r.Create(ctx, &rule); err != nil {
			return fmt.Errorf("seed rule %q: %w", rule.Name, err)
		}
	}
	return nil
}

func scanRule(rows *sql.Rows) (*domain.RoutingRule, error) {
	var (
		rule          domain.RoutingRule
		conditions    []byte
		params        []byte
		activeFrom    sql.NullTime
		activeUntil   sql.NullTime
		lastTriggered sql.NullTime
		activeDays    []int64
	)
	err := rows.Scan(
		&rule.ID, &rule.Name, &rule.Description, &rule.RuleType, &conditions,
		&rule.Action, &params,
		&rule.Priority, &rule.IsActive, &rule.IsExclusive,
		pq.Array(&rule.AppliesToSources), pq.Array(&rule.AppliesToCategories),
		&activeFrom, &activeUntil, &rule.ActiveHoursStart, &rule.ActiveHoursEnd,
		pq.Array(&activeDays),
		&rule.TimesTriggered, &lastTriggered, &rule.CreatedBy, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.ActiveFrom = timePtr(activeFrom)
	rule.ActiveUntil = timePtr(activeUntil)
	rule.LastTriggeredAt = timePtr(lastTriggered)
	for _, d := range activeDays {
		rule.ActiveDays = append(rule.ActiveDays, int(d))
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("unmarshal rule conditions: %w", err)
		}
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &rule.Params); err != nil {
			return nil, fmt.Errorf("unmarshal rule params: %w", err)
		}
	}
	return &rule, nil
}
