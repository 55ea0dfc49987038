package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/novadesk/triage/internal/domain"
)

// CategoryRepo persists category metadata.
type CategoryRepo struct{ db *sql.DB }

// NewCategoryRepo creates a Postgres-backed category repository.
func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

// List returns all active categories in canonical order.
func (r *CategoryRepo) List(ctx context.Context) ([]domain.CategoryInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, display_name, description, keywords, default_priority,
		       sla_first_response_hours, sla_resolution_hours, default_team, is_active
		FROM categories
		WHERE is_active = TRUE
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []domain.CategoryInfo
	for rows.Next() {
		var c domain.CategoryInfo
		if err := rows.Scan(
			&c.Name, &c.DisplayName, &c.Description, pq.Array(&c.Keywords), &c.DefaultPriority,
			&c.SLAFirstResponseHours, &c.SLAResolutionHours, &c.DefaultTeam, &c.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get returns one category's metadata.
func (r *CategoryRepo) Get(ctx context.Context, name domain.Category) (*domain.CategoryInfo, error) {
	var c domain.CategoryInfo
	err := r.db.QueryRowContext(ctx, `
		SELECT name, display_name, description, keywords, default_priority,
		       sla_first_response_hours, sla_resolution_hours, default_team, is_active
		FROM categories WHERE name = $1`, name).Scan(
		&c.Name, &c.DisplayName, &c.Description, pq.Array(&c.Keywords), &c.DefaultPriority,
		&c.SLAFirstResponseHours, &c.SLAResolutionHours, &c.DefaultTeam, &c.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

// SeedDefaults installs the default category set when the table is empty.
func (r *CategoryRepo) SeedDefaults(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, c := range domain.DefaultCategories {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO categories (
				name, display_name, description, keywords, default_priority,
				sla_first_response_hours, sla_resolution_hours, default_team, is_active
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			c.Name, c.DisplayName, c.Description, pq.Array(c.Keywords), c.DefaultPriority,
			c.SLAFirstResponseHours, c.SLAResolutionHours, c.DefaultTeam, c.IsActive,
		)
		if err != nil {
			return fmt.Errorf("seed category %s: %w", c.Name, err)
		}
	}
	return nil
}
