// Package postgres implements the storage layer on PostgreSQL using
// database/sql and lib/pq.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrAgentAtCapacity is returned when an assignment would push an agent
// past its max load.
var ErrAgentAtCapacity = errors.New("agent at capacity")

// Open connects to PostgreSQL and configures the pool.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}
