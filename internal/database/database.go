// Package database provides the Postgres-backed entity store: the
// snapshot provider the engine reads from and the persistence the
// transition service commits through.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

var (
	// ErrEntityNotFound is returned when an entity ID does not exist.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrVersionConflict is returned when a commit lost an optimistic
	// locking race; the caller must re-fetch and retry.
	ErrVersionConflict = errors.New("entity version conflict")
)

// DB wraps a database connection and provides entity and timeline
// operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// MaskDSN masks sensitive information in a DSN for logging.
func MaskDSN(dsn string) string {
	if len(dsn) > 50 {
		return dsn[:20] + "***" + dsn[len(dsn)-20:]
	}
	return "***"
}

// unmarshalAttributes decodes the attributes JSONB column, tolerating NULL
// and malformed values.
func unmarshalAttributes(attrsJSON sql.NullString, warnAttrs ...any) map[string]string {
	if !attrsJSON.Valid || attrsJSON.String == "" {
		return nil
	}

	var attrs map[string]string
	if err := json.Unmarshal([]byte(attrsJSON.String), &attrs); err != nil {
		slog.Warn("Failed to unmarshal attributes JSON", append([]any{"error", err}, warnAttrs...)...)
		return nil
	}
	return attrs
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
