package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/entity"
)

const entityColumns = `entity_id, kind, status, name, version, created_at, updated_at,
	published_at, hired_at, closed_at, bonus_eligible_at, last_activity_at,
	candidate_count, advanced_count, filled, budget, required_attributes, attributes`

// GetEntities returns the current persisted snapshots for all entities of
// the given kind. The engine re-fetches on every scan; nothing is cached.
func (db *DB) GetEntities(ctx context.Context, kind entity.Kind) ([]*entity.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE kind = $1
		ORDER BY created_at
	`
	rows, err := db.conn.QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var out []*entity.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEntity returns the current persisted snapshot for one entity.
func (db *DB) GetEntity(ctx context.Context, entityID string) (*entity.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE entity_id = $1
	`
	row := db.conn.QueryRowContext(ctx, query, entityID)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*entity.Entity, error) {
	var (
		e             entity.Entity
		kind, status  string
		publishedAt   sql.NullTime
		hiredAt       sql.NullTime
		closedAt      sql.NullTime
		bonusAt       sql.NullTime
		lastActivity  sql.NullTime
		budget        sql.NullFloat64
		requiredAttrs pq.StringArray
		attrsJSON     sql.NullString
	)
	err := row.Scan(
		&e.ID,
		&kind,
		&status,
		&e.Name,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
		&publishedAt,
		&hiredAt,
		&closedAt,
		&bonusAt,
		&lastActivity,
		&e.CandidateCount,
		&e.AdvancedCount,
		&e.Filled,
		&budget,
		&requiredAttrs,
		&attrsJSON,
	)
	if err != nil {
		return nil, err
	}

	e.Kind = entity.Kind(kind)
	e.Status = entity.Status(status)
	e.PublishedAt = nullableTime(publishedAt)
	e.HiredAt = nullableTime(hiredAt)
	e.ClosedAt = nullableTime(closedAt)
	e.BonusEligibleAt = nullableTime(bonusAt)
	e.LastActivityAt = nullableTime(lastActivity)
	if budget.Valid {
		b := budget.Float64
		e.Budget = &b
	}
	if len(requiredAttrs) > 0 {
		e.RequiredAttributes = []string(requiredAttrs)
	}
	e.Attributes = unmarshalAttributes(attrsJSON, "entity_id", e.ID)
	return &e, nil
}
