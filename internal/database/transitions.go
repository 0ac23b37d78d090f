package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/entity"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/transition"
)

// CommitTransition atomically applies a validated transition: the entity
// row update and the timeline append either both succeed or neither does.
// The update is guarded by the version the caller read; a lost race
// returns ErrVersionConflict and commits nothing.
func (db *DB) CommitTransition(ctx context.Context, updated *entity.Entity, expectedVersion int, entry transition.TimelineEntry) (*entity.Entity, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var budget sql.NullFloat64
	if updated.Budget != nil {
		budget = sql.NullFloat64{Float64: *updated.Budget, Valid: true}
	}

	updateQuery := `
		UPDATE entities
		SET status = $2,
		    updated_at = $3,
		    published_at = $4,
		    hired_at = $5,
		    closed_at = $6,
		    bonus_eligible_at = $7,
		    last_activity_at = $8,
		    filled = $9,
		    budget = $10,
		    version = version + 1
		WHERE entity_id = $1 AND version = $11
		RETURNING version
	`
	var newVersion int
	err = tx.QueryRowContext(ctx, updateQuery,
		updated.ID,
		string(updated.Status),
		updated.UpdatedAt,
		updated.PublishedAt,
		updated.HiredAt,
		updated.ClosedAt,
		updated.BonusEligibleAt,
		updated.LastActivityAt,
		updated.Filled,
		budget,
		expectedVersion,
	).Scan(&newVersion)
	if err == sql.ErrNoRows {
		// Either the row is gone or someone else won the version race.
		var exists bool
		checkErr := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM entities WHERE entity_id = $1)`, updated.ID,
		).Scan(&exists)
		if checkErr != nil {
			return nil, fmt.Errorf("failed to check entity existence: %w", checkErr)
		}
		if !exists {
			return nil, ErrEntityNotFound
		}
		return nil, ErrVersionConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update entity: %w", err)
	}

	var derivedJSON []byte
	if entry.Derived != nil {
		derivedJSON, err = json.Marshal(entry.Derived)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal derived updates: %w", err)
		}
	}

	insertQuery := `
		INSERT INTO entity_timeline (entry_id, entity_id, from_status, to_status, occurred_at, actor, override, derived)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.ExecContext(ctx, insertQuery,
		entry.EntryID,
		entry.EntityID,
		string(entry.FromStatus),
		string(entry.ToStatus),
		entry.Timestamp,
		entry.Actor,
		entry.Override,
		derivedJSON,
	); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return nil, fmt.Errorf("duplicate timeline entry %s: %w", entry.EntryID, err)
		}
		return nil, fmt.Errorf("failed to append timeline entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	committed := updated.Clone()
	committed.Version = newVersion
	return committed, nil
}

// ListTimeline returns the immutable timeline for an entity, oldest first.
func (db *DB) ListTimeline(ctx context.Context, entityID string) ([]transition.TimelineEntry, error) {
	query := `
		SELECT entry_id, entity_id, from_status, to_status, occurred_at, actor, override, derived
		FROM entity_timeline
		WHERE entity_id = $1
		ORDER BY occurred_at
	`
	rows, err := db.conn.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list timeline: %w", err)
	}
	defer rows.Close()

	var out []transition.TimelineEntry
	for rows.Next() {
		var (
			entry       transition.TimelineEntry
			from, to    string
			derivedJSON sql.NullString
		)
		if err := rows.Scan(
			&entry.EntryID,
			&entry.EntityID,
			&from,
			&to,
			&entry.Timestamp,
			&entry.Actor,
			&entry.Override,
			&derivedJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan timeline entry: %w", err)
		}
		entry.FromStatus = entity.Status(from)
		entry.ToStatus = entity.Status(to)
		entry.Derived = unmarshalAttributes(derivedJSON, "entry_id", entry.EntryID)
		out = append(out, entry)
	}
	return out, rows.Err()
}
