// Package localstate persists the device-local room→player mapping so a
// participant keeps their identity across restarts without a login step.
// The mapping is advisory only; callers re-validate it against the remote
// store before use.
package localstate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS room_players (
    room_id TEXT PRIMARY KEY,
    player_id TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Cache is a SQLite-backed key-value surface keyed by room id.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path. Use ":memory:"
// for an ephemeral cache.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open local state db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// PlayerID returns the saved player id for a room. Absence or a corrupt value
// reads as "no saved identity", not an error.
func (c *Cache) PlayerID(ctx context.Context, roomID uuid.UUID) (uuid.UUID, bool, error) {
	var raw string
	err := c.db.QueryRowContext(ctx,
		`SELECT player_id FROM room_players WHERE room_id = ?`, roomID.String(),
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to get player for room %s: %w", roomID, err)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

// SavePlayerID records the player id to reuse for a room, replacing any
// previous mapping.
func (c *Cache) SavePlayerID(ctx context.Context, roomID, playerID uuid.UUID) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO room_players (room_id, player_id, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(room_id) DO UPDATE SET player_id = excluded.player_id, updated_at = excluded.updated_at
	`, roomID.String(), playerID.String())
	if err != nil {
		return fmt.Errorf("failed to save player for room %s: %w", roomID, err)
	}
	return nil
}

// Forget drops the saved mapping for a room.
func (c *Cache) Forget(ctx context.Context, roomID uuid.UUID) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM room_players WHERE room_id = ?`, roomID.String())
	if err != nil {
		return fmt.Errorf("failed to forget room %s: %w", roomID, err)
	}
	return nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
