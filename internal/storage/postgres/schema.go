package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const schema = `
-- Rooms
CREATE TABLE IF NOT EXISTS rooms (
    id UUID PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    active_task_id UUID,
    is_finished BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_rooms_owner_id ON rooms(owner_id);

-- Tasks
CREATE TABLE IF NOT EXISTS tasks (
    id UUID PRIMARY KEY,
    room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    link_job TEXT NOT NULL DEFAULT '',
    link_figma TEXT NOT NULL DEFAULT '',
    votes JSONB NOT NULL DEFAULT '{}'::jsonb,
    is_revealed BOOLEAN NOT NULL DEFAULT FALSE,
    final_score TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tasks_room_id ON tasks(room_id);

-- Players
CREATE TABLE IF NOT EXISTS players (
    id UUID PRIMARY KEY,
    room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    avatar TEXT NOT NULL DEFAULT 'Cat1.svg',
    user_id TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_players_room_id ON players(room_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_players_room_user ON players(room_id, user_id) WHERE user_id IS NOT NULL;

-- Durable vote records, one per (task, player)
CREATE TABLE IF NOT EXISTS task_votes (
    task_id UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    player_id UUID NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    value TEXT NOT NULL,
    PRIMARY KEY (task_id, player_id)
);
`
