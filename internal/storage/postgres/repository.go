// Package postgres implements the durable room store on Postgres. Row-level
// authorization and query execution live here; every committed change is
// echoed onto the room change feed through the Notifier.
package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/storydeck/internal/realtime"
	"github.com/rs/zerolog/log"
)

// Notifier publishes committed row changes to the room change feed.
type Notifier interface {
	Publish(ctx context.Context, ev realtime.Event) error
}

// Repository implements the session's room, task, player and vote stores.
type Repository struct {
	pool     *pgxpool.Pool
	notifier Notifier
}

// NewRepository creates a repository. A nil notifier disables change-event
// publication (useful for one-shot tools).
func NewRepository(pool *pgxpool.Pool, notifier Notifier) *Repository {
	return &Repository{
		pool:     pool,
		notifier: notifier,
	}
}

// publish emits a change event for a committed write. Publication is
// advisory: a failure is logged and the write still succeeds, since every
// client refresh re-reads durable state.
func (r *Repository) publish(ctx context.Context, table realtime.Table, typ realtime.EventType, roomID uuid.UUID, oldRow, newRow any) {
	if r.notifier == nil {
		return
	}

	ev := realtime.Event{Table: table, Type: typ, RoomID: roomID}
	var err error
	if oldRow != nil {
		if ev.Old, err = json.Marshal(oldRow); err != nil {
			log.Error().Err(err).Str("table", string(table)).Msg("failed to marshal old row")
			return
		}
	}
	if newRow != nil {
		if ev.New, err = json.Marshal(newRow); err != nil {
			log.Error().Err(err).Str("table", string(table)).Msg("failed to marshal new row")
			return
		}
	}

	if err := r.notifier.Publish(ctx, ev); err != nil {
		log.Warn().
			Err(err).
			Str("table", string(table)).
			Str("room_id", roomID.String()).
			Msg("change event publish failed")
	}
}
