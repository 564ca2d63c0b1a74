package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/storydeck/internal/models"
	"github.com/mcdev12/storydeck/internal/realtime"
)

const playerColumns = `id, room_id, name, avatar, user_id, created_at`

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var player models.Player
	err := row.Scan(
		&player.ID,
		&player.RoomID,
		&player.Name,
		&player.Avatar,
		&player.UserID,
		&player.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// CreatePlayer admits a participant to a room.
func (r *Repository) CreatePlayer(ctx context.Context, req models.CreatePlayerRequest) (*models.Player, error) {
	avatar := req.Avatar
	if avatar == "" {
		avatar = models.DefaultAvatar
	}

	player, err := scanPlayer(r.pool.QueryRow(ctx, `
		INSERT INTO players (id, room_id, name, avatar, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+playerColumns,
		uuid.New(), req.RoomID, req.Name, avatar, req.UserID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	r.publish(ctx, realtime.TablePlayers, realtime.EventInsert, player.RoomID, nil, player)
	return player, nil
}

// GetPlayer retrieves a player by ID.
func (r *Repository) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	player, err := scanPlayer(r.pool.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("player %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return player, nil
}

// GetPlayerByAccount retrieves the one player linked to an account within a
// room.
func (r *Repository) GetPlayerByAccount(ctx context.Context, roomID uuid.UUID, userID string) (*models.Player, error) {
	player, err := scanPlayer(r.pool.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE room_id = $1 AND user_id = $2`, roomID, userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("player for account %s in room %s: %w", userID, roomID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player by account: %w", err)
	}
	return player, nil
}

// ListPlayersByRoom retrieves a room's roster in join order.
func (r *Repository) ListPlayersByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Player, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+playerColumns+` FROM players WHERE room_id = $1 ORDER BY created_at ASC`, roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list players by room: %w", err)
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, *player)
	}
	return players, rows.Err()
}
