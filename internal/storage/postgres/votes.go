package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/storydeck/internal/models"
	"github.com/mcdev12/storydeck/internal/realtime"
)

// UpsertVote writes a durable vote record, last-write-wins on the
// (task, player) pair, and mirrors it into the task's votes column in the
// same transaction so the task change event carries the current map.
func (r *Repository) UpsertVote(ctx context.Context, taskID, playerID uuid.UUID, value string) error {
	oldTask, err := r.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin vote transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO task_votes (task_id, player_id, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (task_id, player_id) DO UPDATE SET value = excluded.value
	`, taskID, playerID, value); err != nil {
		return fmt.Errorf("failed to upsert vote: %w", err)
	}

	newTask, err := scanTask(tx.QueryRow(ctx, `
		UPDATE tasks SET votes = votes || jsonb_build_object($2::text, $3::text)
		WHERE id = $1
		RETURNING `+taskColumns,
		taskID, playerID.String(), value,
	))
	if err != nil {
		return fmt.Errorf("failed to mirror vote into task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit vote: %w", err)
	}

	r.publish(ctx, realtime.TableTasks, realtime.EventUpdate, newTask.RoomID, oldTask, newTask)
	return nil
}

// ListVotesByTask retrieves every durable vote record for a task.
func (r *Repository) ListVotesByTask(ctx context.Context, taskID uuid.UUID) ([]models.VoteRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT task_id, player_id, value FROM task_votes WHERE task_id = $1`, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes by task: %w", err)
	}
	defer rows.Close()

	var records []models.VoteRecord
	for rows.Next() {
		var rec models.VoteRecord
		if err := rows.Scan(&rec.TaskID, &rec.PlayerID, &rec.Value); err != nil {
			return nil, fmt.Errorf("failed to scan vote record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteVotesByTask drops every vote record for a task, used by round reset.
func (r *Repository) DeleteVotesByTask(ctx context.Context, taskID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM task_votes WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("failed to delete votes by task: %w", err)
	}
	return nil
}
