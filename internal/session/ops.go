package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/storydeck/internal/account"
	"github.com/mcdev12/storydeck/internal/models"
	"github.com/rs/zerolog/log"
)

// apply runs the optimistic local mutation, notifies watchers, then issues the
// durable write. When the write fails the local state is intentionally left as
// applied: the next successful refresh or feed event converges it, and the
// caller gets the error to surface.
func (s *Session) apply(ctx context.Context, local func(), write func(context.Context) error) error {
	if local != nil {
		s.mu.Lock()
		local()
		s.mu.Unlock()
		s.notify()
	}
	if err := write(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteWrite, err)
	}
	return nil
}

func (s *Session) currentIdentity() *account.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// adopt records playerID as the local participant and persists the mapping
// for the next session. A cache failure is logged, never surfaced.
func (s *Session) adopt(ctx context.Context, roomID, playerID uuid.UUID) {
	s.mu.Lock()
	s.playerID = playerID
	s.mu.Unlock()
	s.notify()

	if err := s.cache.SavePlayerID(ctx, roomID, playerID); err != nil {
		log.Warn().
			Err(err).
			Str("room_id", roomID.String()).
			Msg("failed to persist local player mapping")
	}
}

// CreateRoom creates a room owned by the current account and joins it as the
// first participant. Requires an authenticated identity.
func (s *Session) CreateRoom(ctx context.Context, roomName, playerName, avatar string) (*models.Room, error) {
	uid := s.currentIdentity().UserID()
	if uid == "" {
		return nil, ErrUnauthenticated
	}

	room, err := s.rooms.CreateRoom(ctx, models.CreateRoomRequest{Name: roomName, OwnerID: uid})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteWrite, err)
	}

	s.Clear()
	s.mu.Lock()
	s.room = room
	s.mu.Unlock()
	s.notify()

	if err := s.JoinRoom(ctx, room.ID, playerName, avatar); err != nil {
		return nil, err
	}
	return room, nil
}

// JoinRoom resolves "who am I in this room" and admits the local user:
// an existing player for the account wins, then a validated saved mapping,
// then a freshly created player. Joining a finished room fails with
// ErrRoomLocked unless the caller owns it.
func (s *Session) JoinRoom(ctx context.Context, roomID uuid.UUID, playerName, avatar string) error {
	id := s.currentIdentity()
	uid := id.UserID()

	s.mu.RLock()
	room := s.room
	s.mu.RUnlock()

	isOwner := uid != "" && room != nil && room.OwnerID == uid
	if room != nil && room.IsFinished && !isOwner {
		return ErrRoomLocked
	}

	if uid != "" {
		if existing, err := s.players.GetPlayerByAccount(ctx, roomID, uid); err == nil {
			s.adopt(ctx, roomID, existing.ID)
			return nil
		} else if !errors.Is(err, models.ErrNotFound) {
			log.Warn().Err(err).Str("room_id", roomID.String()).Msg("account player lookup failed")
		}
	}

	if saved, ok, err := s.cache.PlayerID(ctx, roomID); err != nil {
		log.Warn().Err(err).Str("room_id", roomID.String()).Msg("local player mapping unreadable")
	} else if ok {
		if existing, err := s.players.GetPlayer(ctx, saved); err == nil && existing.RoomID == roomID {
			s.adopt(ctx, roomID, existing.ID)
			return nil
		}
	}

	if avatar == "" {
		avatar = models.DefaultAvatar
	}
	var userID *string
	if uid != "" {
		userID = &uid
	}
	player, err := s.players.CreatePlayer(ctx, models.CreatePlayerRequest{
		RoomID: roomID,
		Name:   playerName,
		Avatar: avatar,
		UserID: userID,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteWrite, err)
	}
	s.adopt(ctx, roomID, player.ID)
	return nil
}

// QuickJoin is the owner's best-effort self-admission before running admin
// actions. Failures are swallowed into the boolean; it is advisory UI
// convenience, not a precondition.
func (s *Session) QuickJoin(ctx context.Context) bool {
	id := s.currentIdentity()

	s.mu.RLock()
	room := s.room
	s.mu.RUnlock()

	if room == nil || id.UserID() == "" {
		return false
	}
	return s.JoinRoom(ctx, room.ID, id.DisplayName(), models.DefaultAvatar) == nil
}

// RestoreSession re-adopts a previously saved participant identity for the
// room, if it still resolves to a real player there.
func (s *Session) RestoreSession(ctx context.Context, roomID uuid.UUID) bool {
	saved, ok, err := s.cache.PlayerID(ctx, roomID)
	if err != nil || !ok {
		return false
	}

	player, err := s.players.GetPlayer(ctx, saved)
	if err != nil || player.RoomID != roomID {
		return false
	}

	s.mu.Lock()
	s.playerID = player.ID
	s.mu.Unlock()
	s.notify()
	return true
}

// FindRoomByCode clears the session and loads the room for a join code.
// Codes are case-insensitive; lookups use the uppercased form.
func (s *Session) FindRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	s.Clear()

	room, err := s.rooms.GetRoomByCode(ctx, strings.ToUpper(code))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.room = room
	s.mu.Unlock()
	s.notify()
	return room, nil
}

// ToggleRoomLock flips the room's finished flag. Ownership is enforced by the
// remote store; the local flip is optimistic.
func (s *Session) ToggleRoomLock(ctx context.Context, locked bool) error {
	s.mu.RLock()
	room := s.room
	s.mu.RUnlock()
	if room == nil {
		return nil
	}

	return s.apply(ctx,
		func() {
			if s.room != nil {
				s.room.IsFinished = locked
			}
		},
		func(ctx context.Context) error {
			return s.rooms.UpdateRoomLock(ctx, room.ID, locked)
		},
	)
}

// CreateTask adds a task to the loaded room. The first task created for a
// room is auto-selected as active.
func (s *Session) CreateTask(ctx context.Context, title, description, linkJob, linkFigma string) error {
	s.mu.RLock()
	room := s.room
	empty := len(s.taskList) == 0
	s.mu.RUnlock()
	if room == nil {
		return nil
	}

	task, err := s.tasks.CreateTask(ctx, models.CreateTaskRequest{
		RoomID:      room.ID,
		Title:       title,
		Description: description,
		LinkJob:     linkJob,
		LinkFigma:   linkFigma,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteWrite, err)
	}

	s.mu.Lock()
	s.taskList = append(s.taskList, *task)
	s.mu.Unlock()
	s.notify()

	if empty {
		return s.SetActiveTask(ctx, task.ID)
	}
	return nil
}

// SetActiveTask switches the room's task under estimation and drops the local
// vote overlay, which belonged to the previous task.
func (s *Session) SetActiveTask(ctx context.Context, taskID uuid.UUID) error {
	s.mu.RLock()
	room := s.room
	s.mu.RUnlock()
	if room == nil {
		return nil
	}

	return s.apply(ctx,
		func() {
			s.localVote = ""
			if s.room != nil {
				id := taskID
				s.room.ActiveTaskID = &id
			}
			for i := range s.taskList {
				if s.taskList[i].ID == taskID {
					s.activeTask = &s.taskList[i]
					break
				}
			}
		},
		func(ctx context.Context) error {
			return s.rooms.UpdateActiveTask(ctx, room.ID, taskID)
		},
	)
}

// CastVote records the local user's vote on the active task: overlay and
// in-memory votes map immediately, durable record after.
func (s *Session) CastVote(ctx context.Context, value string) error {
	s.mu.RLock()
	playerID := s.playerID
	task := s.activeTask
	s.mu.RUnlock()
	if playerID == uuid.Nil || task == nil {
		return nil
	}

	return s.apply(ctx,
		func() {
			s.localVote = value
			if s.activeTask != nil {
				if s.activeTask.Votes == nil {
					s.activeTask.Votes = make(map[string]string)
				}
				s.activeTask.Votes[playerID.String()] = value
			}
		},
		func(ctx context.Context) error {
			return s.votes.UpsertVote(ctx, task.ID, playerID, value)
		},
	)
}

// Reveal flips the active task to revealed and then replaces its votes map
// with the full set of durable vote records. Concurrent voters may have
// written records after the local snapshot was taken; the reveal instant must
// reflect every vote stored up to that point, never a stale in-memory
// accumulation.
func (s *Session) Reveal(ctx context.Context) error {
	s.mu.RLock()
	task := s.activeTask
	s.mu.RUnlock()
	if task == nil {
		return nil
	}

	if err := s.apply(ctx,
		func() {
			if s.activeTask != nil {
				s.activeTask.IsRevealed = true
			}
		},
		func(ctx context.Context) error {
			return s.tasks.SetRevealed(ctx, task.ID, true)
		},
	); err != nil {
		return err
	}

	return s.fetchRealVotes(ctx, task.ID)
}

// ResetRound returns the active task to the not-revealed state with no votes
// and no score, locally and durably, and deletes its vote records.
func (s *Session) ResetRound(ctx context.Context) error {
	s.mu.RLock()
	task := s.activeTask
	s.mu.RUnlock()
	if task == nil {
		return nil
	}

	if err := s.apply(ctx,
		func() {
			s.localVote = ""
			if s.activeTask != nil {
				s.activeTask.IsRevealed = false
				s.activeTask.Votes = make(map[string]string)
				s.activeTask.FinalScore = nil
			}
		},
		func(ctx context.Context) error {
			return s.tasks.ResetTask(ctx, task.ID)
		},
	); err != nil {
		return err
	}

	if err := s.votes.DeleteVotesByTask(ctx, task.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteWrite, err)
	}
	return nil
}

// UpdateScore records the agreed final score on the active task.
func (s *Session) UpdateScore(ctx context.Context, score string) error {
	s.mu.RLock()
	task := s.activeTask
	s.mu.RUnlock()
	if task == nil {
		return nil
	}

	return s.apply(ctx,
		func() {
			if s.activeTask != nil {
				s.activeTask.FinalScore = &score
			}
		},
		func(ctx context.Context) error {
			return s.tasks.SetFinalScore(ctx, task.ID, score)
		},
	)
}

// MyRooms lists the rooms owned by the current account, newest first.
func (s *Session) MyRooms(ctx context.Context) ([]models.Room, error) {
	uid := s.currentIdentity().UserID()
	if uid == "" {
		return nil, nil
	}
	return s.rooms.ListRoomsByOwner(ctx, uid)
}

// DeleteRoom removes a room the current account owns. Row-level authorization
// lives in the remote store.
func (s *Session) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	if err := s.rooms.DeleteRoom(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteWrite, err)
	}
	return nil
}
