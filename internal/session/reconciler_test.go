package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/storydeck/internal/models"
	"github.com/mcdev12/storydeck/internal/realtime"
)

func TestSubscribeWithoutRoom(t *testing.T) {
	s, _, _, _ := newTestSession(nil)
	require.ErrorIs(t, s.SubscribeToRoom(context.Background()), ErrNoRoom)
}

func TestSubscribeFeedFailure(t *testing.T) {
	s, store, feed, _ := newTestSession(nil)
	room := store.addRoom("acct-owner", false)
	_, err := s.FindRoomByCode(context.Background(), room.Code)
	require.NoError(t, err)

	feed.subErr = context.DeadlineExceeded
	require.ErrorIs(t, s.SubscribeToRoom(context.Background()), context.DeadlineExceeded)
}

func TestRefreshDerivesActiveFromRoomPointer(t *testing.T) {
	s, store, _, _ := newTestSession(nil)
	room := store.addRoom("acct-owner", false)
	_, err := store.CreateTask(context.Background(), models.CreateTaskRequest{RoomID: room.ID, Title: "first"})
	require.NoError(t, err)
	second, err := store.CreateTask(context.Background(), models.CreateTaskRequest{RoomID: room.ID, Title: "second"})
	require.NoError(t, err)
	require.NoError(t, store.UpdateActiveTask(context.Background(), room.ID, second.ID))

	_, err = s.FindRoomByCode(context.Background(), room.Code)
	require.NoError(t, err)
	require.NoError(t, s.SubscribeToRoom(context.Background()))

	snap := s.Snapshot()
	require.NotNil(t, snap.ActiveTask)
	assert.Equal(t, "second", snap.ActiveTask.Title)
}

func TestRefreshFallsBackToEarliestTask(t *testing.T) {
	s, store, _, _ := newTestSession(nil)
	room := store.addRoom("acct-owner", false)
	_, err := store.CreateTask(context.Background(), models.CreateTaskRequest{RoomID: room.ID, Title: "first"})
	require.NoError(t, err)
	_, err = store.CreateTask(context.Background(), models.CreateTaskRequest{RoomID: room.ID, Title: "second"})
	require.NoError(t, err)
	// Pointer at a task that no longer exists.
	require.NoError(t, store.UpdateActiveTask(context.Background(), room.ID, uuid.New()))

	_, err = s.FindRoomByCode(context.Background(), room.Code)
	require.NoError(t, err)
	require.NoError(t, s.SubscribeToRoom(context.Background()))

	snap := s.Snapshot()
	require.NotNil(t, snap.ActiveTask)
	assert.Equal(t, "first", snap.ActiveTask.Title)
}

func TestRefreshWithNoTasks(t *testing.T) {
	s, store, _, _ := newTestSession(nil)
	room := store.addRoom("acct-owner", false)

	_, err := s.FindRoomByCode(context.Background(), room.Code)
	require.NoError(t, err)
	require.NoError(t, s.SubscribeToRoom(context.Background()))

	snap := s.Snapshot()
	assert.Nil(t, snap.ActiveTask)
	assert.Empty(t, snap.Tasks)
	assert.False(t, snap.SyncedAt.IsZero())
}

// A roster change must not disturb an unconfirmed local vote.
func TestOverlaySurvivesRosterRefresh(t *testing.T) {
	s, store, feed, _ := newTestSession(ownerIdentity())
	room := joinAsOwner(t, s, store)
	require.NoError(t, s.CreateTask(context.Background(), "story", "", "", ""))
	require.NoError(t, s.SubscribeToRoom(context.Background()))
	require.NoError(t, s.CastVote(context.Background(), "5"))

	joiner, err := store.CreatePlayer(context.Background(), models.CreatePlayerRequest{
		RoomID: room.ID,
		Name:   "Latecomer",
		Avatar: models.DefaultAvatar,
	})
	require.NoError(t, err)

	feed.emit(realtime.Event{
		Table:     realtime.TablePlayers,
		Type:      realtime.EventInsert,
		RoomID:    room.ID,
		New:       mustJSON(t, joiner),
		Timestamp: time.Now(),
	})

	snap := s.Snapshot()
	assert.Equal(t, "5", snap.LocalVote)
	assert.Len(t, snap.Players, 2)
}

func TestRefreshClearsOverlayWhenVoteGone(t *testing.T) {
	s, store, feed, _ := newTestSession(ownerIdentity())
	room := joinAsOwner(t, s, store)
	require.NoError(t, s.CreateTask(context.Background(), "story", "", "", ""))
	require.NoError(t, s.SubscribeToRoom(context.Background()))
	require.NoError(t, s.CastVote(context.Background(), "5"))

	// Server-side wipe the client never saw as a task event.
	require.NoError(t, store.ResetTask(context.Background(), store.tasks[0].ID))
	require.NoError(t, store.DeleteVotesByTask(context.Background(), store.tasks[0].ID))

	feed.emit(realtime.Event{
		Table:  realtime.TablePlayers,
		Type:   realtime.EventUpdate,
		RoomID: room.ID,
	})

	assert.Empty(t, s.Snapshot().LocalVote)
}

func TestRoomEventActiveTaskChangeClearsOverlay(t *testing.T) {
	s, store, feed, _ := newTestSession(ownerIdentity())
	room := joinAsOwner(t, s, store)
	require.NoError(t, s.CreateTask(context.Background(), "first", "", "", ""))
	require.NoError(t, s.CreateTask(context.Background(), "second", "", "", ""))
	require.NoError(t, s.SubscribeToRoom(context.Background()))
	require.NoError(t, s.CastVote(context.Background(), "5"))

	oldRoom := *store.rooms[room.ID]
	second := store.tasks[1].ID
	require.NoError(t, store.UpdateActiveTask(context.Background(), room.ID, second))
	newRoom := *store.rooms[room.ID]

	feed.emit(realtime.Event{
		Table:  realtime.TableRooms,
		Type:   realtime.EventUpdate,
		RoomID: room.ID,
		Old:    mustJSON(t, oldRoom),
		New:    mustJSON(t, newRoom),
	})

	snap := s.Snapshot()
	assert.Empty(t, snap.LocalVote, "vote belonged to the previous task")
	require.NotNil(t, snap.ActiveTask)
	assert.Equal(t, second, snap.ActiveTask.ID)
}

func TestRoomEventSameActiveTaskKeepsOverlay(t *testing.T) {
	s, store, feed, _ := newTestSession(ownerIdentity())
	room := joinAsOwner(t, s, store)
	require.NoError(t, s.CreateTask(context.Background(), "story", "", "", ""))
	require.NoError(t, s.SubscribeToRoom(context.Background()))
	require.NoError(t, s.CastVote(context.Background(), "5"))

	oldRoom := *store.rooms[room.ID]
	require.NoError(t, store.UpdateRoomLock(context.Background(), room.ID, true))
	newRoom := *store.rooms[room.ID]

	feed.emit(realtime.Event{
		Table:  realtime.TableRooms,
		Type:   realtime.EventUpdate,
		RoomID: room.ID,
		Old:    mustJSON(t, oldRoom),
		New:    mustJSON(t, newRoom),
	})

	snap := s.Snapshot()
	assert.Equal(t, "5", snap.LocalVote)
	assert.True(t, snap.Room.IsFinished)
}

// The local room record can lag the store: the pointer changed remotely and
// no room event for it reached this client. A later unrelated room update
// must judge "did the active task change" by its own old/new rows, not
// against that stale local pointer.
func TestRoomEventAfterUnseenTaskSwitchKeepsOverlay(t *testing.T) {
	s, store, feed, _ := newTestSession(ownerIdentity())
	room := store.addRoom("acct-owner", false)
	task, err := store.CreateTask(context.Background(), models.CreateTaskRequest{RoomID: room.ID, Title: "story"})
	require.NoError(t, err)

	_, err = s.FindRoomByCode(context.Background(), room.Code)
	require.NoError(t, err)
	require.NoError(t, s.JoinRoom(context.Background(), room.ID, "Olga", ""))
	require.NoError(t, s.SubscribeToRoom(context.Background()))
	require.NoError(t, s.CastVote(context.Background(), "5"))

	// Another client makes the implicit active task explicit; this client
	// never receives that room event, so its local pointer stays nil.
	require.NoError(t, store.UpdateActiveTask(context.Background(), room.ID, task.ID))

	oldRoom := *store.rooms[room.ID]
	require.NoError(t, store.UpdateRoomLock(context.Background(), room.ID, true))
	newRoom := *store.rooms[room.ID]

	feed.emit(realtime.Event{
		Table:  realtime.TableRooms,
		Type:   realtime.EventUpdate,
		RoomID: room.ID,
		Old:    mustJSON(t, oldRoom),
		New:    mustJSON(t, newRoom),
	})

	snap := s.Snapshot()
	assert.Equal(t, "5", snap.LocalVote, "the active task did not change")
	assert.True(t, snap.Room.IsFinished)
}

func TestRoomEventWithoutOldUsesLocalPointer(t *testing.T) {
	s, store, feed, _ := newTestSession(ownerIdentity())
	room := joinAsOwner(t, s, store)
	require.NoError(t, s.CreateTask(context.Background(), "first", "", "", ""))
	require.NoError(t, s.CreateTask(context.Background(), "second", "", "", ""))
	require.NoError(t, s.SubscribeToRoom(context.Background()))
	require.NoError(t, s.CastVote(context.Background(), "5"))

	second := store.tasks[1].ID
	require.NoError(t, store.UpdateActiveTask(context.Background(), room.ID, second))
	newRoom := *store.rooms[room.ID]

	feed.emit(realtime.Event{
		Table:  realtime.TableRooms,
		Type:   realtime.EventUpdate,
		RoomID: room.ID,
		New:    mustJSON(t, newRoom),
	})

	assert.Empty(t, s.Snapshot().LocalVote, "pointer moved away from the locally active task")
}

func TestTaskEventRoundResetClearsOverlay(t *testing.T) {
	s, store, feed, _ := newTestSession(ownerIdentity())
	room := joinAsOwner(t, s, store)
	require.NoError(t, s.CreateTask(context.Background(), "story", "", "", ""))
	require.NoError(t, s.SubscribeToRoom(context.Background()))
	require.NoError(t, s.CastVote(context.Background(), "5"))

	taskID := store.tasks[0].ID
	oldTask := *copyFakeTask(store.tasks[0])
	require.NoError(t, store.ResetTask(context.Background(), taskID))
	require.NoError(t, store.DeleteVotesByTask(context.Background(), taskID))
	newTask := *copyFakeTask(store.tasks[0])

	feed.emit(realtime.Event{
		Table:  realtime.TableTasks,
		Type:   realtime.EventUpdate,
		RoomID: room.ID,
		Old:    mustJSON(t, oldTask),
		New:    mustJSON(t, newTask),
	})

	snap := s.Snapshot()
	assert.Empty(t, snap.LocalVote)
	assert.Empty(t, snap.ActiveTask.Votes)
}

// A reveal performed by another client must land here with the complete
// durable vote set, not whatever the event payload happened to carry.
func TestTaskEventRevealFetchesDurableVotes(t *testing.T) {
	s, store, feed, _ := newTestSession(ownerIdentity())
	room := joinAsOwner(t, s, store)
	require.NoError(t, s.CreateTask(context.Background(), "story", "", "", ""))
	require.NoError(t, s.SubscribeToRoom(context.Background()))
	require.NoError(t, s.CastVote(context.Background(), "5"))

	taskID := store.tasks[0].ID
	oldTask := *copyFakeTask(store.tasks[0])

	other := uuid.New()
	require.NoError(t, store.UpsertVote(context.Background(), taskID, other, "21"))
	require.NoError(t, store.SetRevealed(context.Background(), taskID, true))
	newTask := *copyFakeTask(store.tasks[0])

	feed.emit(realtime.Event{
		Table:  realtime.TableTasks,
		Type:   realtime.EventUpdate,
		RoomID: room.ID,
		Old:    mustJSON(t, oldTask),
		New:    mustJSON(t, newTask),
	})

	snap := s.Snapshot()
	require.NotNil(t, snap.ActiveTask)
	assert.True(t, snap.ActiveTask.IsRevealed)
	require.Len(t, snap.ActiveTask.Votes, 2)
	assert.Equal(t, "21", snap.ActiveTask.Votes[other.String()])
	assert.Equal(t, "5", snap.ActiveTask.Votes[snap.PlayerID.String()])
}

func TestTaskEventForInactiveTaskLeavesOverlay(t *testing.T) {
	s, store, feed, _ := newTestSession(ownerIdentity())
	room := joinAsOwner(t, s, store)
	require.NoError(t, s.CreateTask(context.Background(), "first", "", "", ""))
	require.NoError(t, s.CreateTask(context.Background(), "second", "", "", ""))
	require.NoError(t, s.SubscribeToRoom(context.Background()))
	require.NoError(t, s.CastVote(context.Background(), "8"))

	inactive := *copyFakeTask(store.tasks[1])

	feed.emit(realtime.Event{
		Table:  realtime.TableTasks,
		Type:   realtime.EventUpdate,
		RoomID: room.ID,
		Old:    mustJSON(t, inactive),
		New:    mustJSON(t, inactive),
	})

	assert.Equal(t, "8", s.Snapshot().LocalVote)
}

func TestCloseStopsFeed(t *testing.T) {
	s, store, feed, _ := newTestSession(nil)
	room := store.addRoom("acct-owner", false)
	_, err := s.FindRoomByCode(context.Background(), room.Code)
	require.NoError(t, err)
	require.NoError(t, s.SubscribeToRoom(context.Background()))

	require.NoError(t, s.Close())
	assert.True(t, feed.closed)
	require.NoError(t, s.Close(), "second close is a no-op")
}
