package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/storydeck/internal/realtime"
)

// startTestHub runs a connection manager and an upgrade endpoint that parks
// every connection in the given room.
func startTestHub(t *testing.T, roomID uuid.UUID) (*ConnectionManager, *httptest.Server) {
	t.Helper()

	cm := NewConnectionManager(DefaultConnectionConfig())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go cm.Start(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := cm.UpgradeConnection(w, r, roomID); err != nil {
			t.Errorf("upgrade failed: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return cm, srv
}

func dialTestHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastToRoomReachesConnections(t *testing.T) {
	roomID := uuid.New()
	cm, srv := startTestHub(t, roomID)
	conn := dialTestHub(t, srv)

	require.Eventually(t, func() bool {
		total, _ := cm.GetConnectionStats()
		return total == 1
	}, time.Second, 10*time.Millisecond, "connection never registered")

	// An event for another room must not reach this client.
	cm.BroadcastToRoom(uuid.New(), realtime.Event{
		Table:  realtime.TablePlayers,
		Type:   realtime.EventInsert,
		RoomID: uuid.New(),
	})
	sent := realtime.Event{
		Table:     realtime.TableTasks,
		Type:      realtime.EventUpdate,
		RoomID:    roomID,
		New:       json.RawMessage(`{"is_revealed":true}`),
		Timestamp: time.Now().UTC(),
	}
	cm.BroadcastToRoom(roomID, sent)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got realtime.Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, roomID, got.RoomID)
	assert.Equal(t, realtime.TableTasks, got.Table)
	assert.Equal(t, realtime.EventUpdate, got.Type)
	assert.JSONEq(t, `{"is_revealed":true}`, string(got.New))
}

func TestConnectionStatsTrackDisconnects(t *testing.T) {
	roomID := uuid.New()
	cm, srv := startTestHub(t, roomID)

	first := dialTestHub(t, srv)
	dialTestHub(t, srv)

	require.Eventually(t, func() bool {
		total, rooms := cm.GetConnectionStats()
		return total == 2 && rooms == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, first.Close())

	require.Eventually(t, func() bool {
		total, rooms := cm.GetConnectionStats()
		return total == 1 && rooms == 1
	}, time.Second, 10*time.Millisecond, "closed connection never unregistered")
}
