package session

import "errors"

var (
	// ErrUnauthenticated is returned when an action requires an account and
	// none is present.
	ErrUnauthenticated = errors.New("sign-in required")

	// ErrRoomLocked is returned when a non-owner tries to join a finished
	// room.
	ErrRoomLocked = errors.New("room has been locked by its owner")

	// ErrRemoteWrite wraps a durable write the remote store rejected. The
	// optimistic local state is left as applied; the next refresh converges
	// it.
	ErrRemoteWrite = errors.New("remote write failed")

	// ErrNoRoom is returned when an operation needs a loaded room and the
	// session has none.
	ErrNoRoom = errors.New("no room loaded")
)
