package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcdev12/storydeck/internal/realtime"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// FeedConsumer consumes change events for every room and fans them out to the
// room's WebSocket clients.
type FeedConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
}

// NewFeedConsumer creates a consumer on an established NATS connection.
func NewFeedConsumer(cm *ConnectionManager, nc *nats.Conn) *FeedConsumer {
	return &FeedConsumer{
		connectionManager: cm,
		nc:                nc,
	}
}

// Start begins consuming events until ctx is cancelled.
func (fc *FeedConsumer) Start(ctx context.Context) error {
	log.Info().Str("subject", realtime.AllSubjects).Msg("starting change feed consumer")

	msgCh := make(chan *nats.Msg, 100)
	sub, err := fc.nc.ChanSubscribe(realtime.AllSubjects, msgCh)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", realtime.AllSubjects, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("change feed consumer shutting down")
			return nil
		case msg := <-msgCh:
			var ev realtime.Event
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				log.Error().
					Err(err).
					Str("subject", msg.Subject).
					Msg("failed to decode change event")
				continue
			}
			fc.connectionManager.BroadcastToRoom(ev.RoomID, ev)
		}
	}
}
