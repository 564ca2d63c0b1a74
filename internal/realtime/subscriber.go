package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Subscriber delivers one room's change events to a handler.
type Subscriber struct {
	nc *nats.Conn
}

// NewSubscriber creates a subscriber on an established connection.
func NewSubscriber(nc *nats.Conn) *Subscriber {
	return &Subscriber{nc: nc}
}

// Subscription is a live per-room feed. Close stops delivery; it does not
// abort work the handler already started.
type Subscription struct {
	sub    *nats.Subscription
	cancel context.CancelFunc
}

// Close tears the subscription down.
func (s *Subscription) Close() error {
	s.cancel()
	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("unsubscribe room feed: %w", err)
	}
	return nil
}

// Subscribe starts consuming every table's events for one room. The handler
// runs on a dedicated goroutine, one event at a time, until Close or ctx
// cancellation.
func (s *Subscriber) Subscribe(ctx context.Context, roomID uuid.UUID, handler func(Event)) (*Subscription, error) {
	msgCh := make(chan *nats.Msg, 64)

	sub, err := s.nc.ChanSubscribe(RoomSubjects(roomID), msgCh)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", RoomSubjects(roomID), err)
	}

	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal(msg.Data, &ev); err != nil {
					log.Error().
						Err(err).
						Str("subject", msg.Subject).
						Msg("failed to decode change event")
					continue
				}
				handler(ev)
			}
		}
	}()

	log.Debug().Str("room_id", roomID.String()).Msg("subscribed to room feed")
	return &Subscription{sub: sub, cancel: cancel}, nil
}
