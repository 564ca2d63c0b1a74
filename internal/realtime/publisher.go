package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Connect dials NATS with reconnect handling suitable for a long-lived
// process.
func Connect(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Publisher emits room change events over core NATS pub/sub. Room events are
// ephemeral notifications, not a log: a subscriber that misses one converges
// on its next refresh.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher creates a publisher on an established connection.
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

// Publish sends one change event on its room/table subject.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	if err := p.nc.Publish(Subject(ev.RoomID, ev.Table), data); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}

	log.Debug().
		Str("room_id", ev.RoomID.String()).
		Str("table", string(ev.Table)).
		Str("event_type", string(ev.Type)).
		Msg("change event published")
	return nil
}
