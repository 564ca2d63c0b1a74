package gateway

import (
	"context"
	"net/http"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Service is the room gateway: it accepts WebSocket connections from browser
// clients and relays each room's change events to them, plus a state snapshot
// endpoint for initial page loads.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	feedConsumer      *FeedConsumer
	stateHandler      *StateHandler
}

// NewService creates a room gateway service
func NewService(config ConnectionConfig, nc *nats.Conn, stateProvider StateProvider) *Service {
	connectionManager := NewConnectionManager(config)

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		feedConsumer:      NewFeedConsumer(connectionManager, nc),
		stateHandler:      NewStateHandler(stateProvider),
	}
}

// Start runs the gateway until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting room gateway service")

	go s.connectionManager.Start(ctx)

	go func() {
		if err := s.feedConsumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("change feed consumer failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("room gateway service stopped")
	return nil
}

// RegisterRoutes registers the gateway HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("room gateway routes registered")
}
