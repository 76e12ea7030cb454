package gateway

import (
	"context"
	"net/http"

	"github.com/mcdev12/choicetrial/go/internal/results"
	"github.com/rs/zerolog/log"
)

// Service is the participant-facing gateway: the participant page, the
// session WebSocket and the result query API.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	resultService     *ResultService
	page              PageData
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	Title            string
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		Title:            "Experiment",
	}
}

// NewService creates a new gateway service
func NewService(config Config, newSession SessionFactory, reader results.Reader) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig, newSession)
	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		resultService:     NewResultService(reader),
		page: PageData{
			Title:     config.Title,
			DisplayID: DisplayID,
			WSPath:    "/ws/session",
		},
	}
}

// Start blocks until ctx is cancelled, then aborts every running session.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting gateway service")
	<-ctx.Done()

	log.Info().Msg("gateway service shutting down")
	s.connectionManager.CloseAll()
	return nil
}

// RegisterRoutes registers the page, WebSocket and result routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", PageHandler(s.page))
	s.wsHandler.RegisterRoutes(mux)

	path, handler := NewResultServiceHandler(s.resultService)
	mux.Handle(path, handler)
	log.Info().Str("result_service", path).Msg("gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "choicetrial_gateway"
	stats["status"] = "running"
	return stats
}
