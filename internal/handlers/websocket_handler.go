package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orchestrator/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins; this is an internal orchestration surface
	},
}

// WebSocketHandler serves /ws/session/{id}, relaying one session's
// normalized event stream to every connected client for that session.
type WebSocketHandler struct {
	aggregator interfaces.Aggregator
	logger     arbor.ILogger
}

// NewWebSocketHandler creates a WebSocketHandler.
func NewWebSocketHandler(aggregator interfaces.Aggregator, logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{aggregator: aggregator, logger: logger}
}

// Handle upgrades the connection and streams sessionID's events until the
// client disconnects or the subscription is torn down.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/ws/session/")
	if sessionID == "" {
		WriteError(w, http.StatusNotFound, "session id required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}
	defer conn.Close()

	events, unsubscribe := h.aggregator.Subscribe(sessionID)
	defer unsubscribe()

	h.logger.Info().Str("session_id", sessionID).Msg("websocket client connected")

	// Drain inbound keepalive pings on their own goroutine so a stalled
	// reader doesn't block outbound event delivery.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to write websocket event")
				return
			}
		case <-closed:
			h.logger.Info().Str("session_id", sessionID).Msg("websocket client disconnected")
			return
		}
	}
}
