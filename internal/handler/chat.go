package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakif/courier/internal/chat"
)

// ChatHandler upgrades requests to WebSocket connections and hands them to
// the hub.
type ChatHandler struct {
	hub      *chat.Hub
	upgrader websocket.Upgrader
	client   chat.ClientConfig
	logger   *slog.Logger
}

// NewChatHandler creates a ChatHandler. origins decides which browser
// origins may connect.
func NewChatHandler(hub *chat.Hub, origins *chat.OriginPolicy, client chat.ClientConfig, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      origins.Check,
		},
		client: client,
		logger: logger,
	}
}

// HandleWebSocket serves the chat endpoint.
//
// HTTP: GET /api/ws (Upgrade: websocket)
//
// Upgrade writes its own error response (403 for a rejected origin, 400 for
// a malformed handshake), so a failed upgrade is only logged here.
func (h *ChatHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	client := chat.NewClient(conn, r.RemoteAddr, h.client, h.logger)
	if err := h.hub.Register(client); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}
