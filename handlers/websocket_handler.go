package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/promptclash/arena/live"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Dashboards connect from a separate origin; CORS policy is enforced
		// on the HTTP routes, the socket accepts any origin.
		return true
	},
}

type WebSocketHandler struct {
	hub    *live.Hub
	logger *slog.Logger
}

func NewWebSocketHandler(hub *live.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

// ServeWs upgrades the connection and joins the caller to the event's room.
// Clients connect to /ws/events/{eventID}.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		badRequestResponse(w, r, errors.New("missing eventID"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Error("websocket upgrade failed",
			slog.String("event_id", eventID),
			slog.Any("error", err))
		return
	}

	h.hub.Join(eventID, conn)
	h.logger.Debug("websocket client connected", slog.String("event_id", eventID))
}
