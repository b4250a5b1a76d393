package api

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/open-landscape/landscaper/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now (consider restricting in production)
		return true
	},
}

// handleWebSocket upgrades the connection and subscribes it to the
// landscape event feed.
func (s *Server) handleWebSocket(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return err
	}

	client := &Client{
		hub:  s.wsHub,
		conn: ws,
		send: make(chan []byte, 256),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return nil
}

// broadcastCoordinates notifies WebSocket clients that node positions
// changed.
func (s *Server) broadcastCoordinates(updates []models.CoordinateUpdate) {
	ids := make([]string, len(updates))
	for i, update := range updates {
		ids[i] = update.ID
	}
	if err := s.wsHub.BroadcastEvent(EventCoordinatesUpdated, map[string]any{"ids": ids}); err != nil {
		s.debugLog("WebSocket broadcast failed: %v", err)
	}
}
