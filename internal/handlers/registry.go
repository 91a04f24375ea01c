package handlers

import (
	"huddle_backend/ws"
)

// AppHandlers holds every handler mounted by the router.
type AppHandlers struct {
	ChatHandler   *ChatHandler
	HealthHandler *HealthHandler
	WSHandler     *ws.WebSocketHandler
	// MediaHandler is nil when no bucket is configured.
	MediaHandler *MediaHandler
}
