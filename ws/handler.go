package ws

import (
	"net/http"

	"huddle_backend/internal/logger"
	"huddle_backend/internal/middleware"
	"huddle_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	Manager  *Manager
	Gateway  Gateway
	opts     Options
	upgrader websocket.Upgrader
}

// NewWebSocketHandler accepts upgrades from allowedOrigins ("*" allows any origin).
func NewWebSocketHandler(manager *Manager, gateway Gateway, opts Options, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		Manager: manager,
		Gateway: gateway,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS upgrades an authenticated request. The caller id comes from AuthMiddleware.
func (h *WebSocketHandler) ServeWS(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		apperrors.HandleError(c, apperrors.NewUnauthorizedError("Unauthorized"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.CtxWarn(c.Request.Context(), "websocket upgrade failed", "error", err.Error())
		return
	}

	client := NewClient(conn, userID, h.Manager, h.Gateway, h.opts)
	if err := h.Manager.Register(c.Request.Context(), client); err != nil {
		logger.CtxWithError(c.Request.Context(), "websocket register failed", err)
		client.Close()
		return
	}

	logger.CtxInfo(c.Request.Context(), "websocket connected", "session_id", client.ID)
	client.Start()
}
