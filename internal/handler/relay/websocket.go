// Package relay exposes the session manager over a WebSocket endpoint.
package relay

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/research-relay/internal/session"
)

// WebSocketHandler 将每个 WebSocket 连接交给 session.Manager 处理。
type WebSocketHandler struct {
	manager  *session.Manager
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(manager *session.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写回了 HTTP 错误响应。
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	logger := log.With().Str("request_id", middleware.GetReqID(r.Context())).Str("remote", r.RemoteAddr).Logger()
	logger.Debug().Msg("websocket upgraded")

	if err := h.manager.Serve(r.Context(), conn); err != nil {
		logger.Warn().Err(err).Msg("session ended with error")
	}
}
