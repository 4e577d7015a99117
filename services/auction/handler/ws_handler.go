package handler

import (
	"context"
	"net/http"

	"market-connect/internal/realtime"
	"market-connect/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WebsocketHandler struct {
	base     context.Context
	upgrader websocket.Upgrader
	hub      *realtime.Hub
	placer   realtime.BidPlacer
	cfg      realtime.ConnConfig
	opts     []realtime.ConnOption
}

// NewWebsocketHandler serves realtime connections until base is cancelled.
// Clients authenticate with a token, not cookies, so any origin is accepted.
func NewWebsocketHandler(base context.Context, hub *realtime.Hub, placer realtime.BidPlacer, cfg realtime.ConnConfig, opts ...realtime.ConnOption) *WebsocketHandler {
	return &WebsocketHandler{
		base: base,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		hub:    hub,
		placer: placer,
		cfg:    cfg,
		opts:   opts,
	}
}

// ServeWS handles GET /ws
func (h *WebsocketHandler) ServeWS(c *gin.Context) {
	caller, ok := identity(c, "ServeWS")
	if !ok {
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		utils.Warn("ServeWS: upgrade failed", map[string]any{"user_id": caller.UserID, "error": err.Error()})
		return
	}

	conn := realtime.NewConn(ws, h.hub, h.placer, caller.Bidder(), h.cfg, h.opts...)
	if err := conn.Serve(h.base); err != nil {
		utils.Warn("ServeWS: connection ended with error", map[string]any{
			"conn_id": conn.ID(),
			"user_id": caller.UserID,
			"error":   err.Error(),
		})
	}
}
