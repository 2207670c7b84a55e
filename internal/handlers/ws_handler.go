package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shelfex/backend/internal/livepush"
	"github.com/shelfex/backend/internal/middleware"
)

// WSHandler upgrades authenticated clients onto the live-push channel.
type WSHandler struct {
	hub       *livepush.Hub
	jwtSecret string
	upgrader  websocket.Upgrader
	log       zerolog.Logger
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(hub *livepush.Hub, jwtSecret string, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:       hub,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser origins are already filtered by the CORS layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// RegisterWSRoutes registers the live channel endpoint
func (h *WSHandler) RegisterWSRoutes(g *echo.Group) {
	g.GET("/ws", h.Connect)
}

// Connect authenticates the token query parameter (browsers cannot set
// headers on websocket dials), upgrades, and keeps the session registered
// until the connection dies. The session is unregistered on every exit path.
func (h *WSHandler) Connect(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
	}
	claims, err := middleware.ParseToken(token, h.jwtSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return nil
	}

	session := livepush.NewSession(conn)
	h.hub.Register(claims.UserID, session)
	h.log.Info().Uint("user", claims.UserID).Msg("live session connected")

	session.Run(func() {
		h.hub.Unregister(claims.UserID, session)
		h.log.Info().Uint("user", claims.UserID).Msg("live session disconnected")
	})
	return nil
}
