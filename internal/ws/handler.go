package ws

import (
	"net/http"
	"strings"

	"github.com/arvind-99/commune/internal/auth"
	"github.com/arvind-99/commune/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades HTTP requests to websocket connections and binds
// their identity.
type Handler struct {
	hub      *Hub
	chat     ChatService
	presence Presence
	secret   string
	upgrader websocket.Upgrader
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func NewHandler(hub *Hub, chatSvc ChatService, pres Presence, jwtSecret string, collector *metrics.Collector, logger *zap.Logger) *Handler {
	return &Handler{
		hub:      hub,
		chat:     chatSvc,
		presence: pres,
		secret:   jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The app serves its own frontend; cross-origin browsers
			// still need a valid token to do anything.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		metrics: collector,
		logger:  logger,
	}
}

// Serve handles GET /v1/ws. The token comes from the "token" query
// parameter (browsers can't set headers on websocket dials) or the
// Authorization header.
//
// A missing or invalid token does not refuse the upgrade: the
// connection comes up unauthenticated and every event on it is a
// silent no-op. Realtime events never surface auth errors.
func (h *Handler) Serve(c *gin.Context) {
	identity := h.resolveIdentity(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, identity, h.chat, h.presence, h.metrics, h.logger)
	h.metrics.ConnOpened()

	if identity != nil {
		// Every authenticated connection is subscribed to its own
		// mailbox channel; an explicit join for the same name is a
		// harmless no-op.
		h.hub.Join(client, identity.Username)
		h.presence.Online(client.ctx, identity.Username)
		h.logger.Info("websocket connected",
			zap.String("username", identity.Username),
			zap.Int64("user_id", identity.UserID),
		)
	} else {
		h.logger.Info("websocket connected unauthenticated",
			zap.String("remote", c.Request.RemoteAddr),
		)
	}

	go client.writePump()
	go client.readPump()
}

func (h *Handler) resolveIdentity(c *gin.Context) *Identity {
	token := c.Query("token")
	if token == "" {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = parts[1]
		}
	}
	if token == "" {
		return nil
	}

	claims, err := auth.ParseToken(token, h.secret)
	if err != nil {
		h.logger.Debug("websocket token rejected", zap.Error(err))
		return nil
	}
	return &Identity{UserID: claims.UserID, Username: claims.Username}
}
