package api

import (
	"net/http"
	"strconv"

	"github.com/arvind-99/commune/internal/chat"
	"github.com/arvind-99/commune/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChatHandler serves the history read path. Live traffic goes over the
// websocket; this endpoint only backfills a conversation when the chat
// UI opens.
type ChatHandler struct {
	chat   *chat.Service
	logger *zap.Logger
}

func NewChatHandler(svc *chat.Service, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: svc, logger: logger}
}

// History handles GET /v1/chat/history?with=username&before=123&limit=50.
// Cursor pagination on the message id: before=0 starts from the latest.
func (h *ChatHandler) History(c *gin.Context) {
	with := c.Query("with")
	if with == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'with' parameter"})
		return
	}

	var before int64
	if b := c.Query("before"); b != "" {
		var err error
		before, err = strconv.ParseInt(b, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'before' parameter"})
			return
		}
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		if limit > 100 {
			limit = 100
		}
	}

	messages, err := h.chat.History(c.Request.Context(), middleware.GetUserID(c), with, before, limit)
	if err != nil {
		h.logger.Error("failed to load history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	c.JSON(http.StatusOK, messages)
}
