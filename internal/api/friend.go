package api

import (
	"net/http"
	"strconv"

	"github.com/arvind-99/commune/internal/middleware"
	"github.com/arvind-99/commune/internal/models"
	"github.com/arvind-99/commune/internal/presence"
	"github.com/arvind-99/commune/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FriendHandler manages the three-state friend relation and the friend
// list the chat page is populated from. The relation gates nothing at
// message-delivery time; it only feeds the UI.
type FriendHandler struct {
	friends  repository.FriendRepository
	presence *presence.Tracker
	logger   *zap.Logger
}

func NewFriendHandler(friends repository.FriendRepository, tracker *presence.Tracker, logger *zap.Logger) *FriendHandler {
	return &FriendHandler{friends: friends, presence: tracker, logger: logger}
}

type friendRequestBody struct {
	TargetID int64 `json:"target_id" binding:"required"`
}

// SendRequest handles POST /v1/friends. Duplicate requests (either
// direction) are absorbed silently, so the endpoint is idempotent.
func (h *FriendHandler) SendRequest(c *gin.Context) {
	var req friendRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.GetUserID(c)
	if req.TargetID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot befriend yourself"})
		return
	}

	if err := h.friends.SendRequest(c.Request.Context(), userID, req.TargetID); err != nil {
		h.logger.Error("failed to send friend request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send friend request"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Accept handles POST /v1/friends/:id/accept, where :id is the
// requesting user's id.
func (h *FriendHandler) Accept(c *gin.Context) {
	senderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.friends.Accept(c.Request.Context(), senderID, middleware.GetUserID(c)); err != nil {
		h.logger.Error("failed to accept friend request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept friend request"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /v1/friends/:id — removes a friendship or
// declines a pending request, whichever exists.
func (h *FriendHandler) Delete(c *gin.Context) {
	otherID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.friends.Delete(c.Request.Context(), middleware.GetUserID(c), otherID); err != nil {
		h.logger.Error("failed to delete friend relation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete friend relation"})
		return
	}

	c.Status(http.StatusNoContent)
}

// List handles GET /v1/friends: accepted friends with a live online
// flag for the chat friend selector.
func (h *FriendHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)

	friends, err := h.friends.ListFriends(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list friends", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list friends"})
		return
	}

	usernames := make([]string, 0, len(friends))
	for _, f := range friends {
		usernames = append(usernames, f.Username)
	}
	online, err := h.presence.ListOnline(c.Request.Context(), usernames)
	if err != nil {
		// Presence is advisory; show everyone offline rather than fail.
		h.logger.Warn("presence lookup failed", zap.Error(err))
		online = map[string]bool{}
	}

	out := make([]models.Friend, 0, len(friends))
	for _, f := range friends {
		out = append(out, models.Friend{
			ID:       f.ID,
			Username: f.Username,
			Online:   online[f.Username],
		})
	}

	c.JSON(http.StatusOK, out)
}

// ListPending handles GET /v1/friends/requests: incoming requests
// awaiting the caller's decision.
func (h *FriendHandler) ListPending(c *gin.Context) {
	requests, err := h.friends.ListPending(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("failed to list friend requests", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list friend requests"})
		return
	}

	c.JSON(http.StatusOK, requests)
}
