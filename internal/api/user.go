package api

import (
	"net/http"

	"github.com/arvind-99/commune/internal/middleware"
	"github.com/arvind-99/commune/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	users   repository.UserRepository
	friends repository.FriendRepository
	logger  *zap.Logger
}

func NewUserHandler(users repository.UserRepository, friends repository.FriendRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, friends: friends, logger: logger}
}

// Me handles GET /v1/me.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("failed to load profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// userWithStatus is a directory entry plus the caller's relation to it,
// which is what the friends page needs to pick the right button.
type userWithStatus struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FriendStatus string `json:"friend_status,omitempty"`
}

// Search handles GET /v1/users?search=keyword. The caller is excluded
// from the results.
func (h *UserHandler) Search(c *gin.Context) {
	userID := middleware.GetUserID(c)

	users, err := h.users.Search(c.Request.Context(), c.Query("search"), userID)
	if err != nil {
		h.logger.Error("failed to search users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search users"})
		return
	}

	out := make([]userWithStatus, 0, len(users))
	for _, u := range users {
		status, err := h.friends.StatusBetween(c.Request.Context(), userID, u.ID)
		if err != nil {
			h.logger.Error("failed to check friend status", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search users"})
			return
		}
		out = append(out, userWithStatus{ID: u.ID, Username: u.Username, FriendStatus: status})
	}

	c.JSON(http.StatusOK, out)
}
