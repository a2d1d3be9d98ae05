package api

import (
	"errors"
	"net/http"

	"github.com/arvind-99/commune/internal/media"
	"github.com/arvind-99/commune/internal/middleware"
	"github.com/arvind-99/commune/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PostHandler struct {
	posts   repository.PostRepository
	uploads *media.Store
	logger  *zap.Logger
}

func NewPostHandler(posts repository.PostRepository, uploads *media.Store, logger *zap.Logger) *PostHandler {
	return &PostHandler{posts: posts, uploads: uploads, logger: logger}
}

// Create handles POST /v1/posts: multipart form with a "media" file and
// an optional "is_private" flag.
func (h *PostHandler) Create(c *gin.Context) {
	file, err := c.FormFile("media")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "media file is required"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable media file"})
		return
	}
	defer src.Close()

	filename, err := h.uploads.Save(src, file.Filename)
	if err != nil {
		if errors.Is(err, media.ErrDisallowedType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file type not allowed"})
			return
		}
		h.logger.Error("failed to store upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create post"})
		return
	}

	isPrivate := c.PostForm("is_private") == "on" || c.PostForm("is_private") == "true"

	post, err := h.posts.Create(c.Request.Context(), middleware.GetUserID(c), filename, isPrivate)
	if err != nil {
		h.logger.Error("failed to create post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create post"})
		return
	}

	c.JSON(http.StatusCreated, post)
}

// List handles GET /v1/posts: the feed the caller may see, each post
// tagged with its sniffed media type.
func (h *PostHandler) List(c *gin.Context) {
	posts, err := h.posts.ListVisible(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("failed to list posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list posts"})
		return
	}

	for i := range posts {
		posts[i].MediaType = h.uploads.Classify(posts[i].Filename)
	}

	c.JSON(http.StatusOK, posts)
}

// ServeUpload handles GET /uploads/:filename. Public, like the rest of
// the upload directory: privacy gating applies to the feed listing,
// not to the files themselves.
func (h *PostHandler) ServeUpload(c *gin.Context) {
	c.File(h.uploads.Path(c.Param("filename")))
}
