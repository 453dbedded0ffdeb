package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quillspace/engage/internal/engagement"
	"github.com/quillspace/engage/internal/models"
	"github.com/quillspace/engage/pkg/logging"
)

// EngagementAPI provides the clap and bookmark endpoints
type EngagementAPI struct {
	gateway *engagement.Gateway
	logger  *zap.Logger
}

// NewEngagementAPI creates a new engagement API
func NewEngagementAPI(gateway *engagement.Gateway) *EngagementAPI {
	return &EngagementAPI{
		gateway: gateway,
		logger:  logging.GetLogger().With(zap.String("component", "api-engagement")),
	}
}

type clapRequest struct {
	// Count defaults to a single clap when the body is empty.
	Count int `json:"count"`
}

type bookmarkResponse struct {
	PostID    uuid.UUID `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Clap handles POST /api/posts/:post_id/clap
func (a *EngagementAPI) Clap(c *gin.Context) {
	userID, err := CurrentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	postID, err := parseID(c, "post_id")
	if err != nil {
		respondError(c, err)
		return
	}

	req := clapRequest{Count: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
			return
		}
	}

	stats, err := a.gateway.Clap(c.Request.Context(), userID, postID, req.Count)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Unclap handles DELETE /api/posts/:post_id/clap
func (a *EngagementAPI) Unclap(c *gin.Context) {
	userID, err := CurrentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	postID, err := parseID(c, "post_id")
	if err != nil {
		respondError(c, err)
		return
	}

	if err := a.gateway.Unclap(c.Request.Context(), userID, postID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ClapStats handles GET /api/posts/:post_id/claps
func (a *EngagementAPI) ClapStats(c *gin.Context) {
	userID, err := CurrentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	postID, err := parseID(c, "post_id")
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := a.gateway.GetClapStats(c.Request.Context(), userID, postID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Bookmark handles POST /api/posts/:post_id/bookmark
func (a *EngagementAPI) Bookmark(c *gin.Context) {
	userID, err := CurrentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	postID, err := parseID(c, "post_id")
	if err != nil {
		respondError(c, err)
		return
	}

	if err := a.gateway.Bookmark(c.Request.Context(), userID, postID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{})
}

// Unbookmark handles DELETE /api/posts/:post_id/bookmark
func (a *EngagementAPI) Unbookmark(c *gin.Context) {
	userID, err := CurrentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	postID, err := parseID(c, "post_id")
	if err != nil {
		respondError(c, err)
		return
	}

	if err := a.gateway.Unbookmark(c.Request.Context(), userID, postID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CheckBookmark handles GET /api/posts/:post_id/bookmark
func (a *EngagementAPI) CheckBookmark(c *gin.Context) {
	userID, err := CurrentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	postID, err := parseID(c, "post_id")
	if err != nil {
		respondError(c, err)
		return
	}

	bookmarked, err := a.gateway.CheckBookmark(c.Request.Context(), userID, postID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"is_bookmarked": bookmarked})
}

// ListBookmarks handles GET /api/bookmarks
func (a *EngagementAPI) ListBookmarks(c *gin.Context) {
	userID, err := CurrentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	page, size := pageParams(c)
	bookmarks, err := a.gateway.ListBookmarks(c.Request.Context(), userID, page, size)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]bookmarkResponse, 0, len(bookmarks))
	for _, b := range bookmarks {
		items = append(items, bookmarkResponse{PostID: b.PostID, CreatedAt: b.CreatedAt})
	}

	c.JSON(http.StatusOK, items)
}
