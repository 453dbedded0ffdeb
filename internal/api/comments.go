package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quillspace/engage/internal/comments"
	"github.com/quillspace/engage/internal/models"
	"github.com/quillspace/engage/pkg/logging"
)

// CommentsAPI provides the threaded-discussion endpoints
type CommentsAPI struct {
	service *comments.Service
	logger  *zap.Logger
}

// NewCommentsAPI creates a new comments API
func NewCommentsAPI(service *comments.Service) *CommentsAPI {
	return &CommentsAPI{
		service: service,
		logger:  logging.GetLogger().With(zap.String("component", "api-comments")),
	}
}

type createCommentRequest struct {
	Content  string     `json:"content" binding:"required"`
	ParentID *uuid.UUID `json:"parent_id"`
}

type updateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

type commentResponse struct {
	ID         uuid.UUID  `json:"id"`
	PostID     uuid.UUID  `json:"post_id"`
	AuthorID   uuid.UUID  `json:"author_id"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
	Content    string     `json:"content"`
	ReplyCount int64      `json:"reply_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func toCommentResponse(c *models.Comment) commentResponse {
	resp := commentResponse{
		ID:         c.ID,
		PostID:     c.PostID,
		AuthorID:   c.AuthorID,
		Content:    c.Content,
		ReplyCount: c.ReplyCount,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	if c.ParentID.Valid {
		parentID := c.ParentID.UUID
		resp.ParentID = &parentID
	}
	return resp
}

func toCommentResponses(items []*models.Comment) []commentResponse {
	out := make([]commentResponse, 0, len(items))
	for _, c := range items {
		out = append(out, toCommentResponse(c))
	}
	return out
}

// Create handles POST /api/posts/:post_id/comments
func (a *CommentsAPI) Create(c *gin.Context) {
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

	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	comment, err := a.service.Create(c.Request.Context(), postID, userID, req.Content, req.ParentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toCommentResponse(comment))
}

// Update handles PUT /api/posts/:post_id/comments/:comment_id
func (a *CommentsAPI) Update(c *gin.Context) {
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
	commentID, err := parseID(c, "comment_id")
	if err != nil {
		respondError(c, err)
		return
	}

	var req updateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	comment, err := a.service.Update(c.Request.Context(), postID, commentID, userID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCommentResponse(comment))
}

// Delete handles DELETE /api/posts/:post_id/comments/:comment_id
func (a *CommentsAPI) Delete(c *gin.Context) {
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
	commentID, err := parseID(c, "comment_id")
	if err != nil {
		respondError(c, err)
		return
	}

	if err := a.service.Delete(c.Request.Context(), postID, commentID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListTopLevel handles GET /api/posts/:post_id/comments
func (a *CommentsAPI) ListTopLevel(c *gin.Context) {
	postID, err := parseID(c, "post_id")
	if err != nil {
		respondError(c, err)
		return
	}

	page, size := pageParams(c)
	items, err := a.service.ListTopLevel(c.Request.Context(), postID, page, size)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCommentResponses(items))
}

// ListReplies handles GET /api/posts/:post_id/comments/:comment_id/replies
func (a *CommentsAPI) ListReplies(c *gin.Context) {
	postID, err := parseID(c, "post_id")
	if err != nil {
		respondError(c, err)
		return
	}
	commentID, err := parseID(c, "comment_id")
	if err != nil {
		respondError(c, err)
		return
	}

	page, size := pageParams(c)
	items, err := a.service.ListReplies(c.Request.Context(), postID, commentID, page, size)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCommentResponses(items))
}
