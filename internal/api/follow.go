package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quillspace/engage/internal/engagement"
	"github.com/quillspace/engage/pkg/logging"
)

// FollowAPI provides the social-graph endpoints
type FollowAPI struct {
	gateway *engagement.Gateway
	logger  *zap.Logger
}

// NewFollowAPI creates a new follow API
func NewFollowAPI(gateway *engagement.Gateway) *FollowAPI {
	return &FollowAPI{
		gateway: gateway,
		logger:  logging.GetLogger().With(zap.String("component", "api-follow")),
	}
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

type userPageResponse struct {
	Items []userResponse `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

func toUserPageResponse(page *engagement.UserPage) userPageResponse {
	items := make([]userResponse, 0, len(page.Items))
	for _, u := range page.Items {
		items = append(items, userResponse{
			ID:        u.ID,
			Username:  u.Username,
			FullName:  u.FullName.String,
			Bio:       u.Bio.String,
			AvatarURL: u.AvatarURL.String,
		})
	}
	return userPageResponse{Items: items, Total: page.Total, Page: page.Page, Size: page.Size}
}

// Follow handles POST /api/users/:user_id/follow
func (a *FollowAPI) Follow(c *gin.Context) {
	userID, err := CurrentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	targetID, err := parseID(c, "user_id")
	if err != nil {
		respondError(c, err)
		return
	}

	if err := a.gateway.Follow(c.Request.Context(), userID, targetID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{})
}

// Unfollow handles DELETE /api/users/:user_id/follow
func (a *FollowAPI) Unfollow(c *gin.Context) {
	userID, err := CurrentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	targetID, err := parseID(c, "user_id")
	if err != nil {
		respondError(c, err)
		return
	}

	if err := a.gateway.Unfollow(c.Request.Context(), userID, targetID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CheckFollow handles GET /api/users/:user_id/follow
func (a *FollowAPI) CheckFollow(c *gin.Context) {
	userID, err := CurrentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	targetID, err := parseID(c, "user_id")
	if err != nil {
		respondError(c, err)
		return
	}

	following, err := a.gateway.CheckFollow(c.Request.Context(), userID, targetID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"is_following": following})
}

// Stats handles GET /api/users/:user_id/stats
func (a *FollowAPI) Stats(c *gin.Context) {
	userID, err := CurrentUser(c)
	if err != nil {
		respondError(c, err)
		return
	}

	targetID, err := parseID(c, "user_id")
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := a.gateway.GetFollowStats(c.Request.Context(), targetID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Followers handles GET /api/users/:user_id/followers
func (a *FollowAPI) Followers(c *gin.Context) {
	targetID, err := parseID(c, "user_id")
	if err != nil {
		respondError(c, err)
		return
	}

	page, size := pageParams(c)
	result, err := a.gateway.Followers(c.Request.Context(), targetID, page, size)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserPageResponse(result))
}

// Following handles GET /api/users/:user_id/following
func (a *FollowAPI) Following(c *gin.Context) {
	targetID, err := parseID(c, "user_id")
	if err != nil {
		respondError(c, err)
		return
	}

	page, size := pageParams(c)
	result, err := a.gateway.Following(c.Request.Context(), targetID, page, size)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserPageResponse(result))
}
