package api

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quillspace/engage/internal/cache"
	"github.com/quillspace/engage/internal/comments"
	"github.com/quillspace/engage/internal/counter"
	"github.com/quillspace/engage/internal/db"
	"github.com/quillspace/engage/internal/engagement"
	"github.com/quillspace/engage/internal/models"
	"github.com/quillspace/engage/pkg/config"
	"github.com/quillspace/engage/pkg/logging"
)

// Router sets up API routes
type Router struct {
	comments   *CommentsAPI
	engagement *EngagementAPI
	follow     *FollowAPI
	verifier   TokenVerifier
	db         *db.DB
	cache      *cache.Cache
	logger     *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(database *db.DB, statsCache *cache.Cache, cfg *config.Config) *Router {
	repo := db.NewRepository(database.DB)
	aggregator := counter.NewAggregator(logging.GetLogger().With(zap.String("component", "counter")))

	commentService := comments.NewService(repo, aggregator, &cfg.Engagement)
	gateway := engagement.NewGateway(repo, aggregator, statsCache, &cfg.Engagement)

	return &Router{
		comments:   NewCommentsAPI(commentService),
		engagement: NewEngagementAPI(gateway),
		follow:     NewFollowAPI(gateway),
		verifier:   TokenVerifier{Secret: []byte(cfg.Auth.JWTSecret)},
		db:         database,
		cache:      statsCache,
		logger:     logging.GetLogger().With(zap.String("component", "api-router")),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	authed := RequireUser(r.verifier)

	api := engine.Group("/api")

	// Threaded discussion
	api.POST("/posts/:post_id/comments", authed, r.comments.Create)
	api.GET("/posts/:post_id/comments", r.comments.ListTopLevel)
	api.GET("/posts/:post_id/comments/:comment_id/replies", r.comments.ListReplies)
	api.PUT("/posts/:post_id/comments/:comment_id", authed, r.comments.Update)
	api.DELETE("/posts/:post_id/comments/:comment_id", authed, r.comments.Delete)

	// Claps
	api.POST("/posts/:post_id/clap", authed, r.engagement.Clap)
	api.DELETE("/posts/:post_id/clap", authed, r.engagement.Unclap)
	api.GET("/posts/:post_id/claps", authed, r.engagement.ClapStats)

	// Bookmarks
	api.POST("/posts/:post_id/bookmark", authed, r.engagement.Bookmark)
	api.DELETE("/posts/:post_id/bookmark", authed, r.engagement.Unbookmark)
	api.GET("/posts/:post_id/bookmark", authed, r.engagement.CheckBookmark)
	api.GET("/bookmarks", authed, r.engagement.ListBookmarks)

	// Social graph
	api.POST("/users/:user_id/follow", authed, r.follow.Follow)
	api.DELETE("/users/:user_id/follow", authed, r.follow.Unfollow)
	api.GET("/users/:user_id/follow", authed, r.follow.CheckFollow)
	api.GET("/users/:user_id/stats", authed, r.follow.Stats)
	api.GET("/users/:user_id/followers", r.follow.Followers)
	api.GET("/users/:user_id/following", r.follow.Following)
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	if err := r.db.Health(c.Request.Context()); err != nil {
		r.logger.Error("Database health check failed", zap.Error(err))
		c.JSON(503, gin.H{"status": "UNAVAILABLE", "service": "engage-api"})
		return
	}

	cacheStatus := "ok"
	if err := r.cache.Health(c.Request.Context()); err != nil {
		cacheStatus = "disabled"
	}

	c.JSON(200, gin.H{
		"status":  "OK",
		"service": "engage-api",
		"cache":   cacheStatus,
	})
}

// parseID parses a UUID path parameter
func parseID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a valid id", models.ErrInvalidInput, name)
	}
	return id, nil
}

// pageParams reads the page/size query parameters; services clamp them
func pageParams(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("size", "0"))
	return page, size
}
