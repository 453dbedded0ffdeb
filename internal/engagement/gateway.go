package engagement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quillspace/engage/internal/cache"
	"github.com/quillspace/engage/internal/counter"
	"github.com/quillspace/engage/internal/db"
	"github.com/quillspace/engage/internal/models"
	"github.com/quillspace/engage/pkg/config"
	"github.com/quillspace/engage/pkg/logging"
	"github.com/quillspace/engage/pkg/telemetry"
)

// statsTTL bounds how stale a cached counter read may be.
const statsTTL = 30 * time.Second

// Gateway is the single entry point for follow, bookmark and clap actions.
// Every operation combines its fact-table mutation with the matching
// counter update in one transaction, and every toggle is idempotent:
// duplicate calls converge to the same end state instead of erroring.
type Gateway struct {
	repo       *db.Repository
	posts      *db.PostRepository
	users      *db.UserRepository
	claps      *db.ClapRepository
	bookmarks  *db.BookmarkRepository
	follows    *db.FollowRepository
	aggregator *counter.Aggregator
	cache      *cache.Cache
	cfg        *config.EngagementConfig
	logger     *zap.Logger
}

// NewGateway creates a new engagement gateway
func NewGateway(repo *db.Repository, aggregator *counter.Aggregator, statsCache *cache.Cache, cfg *config.EngagementConfig) *Gateway {
	return &Gateway{
		repo:       repo,
		posts:      db.NewPostRepository(repo),
		users:      db.NewUserRepository(repo),
		claps:      db.NewClapRepository(repo),
		bookmarks:  db.NewBookmarkRepository(repo),
		follows:    db.NewFollowRepository(repo),
		aggregator: aggregator,
		cache:      statsCache,
		cfg:        cfg,
		logger:     logging.GetLogger().With(zap.String("component", "engagement")),
	}
}

// ClapStats is the engagement summary for one post as seen by one caller.
type ClapStats struct {
	TotalClaps  int64 `json:"total_claps"`
	TotalLikes  int64 `json:"total_likes"`
	UserClapped bool  `json:"user_clapped"`
	UserClaps   int   `json:"user_claps"`
}

// FollowStats is the follow summary for one user as seen by one caller.
type FollowStats struct {
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
	IsFollowing    bool  `json:"is_following"`
}

// UserPage is one page of users with the total matching count.
type UserPage struct {
	Items []*models.User `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

// Follow records followerID following followedID. Following yourself is
// rejected; following someone twice is a successful no-op, enforced by the
// fact table's primary key rather than application branching.
func (g *Gateway) Follow(ctx context.Context, followerID, followedID uuid.UUID) error {
	ctx, span := telemetry.StartSpan(ctx, "engagement.follow")
	defer span.End()

	if followerID == followedID {
		return fmt.Errorf("%w: cannot follow yourself", models.ErrInvalidOperation)
	}

	target, err := g.users.GetByID(ctx, followedID)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if target == nil {
		return fmt.Errorf("%w: user %s", models.ErrNotFound, followedID)
	}

	err = g.repo.Gorm().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.FollowFact{
			FollowerID: followerID,
			FollowedID: followedID,
			CreatedAt:  time.Now().UTC(),
		})
		if res.Error != nil {
			return fmt.Errorf("failed to create follow: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Already following; counters were bumped by the original call.
			return nil
		}
		return g.aggregator.OnFollowCreated(ctx, tx, followerID, followedID)
	})
	if err != nil {
		return err
	}

	g.invalidateUserStats(followerID, followedID)
	return nil
}

// Unfollow removes a follow edge. Unfollowing someone you don't follow is
// a successful no-op.
func (g *Gateway) Unfollow(ctx context.Context, followerID, followedID uuid.UUID) error {
	ctx, span := telemetry.StartSpan(ctx, "engagement.unfollow")
	defer span.End()

	err := g.repo.Gorm().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND followed_id = ?", followerID, followedID).
			Delete(&models.FollowFact{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete follow: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return g.aggregator.OnFollowRemoved(ctx, tx, followerID, followedID)
	})
	if err != nil {
		return err
	}

	g.invalidateUserStats(followerID, followedID)
	return nil
}

// CheckFollow reports whether followerID follows followedID
func (g *Gateway) CheckFollow(ctx context.Context, followerID, followedID uuid.UUID) (bool, error) {
	follow, err := g.follows.Get(ctx, followerID, followedID)
	if err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}
	return follow != nil, nil
}

// GetFollowStats returns a user's follower counters plus whether the
// viewer follows them. Counters come from the denormalized user row, not
// from scanning the fact table.
func (g *Gateway) GetFollowStats(ctx context.Context, userID, viewerID uuid.UUID) (*FollowStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "engagement.follow_stats")
	defer span.End()

	stats, err := g.followCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	isFollowing, err := g.CheckFollow(ctx, viewerID, userID)
	if err != nil {
		return nil, err
	}
	stats.IsFollowing = isFollowing
	return stats, nil
}

// Followers returns one page of the users following userID, newest follow
// first, with the total follower count.
func (g *Gateway) Followers(ctx context.Context, userID uuid.UUID, page, size int) (*UserPage, error) {
	limit, offset := g.pageBounds(page, size)

	total, err := g.follows.CountFollowers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count followers: %w", err)
	}

	facts, err := g.follows.Followers(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(facts))
	for _, f := range facts {
		ids = append(ids, f.FollowerID)
	}

	items, err := g.resolveUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	return &UserPage{Items: items, Total: total, Page: normalizePage(page), Size: limit}, nil
}

// Following returns one page of the users userID follows, newest follow
// first, with the total following count.
func (g *Gateway) Following(ctx context.Context, userID uuid.UUID, page, size int) (*UserPage, error) {
	limit, offset := g.pageBounds(page, size)

	total, err := g.follows.CountFollowing(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count following: %w", err)
	}

	facts, err := g.follows.Following(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list following: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(facts))
	for _, f := range facts {
		ids = append(ids, f.FollowedID)
	}

	items, err := g.resolveUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	return &UserPage{Items: items, Total: total, Page: normalizePage(page), Size: limit}, nil
}

// Clap adds delta claps from userID on postID, capped at MaxUserClaps per
// user per post. The clap fact row is locked for the duration of the
// transaction so concurrent claps from the same user serialize and none
// are lost; the post counters move by exactly newCount-prevCount.
func (g *Gateway) Clap(ctx context.Context, userID, postID uuid.UUID, delta int) (*ClapStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "engagement.clap")
	defer span.End()

	if delta < 1 {
		return nil, fmt.Errorf("%w: clap count must be positive", models.ErrInvalidInput)
	}

	post, err := g.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up post: %w", err)
	}
	if post == nil {
		return nil, fmt.Errorf("%w: post %s", models.ErrNotFound, postID)
	}

	var newCount int
	err = g.repo.Gorm().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fact, err := g.clapForUpdate(ctx, tx, userID, postID, delta)
		if err != nil {
			return err
		}

		prev := 0
		now := time.Now().UTC()
		if fact != nil {
			prev = fact.Count
			newCount = min(prev+delta, g.cfg.MaxUserClaps)
			if newCount != prev {
				err = tx.Model(&models.ClapFact{}).
					Where("user_id = ? AND post_id = ?", userID, postID).
					UpdateColumns(map[string]interface{}{
						"count":      newCount,
						"updated_at": now,
					}).Error
				if err != nil {
					return fmt.Errorf("failed to update clap: %w", err)
				}
			}
		} else {
			newCount = min(delta, g.cfg.MaxUserClaps)
		}

		return g.aggregator.OnClapUpsert(ctx, tx, postID, newCount, prev)
	})
	if err != nil {
		return nil, err
	}

	g.invalidatePostStats(postID)

	stats, err := g.postCounts(ctx, postID)
	if err != nil {
		return nil, err
	}
	stats.UserClapped = newCount > 0
	stats.UserClaps = newCount
	return stats, nil
}

// clapForUpdate returns the caller's locked clap fact, inserting it when
// absent. The DO NOTHING insert plus re-read closes the race where two
// first claps arrive together: the loser of the insert blocks until the
// winner commits, then observes the committed row.
func (g *Gateway) clapForUpdate(ctx context.Context, tx *gorm.DB, userID, postID uuid.UUID, delta int) (*models.ClapFact, error) {
	var fact models.ClapFact
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		First(&fact).Error
	if err == nil {
		return &fact, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to look up clap: %w", err)
	}

	now := time.Now().UTC()
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ClapFact{
		UserID:    userID,
		PostID:    postID,
		Count:     min(delta, g.cfg.MaxUserClaps),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to create clap: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		// Fresh insert; no previous count.
		return nil, nil
	}

	// Lost the insert race; the row exists now.
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		First(&fact).Error
	if err != nil {
		return nil, fmt.Errorf("failed to re-read clap: %w", err)
	}
	return &fact, nil
}

// Unclap removes all of userID's claps from postID. Removing claps that
// don't exist is a successful no-op.
func (g *Gateway) Unclap(ctx context.Context, userID, postID uuid.UUID) error {
	ctx, span := telemetry.StartSpan(ctx, "engagement.unclap")
	defer span.End()

	err := g.repo.Gorm().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var fact models.ClapFact
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND post_id = ?", userID, postID).
			First(&fact).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return fmt.Errorf("failed to look up clap: %w", err)
		}

		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).
			Delete(&models.ClapFact{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete clap: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return g.aggregator.OnClapUpsert(ctx, tx, postID, 0, fact.Count)
	})
	if err != nil {
		return err
	}

	g.invalidatePostStats(postID)
	return nil
}

// GetClapStats returns a post's clap totals plus the caller's own count
func (g *Gateway) GetClapStats(ctx context.Context, userID, postID uuid.UUID) (*ClapStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "engagement.clap_stats")
	defer span.End()

	stats, err := g.postCounts(ctx, postID)
	if err != nil {
		return nil, err
	}

	fact, err := g.claps.Get(ctx, userID, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up clap: %w", err)
	}
	if fact != nil {
		stats.UserClapped = true
		stats.UserClaps = fact.Count
	}
	return stats, nil
}

// Bookmark saves postID to userID's reading list; saving twice is a
// successful no-op.
func (g *Gateway) Bookmark(ctx context.Context, userID, postID uuid.UUID) error {
	ctx, span := telemetry.StartSpan(ctx, "engagement.bookmark")
	defer span.End()

	post, err := g.posts.GetByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to look up post: %w", err)
	}
	if post == nil {
		return fmt.Errorf("%w: post %s", models.ErrNotFound, postID)
	}

	err = g.repo.Gorm().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.BookmarkFact{
			UserID:    userID,
			PostID:    postID,
			CreatedAt: time.Now().UTC(),
		})
		if res.Error != nil {
			return fmt.Errorf("failed to create bookmark: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return g.aggregator.OnBookmarkCreated(ctx, tx, postID)
	})
	if err != nil {
		return err
	}

	g.invalidatePostStats(postID)
	return nil
}

// Unbookmark removes postID from userID's reading list; removing an
// absent bookmark is a successful no-op.
func (g *Gateway) Unbookmark(ctx context.Context, userID, postID uuid.UUID) error {
	ctx, span := telemetry.StartSpan(ctx, "engagement.unbookmark")
	defer span.End()

	err := g.repo.Gorm().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).
			Delete(&models.BookmarkFact{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete bookmark: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return g.aggregator.OnBookmarkRemoved(ctx, tx, postID)
	})
	if err != nil {
		return err
	}

	g.invalidatePostStats(postID)
	return nil
}

// CheckBookmark reports whether userID has bookmarked postID
func (g *Gateway) CheckBookmark(ctx context.Context, userID, postID uuid.UUID) (bool, error) {
	bookmark, err := g.bookmarks.Get(ctx, userID, postID)
	if err != nil {
		return false, fmt.Errorf("failed to check bookmark: %w", err)
	}
	return bookmark != nil, nil
}

// ListBookmarks returns one page of userID's reading list, newest first
func (g *Gateway) ListBookmarks(ctx context.Context, userID uuid.UUID, page, size int) ([]*models.BookmarkFact, error) {
	limit, offset := g.pageBounds(page, size)
	return g.bookmarks.ListForUser(ctx, userID, limit, offset)
}

// postCounts reads a post's denormalized counters, via cache when enabled
func (g *Gateway) postCounts(ctx context.Context, postID uuid.UUID) (*ClapStats, error) {
	key := "post:stats:" + postID.String()
	if cached, err := g.cache.Get(key); err == nil {
		var stats ClapStats
		if err := json.Unmarshal([]byte(cached), &stats); err == nil {
			return &stats, nil
		}
	}

	post, err := g.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up post: %w", err)
	}
	if post == nil {
		return nil, fmt.Errorf("%w: post %s", models.ErrNotFound, postID)
	}

	stats := &ClapStats{TotalClaps: post.TotalClaps, TotalLikes: post.TotalLikes}
	if buf, err := json.Marshal(stats); err == nil {
		if err := g.cache.Set(key, buf, statsTTL); err != nil && err != cache.ErrCacheDisabled {
			g.logger.Warn("Failed to cache post stats", zap.Error(err))
		}
	}
	return stats, nil
}

// followCounts reads a user's denormalized follow counters, via cache
// when enabled
func (g *Gateway) followCounts(ctx context.Context, userID uuid.UUID) (*FollowStats, error) {
	key := "user:stats:" + userID.String()
	if cached, err := g.cache.Get(key); err == nil {
		var stats FollowStats
		if err := json.Unmarshal([]byte(cached), &stats); err == nil {
			return &stats, nil
		}
	}

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
	}

	stats := &FollowStats{
		FollowersCount: user.FollowersCount,
		FollowingCount: user.FollowingCount,
	}
	if buf, err := json.Marshal(stats); err == nil {
		if err := g.cache.Set(key, buf, statsTTL); err != nil && err != cache.ErrCacheDisabled {
			g.logger.Warn("Failed to cache user stats", zap.Error(err))
		}
	}
	return stats, nil
}

func (g *Gateway) invalidatePostStats(postID uuid.UUID) {
	if err := g.cache.Delete("post:stats:" + postID.String()); err != nil && err != cache.ErrCacheDisabled {
		g.logger.Warn("Failed to invalidate post stats", zap.Error(err))
	}
}

func (g *Gateway) invalidateUserStats(ids ...uuid.UUID) {
	for _, id := range ids {
		if err := g.cache.Delete("user:stats:" + id.String()); err != nil && err != cache.ErrCacheDisabled {
			g.logger.Warn("Failed to invalidate user stats", zap.Error(err))
		}
	}
}

// resolveUsers fetches users by id, preserving the input order
func (g *Gateway) resolveUsers(ctx context.Context, ids []uuid.UUID) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	users, err := g.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve users: %w", err)
	}

	byID := make(map[uuid.UUID]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	ordered := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			ordered = append(ordered, u)
		}
	}
	return ordered, nil
}

// pageBounds clamps a 1-based page request to the configured limits
func (g *Gateway) pageBounds(page, size int) (limit, offset int) {
	page = normalizePage(page)
	if size < 1 {
		size = g.cfg.DefaultPageSize
	}
	if size > g.cfg.MaxPageSize {
		size = g.cfg.MaxPageSize
	}
	return size, (page - 1) * size
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
