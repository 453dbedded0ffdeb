package counter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quillspace/engage/internal/models"
)

// Aggregator maintains the denormalized engagement counters. Every method
// takes the caller's transaction handle so the counter update commits or
// rolls back together with the fact mutation that caused it, and every
// adjustment is a single server-side column expression, never a
// read-modify-write in Go.
type Aggregator struct {
	logger *zap.Logger
}

// NewAggregator creates a new counter aggregator
func NewAggregator(logger *zap.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// OnCommentCreated bumps the parent's reply_count when a reply is created.
// Top-level comments have no parent and change nothing.
func (a *Aggregator) OnCommentCreated(ctx context.Context, tx *gorm.DB, parentID uuid.NullUUID) error {
	if !parentID.Valid {
		return nil
	}
	err := tx.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ?", parentID.UUID).
		UpdateColumn("reply_count", gorm.Expr("reply_count + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("failed to increment reply count: %w", err)
	}
	return nil
}

// OnCommentDeleted drops the parent's reply_count when a reply is
// tombstoned. The guard clamps at zero so a stale counter can never go
// negative.
func (a *Aggregator) OnCommentDeleted(ctx context.Context, tx *gorm.DB, parentID uuid.NullUUID) error {
	if !parentID.Valid {
		return nil
	}
	err := tx.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ? AND reply_count > 0", parentID.UUID).
		UpdateColumn("reply_count", gorm.Expr("reply_count - ?", 1)).Error
	if err != nil {
		return fmt.Errorf("failed to decrement reply count: %w", err)
	}
	return nil
}

// OnClapUpsert folds a clap fact change into the post's totals.
// total_claps moves by the count delta; total_likes changes only when the
// fact crosses zero in either direction.
func (a *Aggregator) OnClapUpsert(ctx context.Context, tx *gorm.DB, postID uuid.UUID, newCount, prevCount int) error {
	if delta := newCount - prevCount; delta != 0 {
		err := tx.WithContext(ctx).
			Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("total_claps", gorm.Expr("total_claps + ?", delta)).Error
		if err != nil {
			return fmt.Errorf("failed to adjust total claps: %w", err)
		}
	}

	switch {
	case prevCount == 0 && newCount > 0:
		err := tx.WithContext(ctx).
			Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("total_likes", gorm.Expr("total_likes + ?", 1)).Error
		if err != nil {
			return fmt.Errorf("failed to increment total likes: %w", err)
		}
	case prevCount > 0 && newCount == 0:
		err := tx.WithContext(ctx).
			Model(&models.Post{}).
			Where("id = ? AND total_likes > 0", postID).
			UpdateColumn("total_likes", gorm.Expr("total_likes - ?", 1)).Error
		if err != nil {
			return fmt.Errorf("failed to decrement total likes: %w", err)
		}
	}

	a.logger.Debug("Applied clap counter update",
		zap.String("post_id", postID.String()),
		zap.Int("prev_count", prevCount),
		zap.Int("new_count", newCount))

	return nil
}

// OnFollowCreated bumps both sides of a new follow edge.
func (a *Aggregator) OnFollowCreated(ctx context.Context, tx *gorm.DB, followerID, followedID uuid.UUID) error {
	err := tx.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", followedID).
		UpdateColumn("followers_count", gorm.Expr("followers_count + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("failed to increment followers count: %w", err)
	}
	err = tx.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", followerID).
		UpdateColumn("following_count", gorm.Expr("following_count + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("failed to increment following count: %w", err)
	}
	return nil
}

// OnFollowRemoved reverses OnFollowCreated, clamped at zero.
func (a *Aggregator) OnFollowRemoved(ctx context.Context, tx *gorm.DB, followerID, followedID uuid.UUID) error {
	err := tx.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND followers_count > 0", followedID).
		UpdateColumn("followers_count", gorm.Expr("followers_count - ?", 1)).Error
	if err != nil {
		return fmt.Errorf("failed to decrement followers count: %w", err)
	}
	err = tx.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND following_count > 0", followerID).
		UpdateColumn("following_count", gorm.Expr("following_count - ?", 1)).Error
	if err != nil {
		return fmt.Errorf("failed to decrement following count: %w", err)
	}
	return nil
}

// OnBookmarkCreated bumps the post's bookmark count.
func (a *Aggregator) OnBookmarkCreated(ctx context.Context, tx *gorm.DB, postID uuid.UUID) error {
	err := tx.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("bookmarks_count", gorm.Expr("bookmarks_count + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("failed to increment bookmarks count: %w", err)
	}
	return nil
}

// OnBookmarkRemoved reverses OnBookmarkCreated, clamped at zero.
func (a *Aggregator) OnBookmarkRemoved(ctx context.Context, tx *gorm.DB, postID uuid.UUID) error {
	err := tx.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ? AND bookmarks_count > 0", postID).
		UpdateColumn("bookmarks_count", gorm.Expr("bookmarks_count - ?", 1)).Error
	if err != nil {
		return fmt.Errorf("failed to decrement bookmarks count: %w", err)
	}
	return nil
}
