package counter

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Reconciler recomputes every denormalized counter from its source facts.
// Under normal operation the incremental aggregator keeps the counters
// exact and reconciliation corrects nothing; it exists for disaster
// recovery after a partial restore or a manual data fix. Each statement
// only touches rows whose counter already drifted, so running it against
// live traffic is safe: it never changes facts, only the cached values.
type Reconciler struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewReconciler creates a new counter reconciler
func NewReconciler(db *gorm.DB, logger *zap.Logger) *Reconciler {
	return &Reconciler{db: db, logger: logger}
}

// Report holds the number of rows corrected per counter group.
type Report struct {
	ReplyCounts    int64
	PostCounters   int64
	FollowCounters int64
}

// Total returns the number of corrected rows across all counter groups.
func (r Report) Total() int64 {
	return r.ReplyCounts + r.PostCounters + r.FollowCounters
}

// ReconcileAll recomputes all counters and reports what it corrected.
func (r *Reconciler) ReconcileAll(ctx context.Context) (Report, error) {
	var report Report

	n, err := r.ReconcileReplyCounts(ctx)
	if err != nil {
		return report, err
	}
	report.ReplyCounts = n

	n, err = r.ReconcilePostCounters(ctx)
	if err != nil {
		return report, err
	}
	report.PostCounters = n

	n, err = r.ReconcileFollowCounters(ctx)
	if err != nil {
		return report, err
	}
	report.FollowCounters = n

	if report.Total() > 0 {
		r.logger.Warn("Counter reconciliation corrected drift",
			zap.Int64("reply_counts", report.ReplyCounts),
			zap.Int64("post_counters", report.PostCounters),
			zap.Int64("follow_counters", report.FollowCounters))
	} else {
		r.logger.Debug("Counter reconciliation found no drift")
	}

	return report, nil
}

// ReconcileReplyCounts restores reply_count to the number of non-deleted
// direct children for every comment where it drifted.
func (r *Reconciler) ReconcileReplyCounts(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE engage_comments SET reply_count = (
			SELECT COUNT(*) FROM engage_comments c
			WHERE c.parent_id = engage_comments.id AND c.is_deleted = FALSE
		)
		WHERE reply_count <> (
			SELECT COUNT(*) FROM engage_comments c
			WHERE c.parent_id = engage_comments.id AND c.is_deleted = FALSE
		)`)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reconcile reply counts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ReconcilePostCounters restores total_claps, total_likes and
// bookmarks_count from the clap and bookmark fact tables.
func (r *Reconciler) ReconcilePostCounters(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE engage_posts SET
			total_claps = (
				SELECT COALESCE(SUM(count), 0) FROM engage_claps
				WHERE engage_claps.post_id = engage_posts.id
			),
			total_likes = (
				SELECT COUNT(*) FROM engage_claps
				WHERE engage_claps.post_id = engage_posts.id AND engage_claps.count > 0
			),
			bookmarks_count = (
				SELECT COUNT(*) FROM engage_bookmarks
				WHERE engage_bookmarks.post_id = engage_posts.id
			)
		WHERE
			total_claps <> (
				SELECT COALESCE(SUM(count), 0) FROM engage_claps
				WHERE engage_claps.post_id = engage_posts.id
			)
			OR total_likes <> (
				SELECT COUNT(*) FROM engage_claps
				WHERE engage_claps.post_id = engage_posts.id AND engage_claps.count > 0
			)
			OR bookmarks_count <> (
				SELECT COUNT(*) FROM engage_bookmarks
				WHERE engage_bookmarks.post_id = engage_posts.id
			)`)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reconcile post counters: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ReconcileFollowCounters restores followers_count and following_count
// from the follow fact table.
func (r *Reconciler) ReconcileFollowCounters(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE engage_users SET
			followers_count = (
				SELECT COUNT(*) FROM engage_follows
				WHERE engage_follows.followed_id = engage_users.id
			),
			following_count = (
				SELECT COUNT(*) FROM engage_follows
				WHERE engage_follows.follower_id = engage_users.id
			)
		WHERE
			followers_count <> (
				SELECT COUNT(*) FROM engage_follows
				WHERE engage_follows.followed_id = engage_users.id
			)
			OR following_count <> (
				SELECT COUNT(*) FROM engage_follows
				WHERE engage_follows.follower_id = engage_users.id
			)`)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reconcile follow counters: %w", res.Error)
	}
	return res.RowsAffected, nil
}
