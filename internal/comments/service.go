package comments

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quillspace/engage/internal/counter"
	"github.com/quillspace/engage/internal/db"
	"github.com/quillspace/engage/internal/models"
	"github.com/quillspace/engage/pkg/config"
	"github.com/quillspace/engage/pkg/logging"
	"github.com/quillspace/engage/pkg/telemetry"
)

// Service is the comment store: it owns comment creation, editing,
// tombstoning and the paginated tree reads. Every mutation that touches a
// parent's reply_count runs the row change and the counter update in one
// transaction.
type Service struct {
	repo       *db.Repository
	comments   *db.CommentRepository
	posts      *db.PostRepository
	aggregator *counter.Aggregator
	cfg        *config.EngagementConfig
	logger     *zap.Logger
}

// NewService creates a new comment service
func NewService(repo *db.Repository, aggregator *counter.Aggregator, cfg *config.EngagementConfig) *Service {
	return &Service{
		repo:       repo,
		comments:   db.NewCommentRepository(repo),
		posts:      db.NewPostRepository(repo),
		aggregator: aggregator,
		cfg:        cfg,
		logger:     logging.GetLogger().With(zap.String("component", "comments")),
	}
}

// Create persists a new comment. A nil parentID makes a top-level comment;
// otherwise the parent must exist on the same post, and its reply_count is
// incremented in the same transaction as the insert.
func (s *Service) Create(ctx context.Context, postID, authorID uuid.UUID, content string, parentID *uuid.UUID) (*models.Comment, error) {
	ctx, span := telemetry.StartSpan(ctx, "comments.create")
	defer span.End()

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: comment content is empty", models.ErrInvalidInput)
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up post: %w", err)
	}
	if post == nil {
		return nil, fmt.Errorf("%w: post %s", models.ErrNotFound, postID)
	}

	now := time.Now().UTC()
	comment := &models.Comment{
		ID:        uuid.New(),
		PostID:    postID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.repo.Gorm().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if parentID != nil {
			var parent models.Comment
			err := tx.Where("id = ? AND post_id = ?", *parentID, postID).First(&parent).Error
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return fmt.Errorf("%w: parent comment %s", models.ErrNotFound, *parentID)
				}
				return fmt.Errorf("failed to resolve parent comment: %w", err)
			}
			comment.ParentID = uuid.NullUUID{UUID: parent.ID, Valid: true}
		}

		if err := tx.Create(comment).Error; err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}

		return s.aggregator.OnCommentCreated(ctx, tx, comment.ParentID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Created comment",
		zap.String("comment_id", comment.ID.String()),
		zap.String("post_id", postID.String()),
		zap.Bool("is_reply", comment.ParentID.Valid))

	return comment, nil
}

// Update replaces a comment's content. Only the author may edit, and
// tombstones are immutable.
func (s *Service) Update(ctx context.Context, postID, commentID, requesterID uuid.UUID, content string) (*models.Comment, error) {
	ctx, span := telemetry.StartSpan(ctx, "comments.update")
	defer span.End()

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: comment content is empty", models.ErrInvalidInput)
	}

	comment, err := s.comments.GetForPost(ctx, postID, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up comment: %w", err)
	}
	if comment == nil {
		return nil, fmt.Errorf("%w: comment %s", models.ErrNotFound, commentID)
	}
	if comment.AuthorID != requesterID {
		return nil, fmt.Errorf("%w: only the author may edit a comment", models.ErrForbidden)
	}
	if comment.IsDeleted {
		return nil, fmt.Errorf("%w: cannot edit a deleted comment", models.ErrInvalidOperation)
	}

	comment.Content = content
	comment.UpdatedAt = time.Now().UTC()
	err = s.repo.Gorm().WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ?", comment.ID).
		UpdateColumns(map[string]interface{}{
			"content":    comment.Content,
			"updated_at": comment.UpdatedAt,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	return comment, nil
}

// Delete tombstones a comment: the row survives so replies keep a valid
// parent chain, but the content is cleared and the comment leaves every
// listing. A parented comment also decrements its parent's reply_count in
// the same transaction. Deleting an already-deleted comment is a no-op so
// retried requests stay safe.
func (s *Service) Delete(ctx context.Context, postID, commentID, requesterID uuid.UUID) error {
	ctx, span := telemetry.StartSpan(ctx, "comments.delete")
	defer span.End()

	return s.repo.Gorm().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND post_id = ?", commentID, postID).
			First(&comment).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: comment %s", models.ErrNotFound, commentID)
			}
			return fmt.Errorf("failed to look up comment: %w", err)
		}

		if comment.AuthorID != requesterID {
			return fmt.Errorf("%w: only the author may delete a comment", models.ErrForbidden)
		}
		if comment.IsDeleted {
			// Already tombstoned; the decrement happened on the first call.
			return nil
		}

		now := time.Now().UTC()
		err = tx.Model(&models.Comment{}).
			Where("id = ?", comment.ID).
			UpdateColumns(map[string]interface{}{
				"is_deleted": true,
				"deleted_at": sql.NullTime{Time: now, Valid: true},
				"content":    "",
				"updated_at": now,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to delete comment: %w", err)
		}

		if err := s.aggregator.OnCommentDeleted(ctx, tx, comment.ParentID); err != nil {
			return err
		}

		s.logger.Debug("Deleted comment",
			zap.String("comment_id", comment.ID.String()),
			zap.String("post_id", postID.String()))

		return nil
	})
}

// ListTopLevel returns one page of a post's root comments, oldest first.
// Each comment carries its current reply_count; replies are fetched on
// demand through ListReplies.
func (s *Service) ListTopLevel(ctx context.Context, postID uuid.UUID, page, size int) ([]*models.Comment, error) {
	ctx, span := telemetry.StartSpan(ctx, "comments.list_top_level")
	defer span.End()

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up post: %w", err)
	}
	if post == nil {
		return nil, fmt.Errorf("%w: post %s", models.ErrNotFound, postID)
	}

	limit, offset := s.pageBounds(page, size)
	return s.comments.ListTopLevel(ctx, postID, limit, offset)
}

// ListReplies returns one page of a comment's direct children, oldest
// first. It fetches exactly one level; expanding deeper is the caller
// invoking ListReplies again with a child's id.
func (s *Service) ListReplies(ctx context.Context, postID, commentID uuid.UUID, page, size int) ([]*models.Comment, error) {
	ctx, span := telemetry.StartSpan(ctx, "comments.list_replies")
	defer span.End()

	parent, err := s.comments.GetForPost(ctx, postID, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up comment: %w", err)
	}
	if parent == nil {
		return nil, fmt.Errorf("%w: comment %s", models.ErrNotFound, commentID)
	}

	limit, offset := s.pageBounds(page, size)
	return s.comments.ListReplies(ctx, commentID, limit, offset)
}

// pageBounds clamps a 1-based page request to the configured limits.
func (s *Service) pageBounds(page, size int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = s.cfg.DefaultPageSize
	}
	if size > s.cfg.MaxPageSize {
		size = s.cfg.MaxPageSize
	}
	return size, (page - 1) * size
}
