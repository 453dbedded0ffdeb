package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quillspace/engage/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Gorm exposes the underlying GORM handle for transactional writes
func (r *Repository) Gorm() *gorm.DB {
	return r.db
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// GetByID retrieves a post by ID
func (r *PostRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// UserRepository provides user-related database operations
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(repo *Repository) *UserRepository {
	return &UserRepository{Repository: repo}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDs retrieves multiple users by IDs
func (r *UserRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error) {
	var users []*models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CommentRepository provides comment-related database operations
type CommentRepository struct {
	*Repository
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(repo *Repository) *CommentRepository {
	return &CommentRepository{Repository: repo}
}

// GetByID retrieves a comment by ID, tombstones included
func (r *CommentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &comment, nil
}

// GetForPost retrieves a comment by ID scoped to a post
func (r *CommentRepository) GetForPost(ctx context.Context, postID, id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).
		Where("id = ? AND post_id = ?", id, postID).
		First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &comment, nil
}

// ListTopLevel retrieves one page of a post's root comments, oldest first.
// Tombstones are kept in storage but never returned in pages.
func (r *CommentRepository) ListTopLevel(ctx context.Context, postID uuid.UUID, limit, offset int) ([]*models.Comment, error) {
	var comments []*models.Comment
	if err := r.db.WithContext(ctx).
		Where("post_id = ? AND parent_id IS NULL AND is_deleted = ?", postID, false).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// ListReplies retrieves one page of a comment's direct children, oldest
// first. One level only; callers expand deeper by asking again for a child.
func (r *CommentRepository) ListReplies(ctx context.Context, parentID uuid.UUID, limit, offset int) ([]*models.Comment, error) {
	var comments []*models.Comment
	if err := r.db.WithContext(ctx).
		Where("parent_id = ? AND is_deleted = ?", parentID, false).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// ClapRepository provides clap fact database operations
type ClapRepository struct {
	*Repository
}

// NewClapRepository creates a new clap repository
func NewClapRepository(repo *Repository) *ClapRepository {
	return &ClapRepository{Repository: repo}
}

// Get retrieves a user's clap fact for a post
func (r *ClapRepository) Get(ctx context.Context, userID, postID uuid.UUID) (*models.ClapFact, error) {
	var clap models.ClapFact
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		First(&clap).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &clap, nil
}

// BookmarkRepository provides bookmark fact database operations
type BookmarkRepository struct {
	*Repository
}

// NewBookmarkRepository creates a new bookmark repository
func NewBookmarkRepository(repo *Repository) *BookmarkRepository {
	return &BookmarkRepository{Repository: repo}
}

// Get retrieves a user's bookmark fact for a post
func (r *BookmarkRepository) Get(ctx context.Context, userID, postID uuid.UUID) (*models.BookmarkFact, error) {
	var bookmark models.BookmarkFact
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		First(&bookmark).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bookmark, nil
}

// ListForUser retrieves a user's reading list, newest first
func (r *BookmarkRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.BookmarkFact, error) {
	var bookmarks []*models.BookmarkFact
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bookmarks).Error; err != nil {
		return nil, err
	}
	return bookmarks, nil
}

// FollowRepository provides follow fact database operations
type FollowRepository struct {
	*Repository
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(repo *Repository) *FollowRepository {
	return &FollowRepository{Repository: repo}
}

// Get retrieves a follow fact
func (r *FollowRepository) Get(ctx context.Context, followerID, followedID uuid.UUID) (*models.FollowFact, error) {
	var follow models.FollowFact
	if err := r.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		First(&follow).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &follow, nil
}

// Followers retrieves one page of follow facts pointing at a user, newest
// first
func (r *FollowRepository) Followers(ctx context.Context, followedID uuid.UUID, limit, offset int) ([]*models.FollowFact, error) {
	var follows []*models.FollowFact
	if err := r.db.WithContext(ctx).
		Where("followed_id = ?", followedID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&follows).Error; err != nil {
		return nil, err
	}
	return follows, nil
}

// Following retrieves one page of a user's outgoing follow facts, newest
// first
func (r *FollowRepository) Following(ctx context.Context, followerID uuid.UUID, limit, offset int) ([]*models.FollowFact, error) {
	var follows []*models.FollowFact
	if err := r.db.WithContext(ctx).
		Where("follower_id = ?", followerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&follows).Error; err != nil {
		return nil, err
	}
	return follows, nil
}

// CountFollowers counts follow facts pointing at a user
func (r *FollowRepository) CountFollowers(ctx context.Context, followedID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.FollowFact{}).
		Where("followed_id = ?", followedID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountFollowing counts a user's outgoing follow facts
func (r *FollowRepository) CountFollowing(ctx context.Context, followerID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.FollowFact{}).
		Where("follower_id = ?", followerID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
