package models

import (
	"time"

	"github.com/google/uuid"
)

// ClapFact records accumulated claps by one user on one post.
// One row per (user, post) pair; Count stays within 1..MaxUserClaps.
type ClapFact struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;column:user_id"`
	PostID    uuid.UUID `gorm:"type:uuid;primaryKey;column:post_id"`
	Count     int       `gorm:"not null;default:1;column:count"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for ClapFact
func (ClapFact) TableName() string {
	return "engage_claps"
}

// BookmarkFact records a post saved to a user's reading list.
// Presence of the row is membership.
type BookmarkFact struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;column:user_id"`
	PostID    uuid.UUID `gorm:"type:uuid;primaryKey;column:post_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for BookmarkFact
func (BookmarkFact) TableName() string {
	return "engage_bookmarks"
}

// FollowFact records one user following another.
type FollowFact struct {
	FollowerID uuid.UUID `gorm:"type:uuid;primaryKey;column:follower_id"`
	FollowedID uuid.UUID `gorm:"type:uuid;primaryKey;column:followed_id"`
	CreatedAt  time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for FollowFact
func (FollowFact) TableName() string {
	return "engage_follows"
}
