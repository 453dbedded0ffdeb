package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Comment represents a single node in a post's discussion thread.
// Replies reference their parent through ParentID, so a thread is a
// self-referential tree anchored at comments with no parent.
type Comment struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey;column:id"`
	PostID    uuid.UUID     `gorm:"type:uuid;not null;index:engage_comments_post_parent_ix,priority:1;column:post_id"`
	AuthorID  uuid.UUID     `gorm:"type:uuid;not null;column:author_id"`
	ParentID  uuid.NullUUID `gorm:"type:uuid;index:engage_comments_post_parent_ix,priority:2;column:parent_id"`
	Content   string        `gorm:"type:text;not null;column:content"`
	IsDeleted bool          `gorm:"not null;default:false;column:is_deleted"`
	DeletedAt sql.NullTime  `gorm:"column:deleted_at"`
	CreatedAt time.Time     `gorm:"not null;index:engage_comments_post_parent_ix,priority:3;column:created_at"`
	UpdatedAt time.Time     `gorm:"not null;column:updated_at"`

	// ReplyCount is the denormalized number of non-deleted direct children.
	// It is only ever changed through single-statement column arithmetic.
	ReplyCount int64 `gorm:"not null;default:0;column:reply_count"`

	// Relationships
	Parent   *Comment  `gorm:"foreignKey:ParentID;references:ID"`
	Children []Comment `gorm:"foreignKey:ParentID;references:ID"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "engage_comments"
}
