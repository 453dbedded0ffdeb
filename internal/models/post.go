package models

import (
	"time"

	"github.com/google/uuid"
)

// Post is the engagement-side view of a published article. The platform's
// post service owns the row; this service reads identity fields and owns
// only the denormalized engagement counters.
type Post struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;column:id"`
	AuthorID  uuid.UUID `gorm:"type:uuid;not null;column:author_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`

	// Denormalized counters; ground truth is engage_claps / engage_bookmarks.
	// TotalClaps is the sum of clap counts, TotalLikes the number of distinct
	// users with a positive clap count.
	TotalClaps     int64 `gorm:"not null;default:0;column:total_claps"`
	TotalLikes     int64 `gorm:"not null;default:0;column:total_likes"`
	BookmarksCount int64 `gorm:"not null;default:0;column:bookmarks_count"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "engage_posts"
}
