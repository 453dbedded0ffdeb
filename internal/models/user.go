package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User is the engagement-side view of a platform account. Identity and
// profile fields belong to the user service; the follower counters here are
// owned by this service and derived from engage_follows.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;column:id"`
	Username  string         `gorm:"type:varchar(100);not null;uniqueIndex:engage_users_ux1;column:username"`
	FullName  sql.NullString `gorm:"type:varchar(255);column:full_name"`
	Bio       sql.NullString `gorm:"type:varchar(500);column:bio"`
	AvatarURL sql.NullString `gorm:"type:varchar(500);column:avatar_url"`
	CreatedAt time.Time      `gorm:"not null;column:created_at"`

	// Social stats
	FollowersCount int64 `gorm:"not null;default:0;column:followers_count"`
	FollowingCount int64 `gorm:"not null;default:0;column:following_count"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "engage_users"
}
