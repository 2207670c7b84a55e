package models

import "time"

// Follow is one edge of the follower graph. A single row backs both views:
// the follower's "following" set and the celebrity's "followers" set, so the
// two can never disagree.
type Follow struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	FollowerID  uint      `json:"follower_id" gorm:"index;uniqueIndex:idx_follower_following"`
	FollowingID uint      `json:"following_id" gorm:"index;uniqueIndex:idx_follower_following"`
	CreatedAt   time.Time `json:"created_at"`
}
