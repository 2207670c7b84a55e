package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post is a celebrity publication stored in MongoDB. Likes are a set of user
// IDs toggled atomically in the store; CreatorName is denormalized so feeds
// render without a user lookup per post.
type Post struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	CreatorID   uint               `json:"creator_id" bson:"creator_id"`
	CreatorName string             `json:"creator_name" bson:"creator_name"`
	Body        string             `json:"body" bson:"body"`
	Image       string             `json:"image,omitempty" bson:"image,omitempty"`
	Likes       []uint             `json:"likes" bson:"likes"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// LikedBy reports whether userID is in the like set.
func (p *Post) LikedBy(userID uint) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// UpdatePostRequest defines the request body for editing a post's text.
type UpdatePostRequest struct {
	Body string `json:"body" form:"body" validate:"required,min=1,max=1000"`
}

// FeedPage is the pagination envelope for feed responses. HasMore is computed
// as skip+returned < total at query time.
type FeedPage struct {
	Posts   []Post `json:"posts"`
	HasMore bool   `json:"hasMore"`
}
