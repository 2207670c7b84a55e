package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationKind tags the variant of a notification entry.
type NotificationKind string

const (
	NotificationNewPost NotificationKind = "new_post"
	NotificationFollow  NotificationKind = "follow"
	NotificationLike    NotificationKind = "like"
)

// NotificationCap bounds each user's log: after any append only the
// NotificationCap most recent entries survive, oldest evicted first.
const NotificationCap = 50

// Notification is one entry in a user's bounded log. Kind decides which of
// the optional references are set; construct through the per-kind
// constructors below so a variant never carries a foreign field.
type Notification struct {
	ID        string           `json:"id" bson:"id"`
	Kind      NotificationKind `json:"kind" bson:"kind"`
	Message   string           `json:"message" bson:"message"`
	PostID    string           `json:"post,omitempty" bson:"post,omitempty"`
	ActorID   uint             `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	IsRead    bool             `json:"isRead" bson:"is_read"`
	CreatedAt time.Time        `json:"createdAt" bson:"created_at"`
}

// NewPostNotification announces a fresh celebrity post; carries both the post
// reference and the publishing celebrity for client navigation.
func NewPostNotification(creator *User, postID string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      NotificationNewPost,
		Message:   fmt.Sprintf("%s posted a new post.", creator.FullName),
		PostID:    postID,
		ActorID:   creator.ID,
		CreatedAt: time.Now().UTC(),
	}
}

// NewFollowNotification tells a celebrity they gained a follower.
func NewFollowNotification(actor *User) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      NotificationFollow,
		Message:   fmt.Sprintf("%s started following you.", actor.FullName),
		ActorID:   actor.ID,
		CreatedAt: time.Now().UTC(),
	}
}

// NewLikeNotification tells a creator their post was liked.
func NewLikeNotification(actor *User, postID string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      NotificationLike,
		Message:   fmt.Sprintf("%s liked your post.", actor.FullName),
		PostID:    postID,
		ActorID:   actor.ID,
		CreatedAt: time.Now().UTC(),
	}
}
