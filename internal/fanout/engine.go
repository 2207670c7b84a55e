// Package fanout turns write events (new post, follow, like) into bounded
// notification-log appends and best-effort live pushes.
package fanout

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shelfex/backend/internal/models"
	"golang.org/x/sync/errgroup"
)

// FollowerSource resolves the fan-out target set for a creator.
type FollowerSource interface {
	FollowerIDs(userID uint) ([]uint, error)
}

// NotificationStore is the durable per-recipient log the engine writes to.
type NotificationStore interface {
	Append(ctx context.Context, userID uint, n models.Notification) error
	UnreadCount(ctx context.Context, userID uint) (int, error)
}

// Pusher delivers to a recipient's live sessions; false means nobody was
// connected, which is not an error.
type Pusher interface {
	Push(userID uint, event string, data interface{}) bool
}

// NotificationEvent is the live-push payload: the entry itself plus the
// recipient's unread badge count after the append.
type NotificationEvent struct {
	Notification models.Notification `json:"notification"`
	UnreadCount  int                 `json:"unreadCount"`
}

const (
	DefaultWorkers = 8
	DefaultTimeout = 10 * time.Second
)

// Engine fans one domain event out to every affected follower. Followers are
// processed with bounded concurrency under an overall timeout budget; one
// follower's failure never blocks the others and never reaches the caller of
// the triggering write.
type Engine struct {
	followers FollowerSource
	store     NotificationStore
	hub       Pusher
	workers   int
	timeout   time.Duration
	log       zerolog.Logger
}

// NewEngine creates an Engine. Zero workers/timeout fall back to defaults.
func NewEngine(followers FollowerSource, store NotificationStore, hub Pusher, workers int, timeout time.Duration, log zerolog.Logger) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{
		followers: followers,
		store:     store,
		hub:       hub,
		workers:   workers,
		timeout:   timeout,
		log:       log,
	}
}

// OnPostCreated notifies every follower of the creator about the new post:
// append to the follower's durable log, then push {notification, unreadCount}
// to their live sessions. Offline followers are skipped silently; the store
// entry makes the notification visible on their next read.
func (e *Engine) OnPostCreated(ctx context.Context, post *models.Post, creator *models.User) error {
	followerIDs, err := e.followers.FollowerIDs(creator.ID)
	if err != nil {
		return err
	}
	if len(followerIDs) == 0 {
		return nil
	}

	template := models.NewPostNotification(creator, post.ID.Hex())

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// No error is ever returned from a worker: per-follower failures are
	// logged and skipped so the remaining followers still get processed.
	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, followerID := range followerIDs {
		g.Go(func() error {
			e.deliver(ctx, followerID, template)
			return nil
		})
	}
	g.Wait()
	return nil
}

func (e *Engine) deliver(ctx context.Context, recipientID uint, n models.Notification) {
	if err := e.store.Append(ctx, recipientID, n); err != nil {
		e.log.Warn().Err(err).Uint("recipient", recipientID).Str("kind", string(n.Kind)).
			Msg("notification append failed, skipping follower")
		return
	}

	unread, err := e.store.UnreadCount(ctx, recipientID)
	if err != nil {
		e.log.Warn().Err(err).Uint("recipient", recipientID).
			Msg("unread count failed, pushing without badge")
		unread = 0
	}

	if !e.hub.Push(recipientID, "notification", NotificationEvent{Notification: n, UnreadCount: unread}) {
		e.log.Debug().Uint("recipient", recipientID).Msg("no live session, stored only")
	}
}

// OnFollow appends a follow notification to the target's log. Follow events
// are store-only: they surface on the target's next notification fetch.
func (e *Engine) OnFollow(ctx context.Context, actor *models.User, targetID uint) error {
	return e.store.Append(ctx, targetID, models.NewFollowNotification(actor))
}

// OnLike appends a like notification to the post's creator, store-only.
// Liking your own post stays silent.
func (e *Engine) OnLike(ctx context.Context, actor *models.User, post *models.Post) error {
	if actor.ID == post.CreatorID {
		return nil
	}
	return e.store.Append(ctx, post.CreatorID, models.NewLikeNotification(actor, post.ID.Hex()))
}
