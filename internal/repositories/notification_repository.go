package repositories

import (
	"context"
	"errors"

	"github.com/shelfex/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotificationNotFound is returned when a notification ID is not present
// in the recipient's log.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository is the durable, bounded per-user notification log.
// Append must enforce the cap atomically: concurrent appends to one user may
// never jointly exceed models.NotificationCap.
type NotificationRepository interface {
	Append(ctx context.Context, userID uint, n models.Notification) error
	List(ctx context.Context, userID uint) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID uint) (int, error)
	MarkRead(ctx context.Context, userID uint, notificationID string) error
	MarkAllRead(ctx context.Context, userID uint) error
	Remove(ctx context.Context, userID uint, notificationID string) error
}

// notificationDoc is one recipient's log: a single document keyed by user ID
// so every mutation is a per-document atomic update.
type notificationDoc struct {
	UserID uint                  `bson:"_id"`
	Items  []models.Notification `bson:"items"`
}

// MongoNotificationRepository implements NotificationRepository for MongoDB
type MongoNotificationRepository struct {
	collection *mongo.Collection
}

// NewMongoNotificationRepository creates a new MongoNotificationRepository
func NewMongoNotificationRepository(db *mongo.Database) *MongoNotificationRepository {
	return &MongoNotificationRepository{collection: db.Collection("notifications")}
}

// Append pushes the entry and prunes to the cap in one server-side update:
// $slice keeps the last NotificationCap items, so eviction is strict FIFO and
// the window can never be observed over the cap.
func (r *MongoNotificationRepository) Append(ctx context.Context, userID uint, n models.Notification) error {
	update := bson.M{
		"$push": bson.M{
			"items": bson.M{
				"$each":  []models.Notification{n},
				"$slice": -models.NotificationCap,
			},
		},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update, options.Update().SetUpsert(true))
	return err
}

// List returns the log newest-first; internal storage is append order.
func (r *MongoNotificationRepository) List(ctx context.Context, userID uint) ([]models.Notification, error) {
	items, err := r.items(ctx, userID)
	if err != nil {
		return nil, err
	}
	reversed := make([]models.Notification, len(items))
	for i, n := range items {
		reversed[len(items)-1-i] = n
	}
	return reversed, nil
}

// UnreadCount counts the entries not yet marked read.
func (r *MongoNotificationRepository) UnreadCount(ctx context.Context, userID uint) (int, error) {
	items, err := r.items(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range items {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

// MarkRead flags one entry as read in place. Marking an already-read entry
// again is a no-op, not an error.
func (r *MongoNotificationRepository) MarkRead(ctx context.Context, userID uint, notificationID string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID, "items.id": notificationID},
		bson.M{"$set": bson.M{"items.$[n].is_read": true}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"n.id": notificationID}},
		}))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead flags every entry in the log as read.
func (r *MongoNotificationRepository) MarkAllRead(ctx context.Context, userID uint) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"items.$[].is_read": true}})
	return err
}

// Remove drops one entry from the log (the DELETE acknowledgment path).
func (r *MongoNotificationRepository) Remove(ctx context.Context, userID uint, notificationID string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"items": bson.M{"id": notificationID}}})
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *MongoNotificationRepository) items(ctx context.Context, userID uint) ([]models.Notification, error) {
	var doc notificationDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// No fan-out has reached this user yet; an empty log, not an error.
			return nil, nil
		}
		return nil, err
	}
	return doc.Items, nil
}
