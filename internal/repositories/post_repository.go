package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shelfex/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrPostNotFound is returned when a post ID resolves to nothing.
var ErrPostNotFound = errors.New("post not found")

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	FindPosts(ctx context.Context, creatorIDs []uint, skip, limit int64) ([]models.Post, error)
	CountPosts(ctx context.Context, creatorIDs []uint) (int64, error)
	GetPostsByCreator(ctx context.Context, creatorID uint) ([]models.Post, error)
	UpdateBody(ctx context.Context, id, body string) (*models.Post, error)
	DeletePost(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, id string, userID uint) (post *models.Post, liked bool, err error)
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

// creatorFilter builds the feed filter: nil means all posts (global feed),
// otherwise posts whose creator is in the given set (following feed).
func creatorFilter(creatorIDs []uint) bson.M {
	if creatorIDs == nil {
		return bson.M{}
	}
	return bson.M{"creator_id": bson.M{"$in": creatorIDs}}
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now().UTC()
	post.UpdatedAt = post.CreatedAt
	if post.Likes == nil {
		post.Likes = []uint{}
	}
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid post ID format: %w", err)
	}

	var post models.Post
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&post)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// FindPosts retrieves one feed page: newest first, offset by skip.
func (r *MongoPostRepository) FindPosts(ctx context.Context, creatorIDs []uint, skip, limit int64) ([]models.Post, error) {
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, creatorFilter(creatorIDs), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// CountPosts counts the posts matching the same filter FindPosts pages over.
func (r *MongoPostRepository) CountPosts(ctx context.Context, creatorIDs []uint) (int64, error) {
	return r.collection.CountDocuments(ctx, creatorFilter(creatorIDs))
}

// GetPostsByCreator retrieves all of one creator's posts, newest first.
func (r *MongoPostRepository) GetPostsByCreator(ctx context.Context, creatorID uint) ([]models.Post, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"creator_id": creatorID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// UpdateBody replaces a post's text and returns the updated document.
func (r *MongoPostRepository) UpdateBody(ctx context.Context, id, body string) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid post ID format: %w", err)
	}

	update := bson.M{"$set": bson.M{"body": body, "updated_at": time.Now().UTC()}}
	after := options.After
	var post models.Post
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objID}, update,
		options.FindOneAndUpdate().SetReturnDocument(after)).Decode(&post)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// DeletePost deletes a post by ID from MongoDB
func (r *MongoPostRepository) DeletePost(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid post ID format: %w", err)
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

// ToggleLike flips userID's membership in the like set without a
// read-modify-write cycle: first try to pull the user out; if nothing
// matched they were not a member, so add them with a guarded $addToSet.
// Each step is a single server-side update, so concurrent toggles by
// different users cannot lose each other.
func (r *MongoPostRepository) ToggleLike(ctx context.Context, id string, userID uint) (*models.Post, bool, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false, fmt.Errorf("invalid post ID format: %w", err)
	}

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID, "likes": userID},
		bson.M{"$pull": bson.M{"likes": userID}})
	if err != nil {
		return nil, false, err
	}
	pulled := res.ModifiedCount > 0

	added := false
	exists := true
	if !pulled {
		add, err := r.collection.UpdateOne(ctx,
			bson.M{"_id": objID, "likes": bson.M{"$ne": userID}},
			bson.M{"$addToSet": bson.M{"likes": userID}})
		if err != nil {
			return nil, false, err
		}
		added = add.MatchedCount > 0
		if !added {
			n, err := r.collection.CountDocuments(ctx, bson.M{"_id": objID})
			if err != nil {
				return nil, false, err
			}
			exists = n > 0
		}
	}

	liked, err := likeToggleOutcome(pulled, added, exists)
	if err != nil {
		return nil, false, err
	}

	post, err := r.GetPostByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return post, liked, nil
}

// likeToggleOutcome classifies the two guarded updates. Both guards can miss
// without the post being absent: a concurrent like by the same user may land
// between them, leaving the membership already set. Only a post that truly
// is not there is not-found.
func likeToggleOutcome(pulled, added, postExists bool) (bool, error) {
	switch {
	case pulled:
		return false, nil
	case added:
		return true, nil
	case postExists:
		return false, nil
	default:
		return false, ErrPostNotFound
	}
}
