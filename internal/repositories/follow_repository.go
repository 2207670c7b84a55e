package repositories

import (
	"errors"

	"github.com/shelfex/backend/internal/models"
	"gorm.io/gorm"
)

// FollowRepository defines the interface for follower-graph operations.
// A single Follow row backs both the follower's following-set and the
// target's follower-set, so the symmetric invariant holds structurally.
type FollowRepository interface {
	ToggleFollow(followerID, followingID uint) (followed bool, err error)
	IsFollowing(followerID, followingID uint) (bool, error)
	FollowerIDs(userID uint) ([]uint, error)
	FollowingIDs(userID uint) ([]uint, error)
	GetFollowers(userID uint) ([]models.User, error)
	GetFollowing(userID uint) ([]models.User, error)
	GetFollowersCount(userID uint) (int64, error)
	GetFollowingCount(userID uint) (int64, error)
}

// PostgresFollowRepository implements FollowRepository for PostgreSQL
type PostgresFollowRepository struct {
	db *gorm.DB
}

// NewPostgresFollowRepository creates a new PostgresFollowRepository
func NewPostgresFollowRepository(db *gorm.DB) *PostgresFollowRepository {
	return &PostgresFollowRepository{db: db}
}

// ToggleFollow flips the edge in one transaction: deletes it when present
// (unfollow), inserts it when absent (follow). Returns the resulting state.
func (r *PostgresFollowRepository) ToggleFollow(followerID, followingID uint) (bool, error) {
	var followed bool
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Follow
		err := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).
			First(&existing).Error
		switch {
		case err == nil:
			followed = false
			return tx.Delete(&existing).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			followed = true
			return tx.Create(&models.Follow{FollowerID: followerID, FollowingID: followingID}).Error
		default:
			return err
		}
	})
	return followed, err
}

func (r *PostgresFollowRepository) IsFollowing(followerID, followingID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Follow{}).Where("follower_id = ? AND following_id = ?", followerID, followingID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FollowerIDs returns the IDs of everyone following userID; this is the
// fan-out target set for a celebrity.
func (r *PostgresFollowRepository) FollowerIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Follow{}).Where("following_id = ?", userID).Pluck("follower_id", &ids).Error
	return ids, err
}

// FollowingIDs returns the IDs of everyone userID follows; this is the
// creator filter for the following-only feed.
func (r *PostgresFollowRepository) FollowingIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Follow{}).Where("follower_id = ?", userID).Pluck("following_id", &ids).Error
	return ids, err
}

func (r *PostgresFollowRepository) GetFollowers(userID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("id IN (?)",
		r.db.Table("follows").Select("follower_id").Where("following_id = ?", userID),
	).Find(&users).Error
	return users, err
}

func (r *PostgresFollowRepository) GetFollowing(userID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("id IN (?)",
		r.db.Table("follows").Select("following_id").Where("follower_id = ?", userID),
	).Find(&users).Error
	return users, err
}

func (r *PostgresFollowRepository) GetFollowersCount(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Follow{}).Where("following_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *PostgresFollowRepository) GetFollowingCount(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&count).Error
	return count, err
}
