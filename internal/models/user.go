package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Role controls what a user may do: only celebrities publish posts, and
// only celebrities can be followed.
type Role string

const (
	RoleCelebrity Role = "Celebrity"
	RolePublic    Role = "Public"
)

const DefaultProfilePhoto = "https://res.cloudinary.com/dojycmppc/image/upload/v1746956414/Sample_User_Icon_dsqjia.png"

// User is the relational identity record. Follower/following sets are not
// stored here; they are views over the Follow relation.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email" gorm:"uniqueIndex"`
	Password     string    `json:"-"` // bcrypt hash, never serialized
	ProfilePhoto string    `json:"profilePhoto"`
	Bio          string    `json:"bio"`
	Role         Role      `json:"role" gorm:"size:16;default:Public"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserCompact is the embeddable author/actor summary used in enriched
// responses.
type UserCompact struct {
	ID           uint   `json:"id"`
	FullName     string `json:"fullName"`
	ProfilePhoto string `json:"profilePhoto"`
	Role         Role   `json:"role"`
}

// ToCompact strips a user down to its display summary.
func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:           u.ID,
		FullName:     u.FullName,
		ProfilePhoto: u.ProfilePhoto,
		Role:         u.Role,
	}
}

type RegisterRequest struct {
	FullName        string `json:"fullName" form:"fullName" validate:"required,min=2,max=64"`
	Email           string `json:"email" form:"email" validate:"required,email"`
	Password        string `json:"password" form:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword" validate:"required"`
	Role            string `json:"role" form:"role" validate:"omitempty,oneof=Celebrity Public"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

type UpdateUserRequest struct {
	FullName string `json:"fullName" form:"fullName" validate:"omitempty,min=2,max=64"`
	Bio      string `json:"bio" form:"bio" validate:"omitempty,max=280"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
