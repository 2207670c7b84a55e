package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/shelfex/backend/internal/models"
	"github.com/shelfex/backend/internal/repositories"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler handles registration and login
type AuthHandler struct {
	userRepository         repositories.UserRepository
	notificationRepository repositories.NotificationRepository
	jwtSecret              string
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userRepo repositories.UserRepository, notifRepo repositories.NotificationRepository, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		userRepository:         userRepo,
		notificationRepository: notifRepo,
		jwtSecret:              jwtSecret,
	}
}

// RegisterAuthRoutes registers the unprotected auth routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/users/register", h.Register)
	g.POST("/users/login", h.Login)
}

// Register creates a new account. Role defaults to Public; only an explicit
// "Celebrity" request grants publishing rights.
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Fill in all fields")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.Password != req.ConfirmPassword {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Passwords do not match")
	}

	email := strings.ToLower(req.Email)
	if _, err := h.userRepository.GetUserByEmail(email); err == nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	role := models.RolePublic
	if req.Role == string(models.RoleCelebrity) {
		role = models.RoleCelebrity
	}

	user := &models.User{
		FullName:     req.FullName,
		Email:        email,
		Password:     string(hashedPassword),
		ProfilePhoto: models.DefaultProfilePhoto,
		Bio:          "No bio yet",
		Role:         role,
	}
	if err := h.userRepository.CreateUser(user); err != nil {
		// A concurrent registration can slip past the lookup above and land
		// on the unique email index instead.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "Email already exists")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, user)
}

// Login authenticates by email+password and responds with a token, the user
// summary and the unread notification badge count.
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Fill in all fields")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByEmail(strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid Credential")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid Credential")
	}

	unread, err := h.notificationRepository.UnreadCount(c.Request().Context(), user.ID)
	if err != nil {
		// Badge count is cosmetic; login still succeeds.
		unread = 0
	}

	token, err := h.generateJWT(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": echo.Map{
			"id":                  user.ID,
			"fullName":            user.FullName,
			"email":               user.Email,
			"profilePhoto":        user.ProfilePhoto,
			"bio":                 user.Bio,
			"role":                user.Role,
			"unreadNotifications": unread,
		},
	})
}

// generateJWT generates a JWT token for a given user
func (h *AuthHandler) generateJWT(user *models.User) (string, error) {
	claims := &models.JwtCustomClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}
