package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shelfex/backend/internal/fanout"
	"github.com/shelfex/backend/internal/models"
	"github.com/shelfex/backend/internal/repositories"
	"github.com/shelfex/backend/pkg/blob"
	"gorm.io/gorm"
)

// UserHandler handles profile and follow-graph HTTP requests
type UserHandler struct {
	userRepository   repositories.UserRepository
	followRepository repositories.FollowRepository
	engine           *fanout.Engine
	uploader         blob.Uploader
	log              zerolog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(
	userRepo repositories.UserRepository,
	followRepo repositories.FollowRepository,
	engine *fanout.Engine,
	uploader blob.Uploader,
	log zerolog.Logger,
) *UserHandler {
	return &UserHandler{
		userRepository:   userRepo,
		followRepository: followRepo,
		engine:           engine,
		uploader:         uploader,
		log:              log,
	}
}

// RegisterUserRoutes registers user-related routes
func (h *UserHandler) RegisterUserRoutes(g *echo.Group) {
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/:id", h.GetUser)
	g.GET("/users", h.GetUsers)
	g.PATCH("/users/:id", h.EditUser)
	g.POST("/users/avatar", h.ChangeAvatar)
	g.GET("/users/:id/follow-unfollow", h.FollowUnfollow)
}

// GetUser returns a profile enriched with follower counts and whether the
// viewer follows them.
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid user ID")
	}

	user, err := h.userRepository.GetUserByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	isFollowing, _ := h.followRepository.IsFollowing(getUserIDFromContext(c), user.ID)
	followersCount, _ := h.followRepository.GetFollowersCount(user.ID)
	followingCount, _ := h.followRepository.GetFollowingCount(user.ID)

	return c.JSON(http.StatusOK, echo.Map{
		"user":           user,
		"isFollowing":    isFollowing,
		"followersCount": followersCount,
		"followingCount": followingCount,
	})
}

// GetUsers returns the ten most recently registered users (the "who to
// follow" sidebar).
func (h *UserHandler) GetUsers(c echo.Context) error {
	users, err := h.userRepository.GetRecentUsers(10)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, users)
}

// EditUser updates the caller's own fullName/bio.
func (h *UserHandler) EditUser(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid user ID")
	}
	if uint(id) != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You can only edit your own profile")
	}

	var req models.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Provide at least one field to update")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.FullName == "" && req.Bio == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Provide at least one field to update")
	}

	user, err := h.userRepository.GetUserByID(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if req.FullName != "" {
		user.FullName = req.FullName
	}
	if req.Bio != "" {
		user.Bio = req.Bio
	}
	if err := h.userRepository.UpdateUser(user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

// ChangeAvatar uploads a new profile photo through the blob store.
func (h *UserHandler) ChangeAvatar(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)

	file, err := c.FormFile("avatar")
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Please choose an image")
	}
	if file.Size > blob.MaxImageSize {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Profile picture too big. Should be less than 500kb")
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Could not read image")
	}
	defer src.Close()

	filename := uuid.NewString() + filepath.Ext(file.Filename)
	url, err := h.uploader.Upload(c.Request().Context(), "avatars", filename, src, file.Header.Get("Content-Type"))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Failed to upload image")
	}

	user, err := h.userRepository.GetUserByID(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	user.ProfilePhoto = url
	if err := h.userRepository.UpdateUser(user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

// SearchUsers searches profiles by name.
func (h *UserHandler) SearchUsers(c echo.Context) error {
	query := c.QueryParam("query")
	if query == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Search query is required")
	}

	users, err := h.userRepository.SearchUsers(query)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	results := make([]models.UserCompact, len(users))
	for i, u := range users {
		results[i] = u.ToCompact()
	}
	return c.JSON(http.StatusOK, results)
}

// FollowUnfollow toggles the caller's follow edge to the target. Only
// celebrities can be followed; self-follow is rejected before any mutation.
// On the follow transition the target's notification log gains one follow
// entry (store-only, no live push).
func (h *UserHandler) FollowUnfollow(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)

	targetID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid user ID")
	}
	if currentUserID == uint(targetID) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "You can't follow/unfollow yourself")
	}

	target, err := h.userRepository.GetUserByID(uint(targetID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if target.Role != models.RoleCelebrity {
		return echo.NewHTTPError(http.StatusForbidden, "You can only follow Celebrity users")
	}

	followed, err := h.followRepository.ToggleFollow(currentUserID, target.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if followed {
		if actor, err := h.userRepository.GetUserByID(currentUserID); err == nil {
			if err := h.engine.OnFollow(c.Request().Context(), actor, target.ID); err != nil {
				h.log.Warn().Err(err).Uint("target", target.ID).Msg("follow notification append failed")
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "Followed successfully"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Unfollowed successfully"})
}
