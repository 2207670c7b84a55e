package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shelfex/backend/internal/fanout"
	"github.com/shelfex/backend/internal/models"
	"github.com/shelfex/backend/internal/repositories"
	"github.com/shelfex/backend/pkg/blob"
	"gorm.io/gorm"
)

const (
	defaultFeedLimit = 5
	maxFeedLimit     = 50
)

// PostHandler handles HTTP requests related to posts and feeds
type PostHandler struct {
	postRepository   repositories.PostRepository
	userRepository   repositories.UserRepository
	followRepository repositories.FollowRepository
	engine           *fanout.Engine
	uploader         blob.Uploader
	log              zerolog.Logger
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	followRepo repositories.FollowRepository,
	engine *fanout.Engine,
	uploader blob.Uploader,
	log zerolog.Logger,
) *PostHandler {
	return &PostHandler{
		postRepository:   postRepo,
		userRepository:   userRepo,
		followRepository: followRepo,
		engine:           engine,
		uploader:         uploader,
		log:              log,
	}
}

// RegisterPostRoutes registers post- and feed-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/followings", h.GetFollowingPosts)
	g.GET("/posts/:id", h.GetPost)
	g.GET("/posts", h.GetPosts)
	g.PATCH("/posts/:id", h.UpdatePost)
	g.DELETE("/posts/:id", h.DeletePost)
	g.GET("/posts/:id/like", h.LikeDislikePost)
	g.GET("/users/:id/posts", h.GetUserPosts)
}

// CreatePost publishes a new post (celebrities only) and fans it out to the
// creator's followers. Fan-out problems never fail the request: once the
// post is stored the caller gets 201.
func (h *PostHandler) CreatePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)

	creator, err := h.userRepository.GetUserByID(currentUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if creator.Role != models.RoleCelebrity {
		return echo.NewHTTPError(http.StatusForbidden, "Only celebrities can create posts")
	}

	body := strings.TrimSpace(c.FormValue("body"))

	imageURL := ""
	if file, err := c.FormFile("image"); err == nil {
		if file.Size > blob.MaxImageSize {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "Image is too big. Should be less than 500KB")
		}
		src, err := file.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "Could not read image")
		}
		defer src.Close()

		filename := uuid.NewString() + filepath.Ext(file.Filename)
		imageURL, err = h.uploader.Upload(c.Request().Context(), "posts", filename, src, file.Header.Get("Content-Type"))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "Failed to upload image")
		}
	}

	if body == "" && imageURL == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Post text cannot be empty")
	}

	post := &models.Post{
		CreatorID:   creator.ID,
		CreatorName: creator.FullName,
		Body:        body,
		Image:       imageURL,
	}
	if err := h.postRepository.CreatePost(c.Request().Context(), post); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.engine.OnPostCreated(c.Request().Context(), post, creator); err != nil {
		h.log.Warn().Err(err).Str("post", post.ID.Hex()).Msg("fan-out did not complete")
	}

	return c.JSON(http.StatusCreated, post)
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.postRepository.GetPostByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, post)
}

// GetPosts serves the global feed: newest first, {posts, hasMore}.
func (h *PostHandler) GetPosts(c echo.Context) error {
	page, limit := pageParams(c)
	return h.servePage(c, nil, page, limit)
}

// GetFollowingPosts serves the following-only feed. The viewer's following
// set is resolved at call time, so the total may shift between page fetches
// if the graph changed meanwhile; clients absorb any boundary overlap by
// merging pages de-duplicated by post id.
func (h *PostHandler) GetFollowingPosts(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)

	followingIDs, err := h.followRepository.FollowingIDs(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if followingIDs == nil {
		followingIDs = []uint{}
	}

	page, limit := pageParams(c)
	return h.servePage(c, followingIDs, page, limit)
}

// GetUserPosts retrieves all posts of one creator, newest first.
func (h *PostHandler) GetUserPosts(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid user ID")
	}

	posts, err := h.postRepository.GetPostsByCreator(c.Request().Context(), uint(userID))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, posts)
}

// UpdatePost edits a post's text; creator only.
func (h *PostHandler) UpdatePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	postID := c.Param("id")

	var req models.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Post body cannot be empty")
	}
	req.Body = strings.TrimSpace(req.Body)
	if err := c.Validate(&req); err != nil {
		return err
	}

	existing, err := h.postRepository.GetPostByID(c.Request().Context(), postID)
	if err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if existing.CreatorID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to update this post")
	}

	updated, err := h.postRepository.UpdateBody(c.Request().Context(), postID, req.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, updated)
}

// DeletePost deletes a post; creator only.
func (h *PostHandler) DeletePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	postID := c.Param("id")

	existing, err := h.postRepository.GetPostByID(c.Request().Context(), postID)
	if err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if existing.CreatorID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this post")
	}

	if err := h.postRepository.DeletePost(c.Request().Context(), postID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Post deleted successfully", "postId": postID})
}

// LikeDislikePost toggles the caller's like on a post. Liking is idempotent
// per user: a second call undoes the first. The creator gets a store-only
// like notification on the like transition.
func (h *PostHandler) LikeDislikePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	postID := c.Param("id")

	post, liked, err := h.postRepository.ToggleLike(c.Request().Context(), postID, currentUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrPostNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if liked {
		if actor, err := h.userRepository.GetUserByID(currentUserID); err == nil {
			if err := h.engine.OnLike(c.Request().Context(), actor, post); err != nil {
				h.log.Warn().Err(err).Str("post", postID).Msg("like notification append failed")
			}
		}
	}

	return c.JSON(http.StatusOK, post)
}

// servePage runs the count+find pair behind every feed page. Nothing is held
// server-side between pages, so a failed fetch is safely retryable.
func (h *PostHandler) servePage(c echo.Context, creatorIDs []uint, page, limit int) error {
	ctx := c.Request().Context()
	skip := int64((page - 1) * limit)

	total, err := h.postRepository.CountPosts(ctx, creatorIDs)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	posts, err := h.postRepository.FindPosts(ctx, creatorIDs, skip, int64(limit))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, models.FeedPage{
		Posts:   posts,
		HasMore: skip+int64(len(posts)) < total,
	})
}

func pageParams(c echo.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxFeedLimit {
		limit = defaultFeedLimit
	}
	return page, limit
}
