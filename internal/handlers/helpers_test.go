package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shelfex/backend/internal/fanout"
	"github.com/shelfex/backend/internal/models"
	"github.com/shelfex/backend/internal/repositories"
	"github.com/shelfex/backend/validators"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
)

// In-memory repository stand-ins shared by the handler tests. They mirror
// the stores' contracts closely enough to exercise the handlers' branching:
// not-found sentinels, toggle semantics, newest-first ordering and the
// append cap.

type stubUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{nextID: 1, users: make(map[uint]*models.User)}
}

func (r *stubUserRepo) CreateUser(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		// Mirrors the unique email index.
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	user.ID = r.nextID
	r.nextID++
	copy := *user
	r.users[user.ID] = &copy
	return nil
}

func (r *stubUserRepo) GetUserByID(id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copy := *u
	return &copy, nil
}

func (r *stubUserRepo) GetUserByEmail(email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) GetRecentUsers(limit int) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.User, 0, limit)
	for id := r.nextID - 1; id >= 1 && len(out) < limit; id-- {
		if u, ok := r.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *stubUserRepo) UpdateUser(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *user
	r.users[user.ID] = &copy
	return nil
}

func (r *stubUserRepo) SearchUsers(query string) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for id := uint(1); id < r.nextID; id++ {
		if u, ok := r.users[id]; ok && strings.Contains(strings.ToLower(u.FullName), strings.ToLower(query)) {
			out = append(out, *u)
		}
	}
	return out, nil
}

type followEdge struct{ follower, following uint }

type stubFollowRepo struct {
	mu    sync.Mutex
	edges map[followEdge]struct{}
}

func newStubFollowRepo() *stubFollowRepo {
	return &stubFollowRepo{edges: make(map[followEdge]struct{})}
}

func (r *stubFollowRepo) ToggleFollow(followerID, followingID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := followEdge{followerID, followingID}
	if _, ok := r.edges[e]; ok {
		delete(r.edges, e)
		return false, nil
	}
	r.edges[e] = struct{}{}
	return true, nil
}

func (r *stubFollowRepo) IsFollowing(followerID, followingID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.edges[followEdge{followerID, followingID}]
	return ok, nil
}

func (r *stubFollowRepo) FollowerIDs(userID uint) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint
	for e := range r.edges {
		if e.following == userID {
			out = append(out, e.follower)
		}
	}
	return out, nil
}

func (r *stubFollowRepo) FollowingIDs(userID uint) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint
	for e := range r.edges {
		if e.follower == userID {
			out = append(out, e.following)
		}
	}
	return out, nil
}

func (r *stubFollowRepo) GetFollowers(userID uint) ([]models.User, error) { return nil, nil }
func (r *stubFollowRepo) GetFollowing(userID uint) ([]models.User, error) { return nil, nil }

func (r *stubFollowRepo) GetFollowersCount(userID uint) (int64, error) {
	ids, _ := r.FollowerIDs(userID)
	return int64(len(ids)), nil
}

func (r *stubFollowRepo) GetFollowingCount(userID uint) (int64, error) {
	ids, _ := r.FollowingIDs(userID)
	return int64(len(ids)), nil
}

type stubPostRepo struct {
	mu    sync.Mutex
	posts []models.Post // insertion order, oldest first
}

func (r *stubPostRepo) CreatePost(ctx context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post.ID = primitive.NewObjectID()
	if post.Likes == nil {
		post.Likes = []uint{}
	}
	r.posts = append(r.posts, *post)
	return nil
}

func (r *stubPostRepo) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.posts {
		if r.posts[i].ID.Hex() == id {
			copy := r.posts[i]
			return &copy, nil
		}
	}
	return nil, repositories.ErrPostNotFound
}

// matching mirrors the store's creator filter: nil means every creator,
// an empty non-nil set matches nothing.
func (r *stubPostRepo) matching(creatorIDs []uint) []models.Post {
	var out []models.Post
	for i := len(r.posts) - 1; i >= 0; i-- { // newest first
		p := r.posts[i]
		if creatorIDs == nil {
			out = append(out, p)
			continue
		}
		for _, id := range creatorIDs {
			if p.CreatorID == id {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func (r *stubPostRepo) FindPosts(ctx context.Context, creatorIDs []uint, skip, limit int64) ([]models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.matching(creatorIDs)
	if skip >= int64(len(all)) {
		return []models.Post{}, nil
	}
	all = all[skip:]
	if int64(len(all)) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *stubPostRepo) CountPosts(ctx context.Context, creatorIDs []uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(creatorIDs))), nil
}

func (r *stubPostRepo) GetPostsByCreator(ctx context.Context, creatorID uint) ([]models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matching([]uint{creatorID}), nil
}

func (r *stubPostRepo) UpdateBody(ctx context.Context, id, body string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.posts {
		if r.posts[i].ID.Hex() == id {
			r.posts[i].Body = body
			copy := r.posts[i]
			return &copy, nil
		}
	}
	return nil, repositories.ErrPostNotFound
}

func (r *stubPostRepo) DeletePost(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.posts {
		if r.posts[i].ID.Hex() == id {
			r.posts = append(r.posts[:i], r.posts[i+1:]...)
			return nil
		}
	}
	return repositories.ErrPostNotFound
}

func (r *stubPostRepo) ToggleLike(ctx context.Context, id string, userID uint) (*models.Post, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.posts {
		if r.posts[i].ID.Hex() != id {
			continue
		}
		p := &r.posts[i]
		for j, likerID := range p.Likes {
			if likerID == userID {
				p.Likes = append(p.Likes[:j], p.Likes[j+1:]...)
				copy := *p
				return &copy, false, nil
			}
		}
		p.Likes = append(p.Likes, userID)
		copy := *p
		return &copy, true, nil
	}
	return nil, false, repositories.ErrPostNotFound
}

type stubNotifRepo struct {
	mu   sync.Mutex
	logs map[uint][]models.Notification // append order, oldest first
}

func newStubNotifRepo() *stubNotifRepo {
	return &stubNotifRepo{logs: make(map[uint][]models.Notification)}
}

func (r *stubNotifRepo) Append(ctx context.Context, userID uint, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log := append(r.logs[userID], n)
	if len(log) > models.NotificationCap {
		log = log[len(log)-models.NotificationCap:]
	}
	r.logs[userID] = log
	return nil
}

func (r *stubNotifRepo) List(ctx context.Context, userID uint) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log := r.logs[userID]
	out := make([]models.Notification, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		out = append(out, log[i])
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (r *stubNotifRepo) UnreadCount(ctx context.Context, userID uint) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.logs[userID] {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *stubNotifRepo) MarkRead(ctx context.Context, userID uint, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.logs[userID] {
		if r.logs[userID][i].ID == notificationID {
			r.logs[userID][i].IsRead = true
			return nil
		}
	}
	return repositories.ErrNotificationNotFound
}

func (r *stubNotifRepo) MarkAllRead(ctx context.Context, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.logs[userID] {
		r.logs[userID][i].IsRead = true
	}
	return nil
}

func (r *stubNotifRepo) Remove(ctx context.Context, userID uint, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.logs[userID] {
		if r.logs[userID][i].ID == notificationID {
			r.logs[userID] = append(r.logs[userID][:i], r.logs[userID][i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotificationNotFound
}

type stubPusher struct {
	mu     sync.Mutex
	online map[uint]bool
	pushed map[uint]int
}

func newStubPusher() *stubPusher {
	return &stubPusher{online: make(map[uint]bool), pushed: make(map[uint]int)}
}

func (p *stubPusher) Push(userID uint, event string, data interface{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed[userID]++
	return p.online[userID]
}

type stubUploader struct {
	fail bool
}

func (u *stubUploader) Upload(ctx context.Context, folder, filename string, r io.Reader, contentType string) (string, error) {
	if u.fail {
		return "", fmt.Errorf("bucket unavailable")
	}
	return "https://storage.example.com/" + folder + "/" + filename, nil
}

// fixture wires the stub repositories, a real fan-out engine and the
// handlers under test together the same way the router does.
type fixture struct {
	users    *stubUserRepo
	follows  *stubFollowRepo
	posts    *stubPostRepo
	notifs   *stubNotifRepo
	pusher   *stubPusher
	uploader *stubUploader
	engine   *fanout.Engine
	echo     *echo.Echo
}

func newFixture() *fixture {
	f := &fixture{
		users:    newStubUserRepo(),
		follows:  newStubFollowRepo(),
		posts:    &stubPostRepo{},
		notifs:   newStubNotifRepo(),
		pusher:   newStubPusher(),
		uploader: &stubUploader{},
	}
	f.engine = fanout.NewEngine(f.follows, f.notifs, f.pusher, 2, 0, zerolog.Nop())
	f.echo = echo.New()
	f.echo.Validator = validators.NewValidator()
	return f
}

func (f *fixture) addUser(name string, role models.Role) *models.User {
	u := &models.User{
		FullName: name,
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Role:     role,
	}
	if err := f.users.CreateUser(u); err != nil {
		panic(err)
	}
	return u
}

func (f *fixture) postHandler() *PostHandler {
	return NewPostHandler(f.posts, f.users, f.follows, f.engine, f.uploader, zerolog.Nop())
}

func (f *fixture) userHandler() *UserHandler {
	return NewUserHandler(f.users, f.follows, f.engine, f.uploader, zerolog.Nop())
}

func (f *fixture) notificationHandler() *NotificationHandler {
	return NewNotificationHandler(f.notifs)
}

func (f *fixture) authHandler() *AuthHandler {
	return NewAuthHandler(f.users, f.notifs, "test-secret")
}

// request builds an echo context authenticated as userID (0 leaves the
// request anonymous) and returns it with its recorder.
func (f *fixture) request(method, target string, body io.Reader, contentType string, userID uint) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	if userID != 0 {
		c.Set("user", &models.JwtCustomClaims{UserID: userID})
	}
	return c, rec
}

// multipartForm builds a multipart body with the given fields and, when
// fileField is non-empty, one file part carrying content.
func multipartForm(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

// httpStatus unwraps the status an echo handler error would render with.
func httpStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return http.StatusInternalServerError
}
