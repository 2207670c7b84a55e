package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shelfex/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeFollowers struct {
	ids []uint
	err error
}

func (f *fakeFollowers) FollowerIDs(userID uint) ([]uint, error) { return f.ids, f.err }

// memStore mimics the real log's append-with-cap semantics in memory.
type memStore struct {
	mu      sync.Mutex
	logs    map[uint][]models.Notification
	failFor map[uint]error
}

func newMemStore() *memStore {
	return &memStore{logs: make(map[uint][]models.Notification), failFor: make(map[uint]error)}
}

func (s *memStore) Append(ctx context.Context, userID uint, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFor[userID]; err != nil {
		return err
	}
	log := append(s.logs[userID], n)
	if len(log) > models.NotificationCap {
		log = log[len(log)-models.NotificationCap:]
	}
	s.logs[userID] = log
	return nil
}

func (s *memStore) UnreadCount(ctx context.Context, userID uint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.logs[userID] {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *memStore) entries(userID uint) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.logs[userID]...)
}

type pushRecord struct {
	userID uint
	event  string
	data   interface{}
}

type fakePusher struct {
	mu     sync.Mutex
	online map[uint]bool
	pushes []pushRecord
}

func (p *fakePusher) Push(userID uint, event string, data interface{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, pushRecord{userID, event, data})
	return p.online[userID]
}

func (p *fakePusher) pushed(userID uint) []pushRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []pushRecord
	for _, r := range p.pushes {
		if r.userID == userID {
			out = append(out, r)
		}
	}
	return out
}

func testCreator() *models.User {
	return &models.User{ID: 1, FullName: "Carol Celebrity", Role: models.RoleCelebrity}
}

func testPost(t *testing.T) *models.Post {
	t.Helper()
	id, err := primitive.ObjectIDFromHex("650000000000000000000abc")
	require.NoError(t, err)
	return &models.Post{ID: id, CreatorID: 1, CreatorName: "Carol Celebrity", Body: "hello"}
}

func TestOnPostCreated_EveryFollowerGetsOneEntry(t *testing.T) {
	store := newMemStore()
	hub := &fakePusher{online: map[uint]bool{2: true, 3: true}}
	engine := NewEngine(&fakeFollowers{ids: []uint{2, 3}}, store, hub, 0, 0, zerolog.Nop())

	post := testPost(t)
	require.NoError(t, engine.OnPostCreated(context.Background(), post, testCreator()))

	for _, followerID := range []uint{2, 3} {
		entries := store.entries(followerID)
		require.Len(t, entries, 1, "follower %d", followerID)
		assert.Equal(t, models.NotificationNewPost, entries[0].Kind)
		assert.Equal(t, post.ID.Hex(), entries[0].PostID)
		assert.Equal(t, uint(1), entries[0].ActorID)
		assert.Equal(t, "Carol Celebrity posted a new post.", entries[0].Message)
		assert.False(t, entries[0].IsRead)

		pushes := hub.pushed(followerID)
		require.Len(t, pushes, 1)
		assert.Equal(t, "notification", pushes[0].event)
		ev, ok := pushes[0].data.(NotificationEvent)
		require.True(t, ok)
		assert.Equal(t, 1, ev.UnreadCount)
	}
}

func TestOnPostCreated_OfflineFollowerStillStored(t *testing.T) {
	store := newMemStore()
	hub := &fakePusher{online: map[uint]bool{2: true}} // 3 is offline
	engine := NewEngine(&fakeFollowers{ids: []uint{2, 3}}, store, hub, 0, 0, zerolog.Nop())

	require.NoError(t, engine.OnPostCreated(context.Background(), testPost(t), testCreator()))

	assert.Len(t, store.entries(2), 1)
	assert.Len(t, store.entries(3), 1, "offline follower keeps the durable entry")
}

func TestOnPostCreated_OneStoreFailureDoesNotBlockOthers(t *testing.T) {
	store := newMemStore()
	store.failFor[3] = errors.New("write concern timeout")
	hub := &fakePusher{online: map[uint]bool{}}
	engine := NewEngine(&fakeFollowers{ids: []uint{2, 3, 4}}, store, hub, 2, time.Second, zerolog.Nop())

	require.NoError(t, engine.OnPostCreated(context.Background(), testPost(t), testCreator()))

	assert.Len(t, store.entries(2), 1)
	assert.Empty(t, store.entries(3))
	assert.Len(t, store.entries(4), 1)
	assert.Empty(t, hub.pushed(3), "failed append must not push")
}

func TestOnPostCreated_NoFollowersIsNoop(t *testing.T) {
	store := newMemStore()
	hub := &fakePusher{}
	engine := NewEngine(&fakeFollowers{}, store, hub, 0, 0, zerolog.Nop())

	require.NoError(t, engine.OnPostCreated(context.Background(), testPost(t), testCreator()))
	assert.Empty(t, hub.pushes)
}

func TestOnPostCreated_FollowerLookupError(t *testing.T) {
	engine := NewEngine(&fakeFollowers{err: errors.New("db down")}, newMemStore(), &fakePusher{}, 0, 0, zerolog.Nop())
	assert.Error(t, engine.OnPostCreated(context.Background(), testPost(t), testCreator()))
}

func TestAppend_CapEvictsOldestFirst(t *testing.T) {
	store := newMemStore()
	hub := &fakePusher{}
	engine := NewEngine(&fakeFollowers{ids: []uint{2}}, store, hub, 1, time.Second, zerolog.Nop())

	creator := testCreator()
	post := testPost(t)
	for i := 0; i < models.NotificationCap+10; i++ {
		require.NoError(t, engine.OnPostCreated(context.Background(), post, creator))
	}

	entries := store.entries(2)
	require.Len(t, entries, models.NotificationCap)
	// The survivors are the most recent appends in order.
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].CreatedAt.Before(entries[i-1].CreatedAt))
	}
}

func TestOnFollow_StoreOnly(t *testing.T) {
	store := newMemStore()
	hub := &fakePusher{online: map[uint]bool{9: true}}
	engine := NewEngine(&fakeFollowers{}, store, hub, 0, 0, zerolog.Nop())

	actor := &models.User{ID: 5, FullName: "Frank Fan"}
	require.NoError(t, engine.OnFollow(context.Background(), actor, 9))

	entries := store.entries(9)
	require.Len(t, entries, 1)
	assert.Equal(t, models.NotificationFollow, entries[0].Kind)
	assert.Equal(t, "Frank Fan started following you.", entries[0].Message)
	assert.Empty(t, entries[0].PostID)
	assert.Empty(t, hub.pushes, "follow notifications are not pushed live")
}

func TestOnLike_SelfLikeStaysSilent(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(&fakeFollowers{}, store, &fakePusher{}, 0, 0, zerolog.Nop())

	creator := testCreator()
	post := testPost(t)
	require.NoError(t, engine.OnLike(context.Background(), creator, post))
	assert.Empty(t, store.entries(creator.ID))
}

func TestOnLike_NotifiesCreator(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(&fakeFollowers{}, store, &fakePusher{}, 0, 0, zerolog.Nop())

	actor := &models.User{ID: 5, FullName: "Frank Fan"}
	post := testPost(t)
	require.NoError(t, engine.OnLike(context.Background(), actor, post))

	entries := store.entries(post.CreatorID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.NotificationLike, entries[0].Kind)
	assert.Equal(t, post.ID.Hex(), entries[0].PostID)
	assert.Equal(t, "Frank Fan liked your post.", entries[0].Message)
}
