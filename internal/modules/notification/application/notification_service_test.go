package application

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capstonehub/notify/internal/modules/notification/domain"
	"github.com/capstonehub/notify/internal/modules/notification/infrastructure/cache"
	"github.com/capstonehub/notify/internal/modules/notification/infrastructure/websocket"
	"github.com/capstonehub/notify/pkg/events"
)

type mockRepo struct {
	createFn        func(context.Context, *domain.Notification) error
	createBulkFn    func(context.Context, []*domain.Notification) error
	listFn          func(context.Context, uuid.UUID, domain.ListFilter) ([]domain.Notification, int64, error)
	markAsReadFn    func(context.Context, int64, uuid.UUID) (bool, error)
	markAllAsReadFn func(context.Context, uuid.UUID) (int64, error)
	unreadCountFn   func(context.Context, uuid.UUID) (int, error)
}

func (m mockRepo) Create(ctx context.Context, n *domain.Notification) error {
	return m.createFn(ctx, n)
}
func (m mockRepo) CreateBulk(ctx context.Context, ns []*domain.Notification) error {
	return m.createBulkFn(ctx, ns)
}
func (m mockRepo) List(ctx context.Context, userID uuid.UUID, f domain.ListFilter) ([]domain.Notification, int64, error) {
	return m.listFn(ctx, userID, f)
}
func (m mockRepo) MarkAsRead(ctx context.Context, id int64, userID uuid.UUID) (bool, error) {
	return m.markAsReadFn(ctx, id, userID)
}
func (m mockRepo) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return m.markAllAsReadFn(ctx, userID)
}
func (m mockRepo) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return m.unreadCountFn(ctx, userID)
}

type serviceHarness struct {
	svc     *NotificationService
	counter *cache.UnreadCounter
	hub     *websocket.Hub
	srv     *httptest.Server
}

func newHarness(t *testing.T, repo mockRepo) *serviceHarness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	counter := cache.NewUnreadCounter(rdb)

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.URL.Query().Get("user"))
		require.NoError(t, err)
		websocket.ServeWs(hub, w, r, id)
	}))
	t.Cleanup(srv.Close)

	return &serviceHarness{
		svc:     NewNotificationService(repo, counter, hub),
		counter: counter,
		hub:     hub,
		srv:     srv,
	}
}

// listen opens a push connection for userID and returns a channel of decoded
// frames.
func (h *serviceHarness) listen(t *testing.T, userID uuid.UUID) <-chan *events.Message {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "?user=" + userID.String()
	conn, _, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// Let the registration land before the test publishes anything.
	time.Sleep(50 * time.Millisecond)

	out := make(chan *events.Message, 16)
	go func() {
		defer close(out)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := events.Decode(raw)
			if err != nil {
				continue
			}
			out <- msg
		}
	}()
	return out
}

func recvEvent(t *testing.T, ch <-chan *events.Message, event string) *events.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				t.Fatalf("connection closed before %s arrived", event)
			}
			if msg.Event == event {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", event)
		}
	}
}

func TestNotificationService_CreatePersistsAndPushes(t *testing.T) {
	userID := uuid.New()
	repo := mockRepo{
		createFn: func(_ context.Context, n *domain.Notification) error {
			n.ID = 7
			n.CreatedAt = time.Now()
			return nil
		},
	}
	h := newHarness(t, repo)
	ch := h.listen(t, userID)

	n, err := h.svc.Create(context.Background(), CreateInput{
		UserID: userID, Title: "New topic", Message: "check it", EntityType: "topic", EntityID: "3",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), n.ID)

	msg := recvEvent(t, ch, events.EventNotification)
	require.NotNil(t, msg.Notification)
	assert.Equal(t, int64(7), msg.Notification.ID)
	assert.Equal(t, "New topic", msg.Notification.Title)
	assert.Equal(t, "topic", msg.Notification.EntityType)
	assert.False(t, msg.Notification.IsRead)
}

func TestNotificationService_CreateBumpsCachedCounter(t *testing.T) {
	userID := uuid.New()
	repo := mockRepo{
		createFn: func(_ context.Context, n *domain.Notification) error {
			n.ID = 1
			return nil
		},
	}
	h := newHarness(t, repo)
	ctx := context.Background()

	// Counter untouched while cold.
	_, err := h.svc.Create(ctx, CreateInput{UserID: userID, Title: "a"})
	require.NoError(t, err)
	_, hit, err := h.counter.Get(ctx, userID)
	require.NoError(t, err)
	assert.False(t, hit)

	// Warm counter gets incremented.
	require.NoError(t, h.counter.Set(ctx, userID, 3))
	_, err = h.svc.Create(ctx, CreateInput{UserID: userID, Title: "b"})
	require.NoError(t, err)
	count, _, err := h.counter.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestNotificationService_CreateBulkAnnouncesPerUser(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	var gotBatch []*domain.Notification
	repo := mockRepo{
		createBulkFn: func(_ context.Context, ns []*domain.Notification) error {
			gotBatch = ns
			for i, n := range ns {
				n.ID = int64(i + 1)
			}
			return nil
		},
	}
	h := newHarness(t, repo)
	ch1 := h.listen(t, u1)
	ch2 := h.listen(t, u2)
	ctx := context.Background()

	// A warm counter must be invalidated, not guessed at.
	require.NoError(t, h.counter.Set(ctx, u1, 5))

	created, err := h.svc.CreateBulk(ctx, []uuid.UUID{u1, u2}, CreateInput{Title: "announcement", Message: "m"})
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	require.Len(t, gotBatch, 2)

	msg := recvEvent(t, ch1, events.EventBulkCreated)
	assert.Equal(t, 1, msg.BulkCreated.Count)
	msg = recvEvent(t, ch2, events.EventBulkCreated)
	assert.Equal(t, 1, msg.BulkCreated.Count)

	_, hit, err := h.counter.Get(ctx, u1)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestNotificationService_MarkAsReadPushesReadAndCount(t *testing.T) {
	userID := uuid.New()
	repo := mockRepo{
		markAsReadFn:  func(context.Context, int64, uuid.UUID) (bool, error) { return true, nil },
		unreadCountFn: func(context.Context, uuid.UUID) (int, error) { return 2, nil },
	}
	h := newHarness(t, repo)
	ch := h.listen(t, userID)
	ctx := context.Background()

	require.NoError(t, h.counter.Set(ctx, userID, 3))
	require.NoError(t, h.svc.MarkAsRead(ctx, 9, userID))

	msg := recvEvent(t, ch, events.EventMarkedAsRead)
	assert.Equal(t, int64(9), msg.MarkedAsRead.ID)

	msg = recvEvent(t, ch, events.EventUnreadCount)
	assert.Equal(t, 2, msg.UnreadCount.Count)

	count, _, err := h.counter.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNotificationService_MarkAsReadNoOpPublishesNothing(t *testing.T) {
	userID := uuid.New()
	repo := mockRepo{
		markAsReadFn: func(context.Context, int64, uuid.UUID) (bool, error) { return false, nil },
	}
	h := newHarness(t, repo)
	ch := h.listen(t, userID)

	require.NoError(t, h.svc.MarkAsRead(context.Background(), 9, userID))

	select {
	case msg := <-ch:
		t.Fatalf("no-op mark published %s", msg.Event)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestNotificationService_MarkAsReadPropagatesNotFound(t *testing.T) {
	repo := mockRepo{
		markAsReadFn: func(context.Context, int64, uuid.UUID) (bool, error) {
			return false, domain.ErrNotificationNotFound
		},
	}
	h := newHarness(t, repo)

	err := h.svc.MarkAsRead(context.Background(), 404, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
}

func TestNotificationService_MarkAllAsRead(t *testing.T) {
	userID := uuid.New()
	repo := mockRepo{
		markAllAsReadFn: func(context.Context, uuid.UUID) (int64, error) { return 4, nil },
	}
	h := newHarness(t, repo)
	ch := h.listen(t, userID)
	ctx := context.Background()

	require.NoError(t, h.counter.Set(ctx, userID, 4))
	require.NoError(t, h.svc.MarkAllAsRead(ctx, userID))

	recvEvent(t, ch, events.EventAllMarkedAsRead)

	count, hit, err := h.counter.Get(ctx, userID)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 0, count)
}

func TestNotificationService_UnreadCountBackfillsFromRepo(t *testing.T) {
	userID := uuid.New()
	repoCalls := 0
	repo := mockRepo{
		unreadCountFn: func(context.Context, uuid.UUID) (int, error) {
			repoCalls++
			return 11, nil
		},
	}
	h := newHarness(t, repo)
	ctx := context.Background()

	count, err := h.svc.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 11, count)
	assert.Equal(t, 1, repoCalls)

	// Second read is served by the backfilled counter.
	count, err = h.svc.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 11, count)
	assert.Equal(t, 1, repoCalls)
}
