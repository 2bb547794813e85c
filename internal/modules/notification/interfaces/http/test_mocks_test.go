package http_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/capstonehub/notify/internal/gateway/middleware"
	"github.com/capstonehub/notify/internal/modules/notification/application"
	"github.com/capstonehub/notify/internal/modules/notification/domain"
	"github.com/capstonehub/notify/internal/modules/notification/infrastructure/cache"
	"github.com/capstonehub/notify/internal/modules/notification/infrastructure/websocket"
	notification_http "github.com/capstonehub/notify/internal/modules/notification/interfaces/http"
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

// newHandlerMux builds the handler over a mocked repository and routes it the
// way the gateway does, with the given user injected as the authenticated
// caller.
func newHandlerMux(t *testing.T, repo mockRepo, userID uuid.UUID) *http.ServeMux {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	service := application.NewNotificationService(repo, cache.NewUnreadCounter(rdb), hub)
	handler := notification_http.NewNotificationHandler(service, hub)

	authed := func(next http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.ContextKeyUserId, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	mux := http.NewServeMux()
	mux.Handle("GET /notifications", authed(handler.List))
	mux.Handle("GET /notifications/unread-count", authed(handler.UnreadCount))
	mux.Handle("PUT /notifications/{id}/read", authed(handler.MarkAsRead))
	mux.Handle("PUT /notifications/read-all", authed(handler.MarkAllAsRead))
	mux.Handle("POST /notifications", authed(handler.Create))
	mux.Handle("POST /notifications/bulk", authed(handler.CreateBulk))
	return mux
}
