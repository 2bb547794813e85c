package application

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/capstonehub/notify/internal/modules/notification/domain"
	"github.com/capstonehub/notify/internal/modules/notification/infrastructure/cache"
	"github.com/capstonehub/notify/internal/modules/notification/infrastructure/websocket"
	"github.com/capstonehub/notify/pkg/events"
)

// CreateInput describes one notification to create for one user.
type CreateInput struct {
	UserID     uuid.UUID
	Title      string
	Message    string
	EntityType string
	EntityID   string
}

// NotificationService is the application layer of the notification module:
// it persists notifications, keeps the Redis unread counter in step, and
// pushes typed events through the hub. Counter and push failures are logged,
// never fatal; pull queries against Postgres remain the source of truth.
type NotificationService struct {
	repo    domain.NotificationRepository
	counter *cache.UnreadCounter
	hub     *websocket.Hub
}

func NewNotificationService(repo domain.NotificationRepository, counter *cache.UnreadCounter, hub *websocket.Hub) *NotificationService {
	return &NotificationService{repo: repo, counter: counter, hub: hub}
}

// Create persists one notification and pushes it to the user's connections.
func (s *NotificationService) Create(ctx context.Context, in CreateInput) (*domain.Notification, error) {
	n := &domain.Notification{
		UserID:     in.UserID,
		Title:      in.Title,
		Message:    in.Message,
		EntityType: in.EntityType,
		EntityID:   in.EntityID,
		IsRead:     false,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if err := s.counter.Increment(ctx, n.UserID); err != nil {
		log.Printf("[Notification Service] counter increment failed: %v", err)
	}

	s.publish(n.UserID, events.EventNotification, toWire(n))
	return n, nil
}

// CreateBulk persists the same notification content for every listed user
// and announces the batch per user. Clients refetch instead of merging.
func (s *NotificationService) CreateBulk(ctx context.Context, userIDs []uuid.UUID, in CreateInput) (int, error) {
	ns := make([]*domain.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		ns = append(ns, &domain.Notification{
			UserID:     userID,
			Title:      in.Title,
			Message:    in.Message,
			EntityType: in.EntityType,
			EntityID:   in.EntityID,
			IsRead:     false,
		})
	}
	if err := s.repo.CreateBulk(ctx, ns); err != nil {
		return 0, err
	}

	perUser := make(map[uuid.UUID]int, len(userIDs))
	for _, n := range ns {
		perUser[n.UserID]++
	}
	for userID, count := range perUser {
		if err := s.counter.Invalidate(ctx, userID); err != nil {
			log.Printf("[Notification Service] counter invalidate failed: %v", err)
		}
		s.publish(userID, events.EventBulkCreated, events.BulkCreated{Count: count})
	}

	return len(ns), nil
}

// List returns one page of the user's notifications plus the total count.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, f domain.ListFilter) ([]domain.Notification, int64, error) {
	return s.repo.List(ctx, userID, f)
}

// MarkAsRead flips one notification. Re-marking an already-read one is a
// no-op and publishes nothing. After a real transition the authoritative
// unread count is pushed alongside the read event so clients can correct
// any incremental drift.
func (s *NotificationService) MarkAsRead(ctx context.Context, id int64, userID uuid.UUID) error {
	flipped, err := s.repo.MarkAsRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !flipped {
		return nil
	}

	if err := s.counter.Decrement(ctx, userID); err != nil {
		log.Printf("[Notification Service] counter decrement failed: %v", err)
	}

	s.publish(userID, events.EventMarkedAsRead, events.MarkedAsRead{ID: id})
	s.publishUnreadCount(ctx, userID)
	return nil
}

// MarkAllAsRead flips everything the user has unread. Idempotent.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.repo.MarkAllAsRead(ctx, userID); err != nil {
		return err
	}

	if err := s.counter.Reset(ctx, userID); err != nil {
		log.Printf("[Notification Service] counter reset failed: %v", err)
	}

	s.publish(userID, events.EventAllMarkedAsRead, nil)
	return nil
}

// UnreadCount serves the counter from Redis, backfilling from Postgres on a
// miss or a Redis failure.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	count, hit, err := s.counter.Get(ctx, userID)
	if err != nil {
		log.Printf("[Notification Service] counter read failed, falling back to db: %v", err)
	} else if hit {
		return count, nil
	}

	count, err = s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, err
	}
	if setErr := s.counter.Set(ctx, userID, count); setErr != nil {
		log.Printf("[Notification Service] counter backfill failed: %v", setErr)
	}
	return count, nil
}

// GetHub exposes the hub for the WebSocket subscribe handler.
func (s *NotificationService) GetHub() *websocket.Hub {
	return s.hub
}

func (s *NotificationService) publishUnreadCount(ctx context.Context, userID uuid.UUID) {
	count, err := s.UnreadCount(ctx, userID)
	if err != nil {
		log.Printf("[Notification Service] unread count publish skipped: %v", err)
		return
	}
	s.publish(userID, events.EventUnreadCount, events.UnreadCount{Count: count})
}

func (s *NotificationService) publish(userID uuid.UUID, event string, payload any) {
	raw, err := events.Marshal(event, payload)
	if err != nil {
		log.Printf("[Notification Service] marshal %s failed: %v", event, err)
		return
	}
	s.hub.SendToUser(userID, raw)
}

// toWire strips the owner from the stored row; clients only ever see their
// own notifications.
func toWire(n *domain.Notification) events.Notification {
	return events.Notification{
		ID:         n.ID,
		Title:      n.Title,
		Message:    n.Message,
		EntityType: n.EntityType,
		EntityID:   n.EntityID,
		IsRead:     n.IsRead,
		ReadAt:     n.ReadAt,
		CreatedAt:  n.CreatedAt,
	}
}
