package domain

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter parameterizes the paged notification list.
type ListFilter struct {
	Page    int
	Size    int
	Keyword string
}

// Normalize clamps the filter to sane pagination defaults.
func (f ListFilter) Normalize() ListFilter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Size <= 0 || f.Size > 100 {
		f.Size = 20
	}
	return f
}

type NotificationRepository interface {
	// Create inserts n and fills its ID and CreatedAt.
	Create(ctx context.Context, n *Notification) error

	// CreateBulk inserts all notifications in one transaction.
	CreateBulk(ctx context.Context, ns []*Notification) error

	// List returns one page of the user's notifications, newest first, plus
	// the total record count for the filter.
	List(ctx context.Context, userID uuid.UUID, f ListFilter) ([]Notification, int64, error)

	// MarkAsRead flips one notification owned by the user. It reports
	// whether a row actually transitioned; marking an already-read
	// notification is a successful no-op. A missing notification is
	// ErrNotificationNotFound.
	MarkAsRead(ctx context.Context, id int64, userID uuid.UUID) (bool, error)

	// MarkAllAsRead flips every unread notification of the user and returns
	// how many transitioned.
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)

	// UnreadCount returns the user's unread total.
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}
