package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Entity types a notification can reference for click-through navigation.
// The reference is opaque to this service; the review workflow owns the
// entities themselves.
const (
	EntityTopic      = "topic"
	EntitySubmission = "submission"
	EntityReview     = "review"
)

type Notification struct {
	ID         int64      `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"userId" db:"user_id"`
	Title      string     `json:"title" db:"title"`
	Message    string     `json:"message" db:"message"`
	EntityType string     `json:"entityType,omitempty" db:"entity_type"`
	EntityID   string     `json:"entityId,omitempty" db:"entity_id"`
	IsRead     bool       `json:"isRead" db:"is_read"`
	ReadAt     *time.Time `json:"readAt,omitempty" db:"read_at"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
}

var (
	ErrNotificationNotFound = errors.New("notification not found")
)
