// Package events defines the wire schema of the notification push channel.
// Every frame is an Envelope whose Event field selects the payload variant;
// Decode validates the payload before anything downstream sees it.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Server-to-client event names.
const (
	EventNotification    = "notification"
	EventUnreadCount     = "notificationUnreadCount"
	EventMarkedAsRead    = "notificationMarkedAsRead"
	EventAllMarkedAsRead = "notificationAllMarkedAsRead"
	EventBulkCreated     = "notificationBulkCreated"
)

var (
	ErrUnknownEvent   = errors.New("unknown event name")
	ErrInvalidPayload = errors.New("invalid event payload")
)

// Envelope is the raw frame sent over the push channel.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Notification is a single user-facing alert as it travels over the wire
// (both in push frames and REST responses).
type Notification struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	EntityType string     `json:"entityType,omitempty"`
	EntityID   string     `json:"entityId,omitempty"`
	IsRead     bool       `json:"isRead"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// UnreadCount carries the authoritative server-side unread total.
type UnreadCount struct {
	Count int `json:"count"`
}

// MarkedAsRead identifies the notification that transitioned to read.
type MarkedAsRead struct {
	ID int64 `json:"id"`
}

// BulkCreated announces that a batch of notifications was created for the
// user. It deliberately carries only a count; consumers refetch.
type BulkCreated struct {
	Count int `json:"count"`
}

// Message is the decoded tagged union. Exactly one payload field is non-nil
// for payload-carrying events; EventAllMarkedAsRead has none.
type Message struct {
	Event        string
	Notification *Notification
	UnreadCount  *UnreadCount
	MarkedAsRead *MarkedAsRead
	BulkCreated  *BulkCreated
}

// Decode parses a raw frame and validates the payload for its event name.
func Decode(raw []byte) (*Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	msg := &Message{Event: env.Event}
	switch env.Event {
	case EventNotification:
		var n Notification
		if err := json.Unmarshal(env.Payload, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if n.ID <= 0 {
			return nil, fmt.Errorf("%w: notification without id", ErrInvalidPayload)
		}
		msg.Notification = &n
	case EventUnreadCount:
		var c UnreadCount
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		msg.UnreadCount = &c
	case EventMarkedAsRead:
		var m MarkedAsRead
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if m.ID <= 0 {
			return nil, fmt.Errorf("%w: marked-as-read without id", ErrInvalidPayload)
		}
		msg.MarkedAsRead = &m
	case EventAllMarkedAsRead:
		// No payload.
	case EventBulkCreated:
		var b BulkCreated
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &b); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
			}
		}
		msg.BulkCreated = &b
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return msg, nil
}

// Marshal builds a raw frame for the given event name and payload.
// A nil payload produces an envelope without a payload field.
func Marshal(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
