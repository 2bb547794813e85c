package hub

import (
	"log"
	"sync"

	"github.com/capstonehub/notify/pkg/events"
)

// emitter dispatches one event variant to its subscribers in registration
// order. A panicking handler is logged and contained so it cannot take down
// the read loop or sibling handlers.
type emitter[T any] struct {
	mu       sync.Mutex
	nextID   int
	handlers []handlerEntry[T]
}

type handlerEntry[T any] struct {
	id int
	fn func(T)
}

// subscribe registers fn and returns its removal func. The removal func is
// idempotent and safe to call after the connection was torn down.
func (e *emitter[T]) subscribe(fn func(T)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.handlers = append(e.handlers, handlerEntry[T]{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, h := range e.handlers {
			if h.id == id {
				e.handlers = append(e.handlers[:i], e.handlers[i+1:]...)
				return
			}
		}
	}
}

func (e *emitter[T]) emit(v T) {
	e.mu.Lock()
	handlers := make([]handlerEntry[T], len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[Hub Client] event handler panicked: %v", r)
				}
			}()
			h.fn(v)
		}()
	}
}

// Events is the typed subscription surface of a Manager. Registrations
// survive reconnects; delivery resumes without re-subscription.
type Events struct {
	notification    emitter[events.Notification]
	unreadCount     emitter[int]
	markedAsRead    emitter[int64]
	allMarkedAsRead emitter[struct{}]
	bulkCreated     emitter[int]
}

// OnNotification subscribes to new-notification arrivals.
func (e *Events) OnNotification(fn func(events.Notification)) func() {
	return e.notification.subscribe(fn)
}

// OnUnreadCount subscribes to authoritative unread-count updates.
func (e *Events) OnUnreadCount(fn func(int)) func() {
	return e.unreadCount.subscribe(fn)
}

// OnMarkedAsRead subscribes to single-notification read transitions.
func (e *Events) OnMarkedAsRead(fn func(int64)) func() {
	return e.markedAsRead.subscribe(fn)
}

// OnAllMarkedAsRead subscribes to mark-all-read announcements.
func (e *Events) OnAllMarkedAsRead(fn func()) func() {
	return e.allMarkedAsRead.subscribe(func(struct{}) { fn() })
}

// OnBulkCreated subscribes to bulk-creation announcements.
func (e *Events) OnBulkCreated(fn func(count int)) func() {
	return e.bulkCreated.subscribe(fn)
}

// dispatch routes a decoded frame to the matching emitter. Frames are
// dispatched in the order the transport delivered them.
func (e *Events) dispatch(msg *events.Message) {
	switch msg.Event {
	case events.EventNotification:
		e.notification.emit(*msg.Notification)
	case events.EventUnreadCount:
		e.unreadCount.emit(msg.UnreadCount.Count)
	case events.EventMarkedAsRead:
		e.markedAsRead.emit(msg.MarkedAsRead.ID)
	case events.EventAllMarkedAsRead:
		e.allMarkedAsRead.emit(struct{}{})
	case events.EventBulkCreated:
		e.bulkCreated.emit(msg.BulkCreated.Count)
	}
}
