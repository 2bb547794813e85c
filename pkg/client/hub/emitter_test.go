package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capstonehub/notify/pkg/events"
)

func TestEmitter_DeliversInRegistrationOrder(t *testing.T) {
	var e emitter[int]
	var order []string

	e.subscribe(func(int) { order = append(order, "first") })
	e.subscribe(func(int) { order = append(order, "second") })
	e.subscribe(func(int) { order = append(order, "third") })

	e.emit(1)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestEmitter_Unsubscribe(t *testing.T) {
	var e emitter[int]
	var got []int

	unsub := e.subscribe(func(v int) { got = append(got, v) })
	e.emit(1)
	unsub()
	e.emit(2)
	unsub() // idempotent

	assert.Equal(t, []int{1}, got)
}

func TestEmitter_PanicDoesNotStopSiblings(t *testing.T) {
	var e emitter[int]
	var got []int

	e.subscribe(func(int) { panic("handler bug") })
	e.subscribe(func(v int) { got = append(got, v) })

	require.NotPanics(t, func() { e.emit(7) })
	assert.Equal(t, []int{7}, got)
}

func TestEvents_DispatchRoutesByEvent(t *testing.T) {
	var ev Events
	var notif []int64
	var counts []int
	var marked []int64
	allCalls := 0
	var bulk []int

	ev.OnNotification(func(n events.Notification) { notif = append(notif, n.ID) })
	ev.OnUnreadCount(func(c int) { counts = append(counts, c) })
	ev.OnMarkedAsRead(func(id int64) { marked = append(marked, id) })
	ev.OnAllMarkedAsRead(func() { allCalls++ })
	ev.OnBulkCreated(func(c int) { bulk = append(bulk, c) })

	ev.dispatch(&events.Message{Event: events.EventNotification, Notification: &events.Notification{ID: 3}})
	ev.dispatch(&events.Message{Event: events.EventUnreadCount, UnreadCount: &events.UnreadCount{Count: 4}})
	ev.dispatch(&events.Message{Event: events.EventMarkedAsRead, MarkedAsRead: &events.MarkedAsRead{ID: 3}})
	ev.dispatch(&events.Message{Event: events.EventAllMarkedAsRead})
	ev.dispatch(&events.Message{Event: events.EventBulkCreated, BulkCreated: &events.BulkCreated{Count: 10}})

	assert.Equal(t, []int64{3}, notif)
	assert.Equal(t, []int{4}, counts)
	assert.Equal(t, []int64{3}, marked)
	assert.Equal(t, 1, allCalls)
	assert.Equal(t, []int{10}, bulk)
}
