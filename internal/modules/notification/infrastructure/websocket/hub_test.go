package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestHub_SendToUserOnlyReachesMatchingClients(t *testing.T) {
	h := NewHub()
	targetID := uuid.New()
	otherID := uuid.New()

	// Two connections for the target user, one for somebody else.
	tab1 := &Client{send: make(chan []byte, 1), userID: targetID}
	tab2 := &Client{send: make(chan []byte, 1), userID: targetID}
	other := &Client{send: make(chan []byte, 1), userID: otherID}
	h.clients[tab1] = true
	h.clients[tab2] = true
	h.clients[other] = true

	go h.Run()
	defer h.Stop()

	h.SendToUser(targetID, []byte("private"))

	for _, c := range []*Client{tab1, tab2} {
		select {
		case msg := <-c.send:
			assert.Equal(t, "private", string(msg))
		case <-time.After(2 * time.Second):
			t.Fatal("expected unicast message on every connection of the user")
		}
	}

	select {
	case <-other.send:
		t.Fatal("unicast leaked to another user")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Broadcast(t *testing.T) {
	h := NewHub()
	a := &Client{send: make(chan []byte, 1), userID: uuid.New()}
	b := &Client{send: make(chan []byte, 1), userID: uuid.New()}
	h.clients[a] = true
	h.clients[b] = true

	go h.Run()
	defer h.Stop()

	h.Broadcast([]byte("hello"))

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			assert.Equal(t, "hello", string(msg))
		case <-time.After(2 * time.Second):
			t.Fatal("expected broadcast message")
		}
	}
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	h := NewHub()
	userID := uuid.New()
	// Full buffer simulates a client that stopped draining its send queue.
	slow := &Client{send: make(chan []byte, 1), userID: userID}
	slow.send <- []byte("stuck")
	h.clients[slow] = true

	go h.Run()
	defer h.Stop()

	h.SendToUser(userID, []byte("dropped"))

	// The send channel gets closed when the hub evicts the client.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-slow.send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("slow client was not evicted")
		}
	}
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	c := &Client{send: make(chan []byte, 1), userID: uuid.New()}
	h.register <- c
	h.unregister <- c

	select {
	case _, ok := <-c.send:
		assert.False(t, ok, "send channel should be closed on unregister")
	case <-time.After(2 * time.Second):
		t.Fatal("unregister did not close the send channel")
	}
}

func TestHub_StopIsIdempotentAndUnblocksSenders(t *testing.T) {
	h := NewHub()
	go h.Run()

	h.Stop()
	h.Stop()

	// Sends after stop return instead of blocking forever.
	done := make(chan struct{})
	go func() {
		h.SendToUser(uuid.New(), []byte("late"))
		h.Broadcast([]byte("late"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked after hub stop")
	}
}
