// Package hub owns the client side of the notification push channel: a
// single WebSocket connection per Manager, idempotent connect/disconnect,
// client-driven reconnection with a bounded backoff schedule, and a typed
// event subscription surface.
package hub

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/capstonehub/notify/pkg/client/rest"
	"github.com/capstonehub/notify/pkg/events"
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// DefaultBackoff is the reconnect schedule: one immediate retry, then 2s,
// 5s, 10s, then give up and report disconnected.
var DefaultBackoff = []time.Duration{0, 2 * time.Second, 5 * time.Second, 10 * time.Second}

const dialTimeout = 10 * time.Second

// Config carries everything a Manager needs; all of it is injected by the
// composition root, there is no package-level connection state.
type Config struct {
	// URL is the hub endpoint, e.g. "ws://localhost:8080/hubs/notifications".
	URL string

	// Tokens is resolved at connect time, not construction time, so a
	// refreshed token is picked up by the next dial.
	Tokens rest.TokenSource

	// Backoff overrides DefaultBackoff when non-nil.
	Backoff []time.Duration

	// Dialer overrides websocket.DefaultDialer when non-nil.
	Dialer *websocket.Dialer

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Manager owns at most one underlying socket. Consumers share the Manager;
// only the Manager opens or closes the connection.
type Manager struct {
	cfg    Config
	events *Events

	mu      sync.Mutex
	state   State
	sess    *session
	attempt *attempt

	// gen invalidates in-flight reconnect loops when the caller explicitly
	// disconnects or reconnects.
	gen uint64
}

// session is one live socket with its teardown signal.
type session struct {
	conn     *websocket.Conn
	stop     chan struct{}
	stopOnce sync.Once
}

func (s *session) close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = s.conn.Close()
	})
}

// attempt lets concurrent Connect callers join one in-flight dial instead of
// racing to open duplicate sockets.
type attempt struct {
	done chan struct{}
	err  error
}

// NewManager creates a Manager for the given endpoint. It does not open the
// socket; call Connect.
func NewManager(cfg Config) *Manager {
	if cfg.Backoff == nil {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Manager{cfg: cfg, events: &Events{}}
}

// Events returns the typed subscription surface. Registrations made here
// survive reconnects.
func (m *Manager) Events() *Events {
	return m.events
}

// State reports the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect opens the socket if it is not already open. Calling it while
// connected is a no-op; calling it while a connect is in flight joins that
// attempt. A failed connect leaves the Manager disconnected and returns the
// error; it never takes the host application down.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	if a := m.attempt; a != nil {
		m.mu.Unlock()
		select {
		case <-a.done:
			return a.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a := &attempt{done: make(chan struct{})}
	m.attempt = a
	m.state = StateConnecting
	m.gen++ // cancel any reconnect loop still sleeping
	m.mu.Unlock()

	conn, err := m.dial(ctx)

	m.mu.Lock()
	m.attempt = nil
	if err != nil {
		m.state = StateDisconnected
	} else {
		sess := &session{conn: conn, stop: make(chan struct{})}
		m.sess = sess
		m.state = StateConnected
		go m.readLoop(sess)
	}
	m.mu.Unlock()

	a.err = err
	close(a.done)
	return err
}

// Disconnect closes the socket, best effort. Close-time errors are
// swallowed; a subsequent Connect dials fresh.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	sess := m.sess
	m.sess = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if sess != nil {
		sess.close()
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if m.cfg.Tokens != nil {
		tok, err := m.cfg.Tokens()
		if err != nil {
			return nil, fmt.Errorf("resolving token: %w", err)
		}
		if tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	conn, resp, err := m.cfg.Dialer.DialContext(ctx, m.cfg.URL, header)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("dialing hub: %w", err)
	}
	return conn, nil
}

// readLoop pumps frames off one session until it dies. Malformed frames are
// logged and skipped; they never affect other handlers.
func (m *Manager) readLoop(sess *session) {
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			select {
			case <-sess.stop:
				// Explicit disconnect, not a transient failure.
				return
			default:
			}
			m.cfg.Logger.Printf("[Hub Client] connection lost: %v", err)
			m.reconnect(sess)
			return
		}

		msg, err := events.Decode(raw)
		if err != nil {
			m.cfg.Logger.Printf("[Hub Client] dropping frame: %v", err)
			continue
		}
		m.events.dispatch(msg)
	}
}

// reconnect walks the backoff schedule after an unexpected closure. Handlers
// stay registered throughout, so delivery resumes as soon as a dial
// succeeds. If the schedule is exhausted the Manager surfaces disconnected
// and consumers fall back to pull-only operation.
func (m *Manager) reconnect(prev *session) {
	m.mu.Lock()
	if m.sess != prev {
		// Superseded by an explicit Disconnect/Connect.
		m.mu.Unlock()
		return
	}
	m.sess = nil
	m.state = StateReconnecting
	gen := m.gen
	m.mu.Unlock()

	for i, delay := range m.cfg.Backoff {
		if delay > 0 {
			time.Sleep(delay)
		}
		if !m.reconnectPending(gen) {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		conn, err := m.dial(ctx)
		cancel()
		if err != nil {
			m.cfg.Logger.Printf("[Hub Client] reconnect attempt %d failed: %v", i+1, err)
			continue
		}

		m.mu.Lock()
		if m.gen != gen || m.state != StateReconnecting {
			m.mu.Unlock()
			conn.Close()
			return
		}
		sess := &session{conn: conn, stop: make(chan struct{})}
		m.sess = sess
		m.state = StateConnected
		m.mu.Unlock()

		m.cfg.Logger.Printf("[Hub Client] reconnected")
		go m.readLoop(sess)
		return
	}

	m.mu.Lock()
	if m.gen == gen && m.state == StateReconnecting {
		m.state = StateDisconnected
	}
	m.mu.Unlock()
	m.cfg.Logger.Printf("[Hub Client] reconnect attempts exhausted, staying disconnected")
}

func (m *Manager) reconnectPending(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen && m.state == StateReconnecting
}
