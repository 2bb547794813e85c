package websocket

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notification_hub_connected_clients",
		Help: "Number of WebSocket clients currently connected to the notification hub.",
	})

	messagesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_hub_messages_delivered_total",
		Help: "Total number of messages delivered to notification hub clients.",
	})
)

type UnicastMessage struct {
	UserID  uuid.UUID
	Message []byte
}

// Hub maintains the set of active clients and routes notification events to
// the connections belonging to a user. A user may hold several connections
// (multiple tabs/terminals); every one of them receives the event.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Unicast messages addressed to one user's connections.
	unicast chan UnicastMessage

	// Messages for every connected client.
	broadcast chan []byte

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Channel to signal termination
	stop     chan struct{}
	stopOnce sync.Once
}

func NewHub() *Hub {
	return &Hub{
		unicast:    make(chan UnicastMessage),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),

		clients: make(map[*Client]bool),
		stop:    make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			connectedClients.Inc()
			log.Printf("[Notification Hub] Client registered (User: %s)", client.userID)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				connectedClients.Dec()
				log.Printf("[Notification Hub] Client unregistered (User: %s)", client.userID)
			}
		case msg := <-h.unicast:
			for client := range h.clients {
				if client.userID != msg.UserID {
					continue
				}
				select {
				case client.send <- msg.Message:
					messagesDelivered.Inc()
				default:
					close(client.send)
					delete(h.clients, client)
					connectedClients.Dec()
				}
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
					messagesDelivered.Inc()
				default:
					close(client.send)
					delete(h.clients, client)
					connectedClients.Dec()
				}
			}
		case <-h.stop:
			log.Println("[Notification Hub] Stopping hub")
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
				connectedClients.Dec()
			}
			return
		}
	}
}

// SendToUser delivers a message to every connection of one user.
func (h *Hub) SendToUser(userID uuid.UUID, message []byte) {
	select {
	case h.unicast <- UnicastMessage{UserID: userID, Message: message}:
	case <-h.stop:
	}
}

// Broadcast delivers a message to every connected client.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.stop:
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}
