package notification

import (
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/capstonehub/notify/internal/modules/notification/application"
	"github.com/capstonehub/notify/internal/modules/notification/infrastructure/cache"
	"github.com/capstonehub/notify/internal/modules/notification/infrastructure/persistence/postgres"
	"github.com/capstonehub/notify/internal/modules/notification/infrastructure/websocket"
	notification_http "github.com/capstonehub/notify/internal/modules/notification/interfaces/http"
)

type Module struct {
	service *application.NotificationService
	handler *notification_http.NotificationHandler
	hub     *websocket.Hub
}

func NewModule(db *sqlx.DB, rdb *redis.Client) *Module {
	repo := postgres.NewPgNotificationRepository(db)
	counter := cache.NewUnreadCounter(rdb)
	hub := websocket.NewHub()
	go hub.Run()

	service := application.NewNotificationService(repo, counter, hub)
	handler := notification_http.NewNotificationHandler(service, hub)

	return &Module{
		service: service,
		handler: handler,
		hub:     hub,
	}
}

func (m *Module) HTTPHandler() *notification_http.NotificationHandler {
	return m.handler
}

func (m *Module) Service() *application.NotificationService {
	return m.service
}

func (m *Module) Stop() {
	m.hub.Stop()
}
