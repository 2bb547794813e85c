package main

import (
	"log"
	"log/slog"
	"net/url"
	"os"

	"github.com/capstonehub/notify/internal/gateway"
	"github.com/capstonehub/notify/internal/gateway/middleware"
	"github.com/capstonehub/notify/internal/modules/auth"
	"github.com/capstonehub/notify/internal/modules/notification"
	"github.com/capstonehub/notify/internal/shared/infrastructure/config"
	"github.com/capstonehub/notify/internal/shared/infrastructure/database"
	"github.com/capstonehub/notify/pkg/migration"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	dbURL := "postgres://" + cfg.Database.User + ":" + url.QueryEscape(cfg.Database.Password) +
		"@" + cfg.Database.Host + ":" + cfg.Database.Port + "/" + cfg.Database.DBName +
		"?sslmode=" + cfg.Database.SSLMode
	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}

	if err := migration.AutoMigrate(dbURL, migrationsPath, logger); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected successfully")

	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()
	log.Println("Redis connected successfully")

	// Modules
	authModule := auth.NewModule(db, cfg.JWT.Secret, cfg.JWT.Expiry)
	notificationModule := notification.NewModule(db, rdb)
	defer notificationModule.Stop()

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	mux := gateway.SetupRoutes(gateway.RouterConfig{
		AuthHandler:         authModule.HTTPHandler(),
		AuthMiddleware:      authMiddleware,
		NotificationHandler: notificationModule.HTTPHandler(),
	})

	handler := middleware.CORSMiddleware(middleware.PrometheusMiddleware(mux), cfg.Server.AllowedOrigins)

	server := gateway.NewServer(cfg.Server.Port, handler)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
