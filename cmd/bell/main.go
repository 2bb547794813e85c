package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/capstonehub/notify/internal/credential"
	"github.com/capstonehub/notify/internal/tui/bell"
	"github.com/capstonehub/notify/pkg/client/cache"
	"github.com/capstonehub/notify/pkg/client/hub"
	"github.com/capstonehub/notify/pkg/client/readmodel"
	"github.com/capstonehub/notify/pkg/client/rest"
	"github.com/capstonehub/notify/pkg/events"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "login" {
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: bell login <token>")
			os.Exit(1)
		}
		if err := credential.SetToken(os.Args[2]); err != nil {
			log.Fatalf("Failed to store token: %v", err)
		}
		fmt.Println("Token stored")
		return
	}

	baseURL := os.Getenv("CAPSTONEHUB_API")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	token, err := credential.Token()
	if err != nil {
		log.Fatalf("No API token (run 'bell login <token>' or set %s): %v", credential.TokenEnv, err)
	}
	tokens := rest.StaticToken(token)

	hubURL, err := hubEndpoint(baseURL)
	if err != nil {
		log.Fatalf("Invalid API URL %q: %v", baseURL, err)
	}

	// Keep the hub quiet on the terminal; bubbletea owns the screen.
	logFile, err := os.OpenFile(os.TempDir()+"/capstonehub-bell.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()
	logger := log.New(logFile, "", log.LstdFlags)

	api := rest.New(baseURL, tokens)
	store := cache.NewStore()
	svc := readmodel.New(api, store)

	mgr := hub.NewManager(hub.Config{
		URL:    hubURL,
		Tokens: tokens,
		Logger: logger,
	})

	reconciler := readmodel.NewReconciler(store)
	unbind := reconciler.Bind(mgr.Events())
	defer unbind()

	program := tea.NewProgram(bell.New(svc, mgr), tea.WithAltScreen())

	// After the reconciler has folded an event into the cache, nudge the UI
	// to re-read its models. Registration order on the emitter guarantees
	// the reconciler runs first.
	subscribe(mgr.Events(), func() { program.Send(bell.SyncMsg{}) })

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := mgr.Connect(ctx); err != nil {
		// Pull-only mode still works; the bell shows the channel as down.
		logger.Printf("[Bell] hub connect failed, running pull-only: %v", err)
	}
	cancel()
	defer mgr.Disconnect()

	if _, err := program.Run(); err != nil {
		log.Fatalf("Bell exited with error: %v", err)
	}
}

// subscribe fans every push event into one refresh callback.
func subscribe(ev *hub.Events, notify func()) {
	ev.OnNotification(func(events.Notification) { notify() })
	ev.OnUnreadCount(func(int) { notify() })
	ev.OnMarkedAsRead(func(int64) { notify() })
	ev.OnAllMarkedAsRead(notify)
	ev.OnBulkCreated(func(int) { notify() })
}

// hubEndpoint derives the WebSocket URL from the REST base URL.
func hubEndpoint(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/hubs/notifications"
	return u.String(), nil
}
