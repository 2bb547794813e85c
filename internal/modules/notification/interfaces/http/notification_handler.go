package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/capstonehub/notify/internal/gateway/middleware"
	"github.com/capstonehub/notify/internal/modules/notification/application"
	"github.com/capstonehub/notify/internal/modules/notification/domain"
	"github.com/capstonehub/notify/internal/modules/notification/infrastructure/websocket"
)

type NotificationHandler struct {
	service *application.NotificationService
	hub     *websocket.Hub
}

func NewNotificationHandler(service *application.NotificationService, hub *websocket.Hub) *NotificationHandler {
	return &NotificationHandler{service: service, hub: hub}
}

// Subscribe upgrades the request to the notification push channel.
func (h *NotificationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.ContextKeyUserId).(uuid.UUID)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	websocket.ServeWs(h.hub, w, r, userID)
}

// List serves GET /notifications?PageNumber&PageSize&Keyword.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.ContextKeyUserId).(uuid.UUID)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	filter := domain.ListFilter{Keyword: r.URL.Query().Get("Keyword")}
	if v, err := strconv.Atoi(r.URL.Query().Get("PageNumber")); err == nil {
		filter.Page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("PageSize")); err == nil {
		filter.Size = v
	}
	filter = filter.Normalize()

	items, total, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		log.Printf("[Notification API] list failed: %v", err)
		http.Error(w, "failed to fetch notifications", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:        items,
		TotalRecords: total,
		PageNumber:   filter.Page,
		PageSize:     filter.Size,
	})
}

// UnreadCount serves GET /notifications/unread-count.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.ContextKeyUserId).(uuid.UUID)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		log.Printf("[Notification API] unread count failed: %v", err)
		http.Error(w, "failed to get unread count", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

// MarkAsRead serves PUT /notifications/{id}/read.
func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.ContextKeyUserId).(uuid.UUID)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid notification id", http.StatusBadRequest)
		return
	}

	if err := h.service.MarkAsRead(r.Context(), id, userID); err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			http.Error(w, "notification not found", http.StatusNotFound)
			return
		}
		log.Printf("[Notification API] mark as read failed: %v", err)
		http.Error(w, "failed to mark notification as read", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllAsRead serves PUT /notifications/read-all.
func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.ContextKeyUserId).(uuid.UUID)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.MarkAllAsRead(r.Context(), userID); err != nil {
		log.Printf("[Notification API] mark all as read failed: %v", err)
		http.Error(w, "failed to mark all notifications as read", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Create serves POST /notifications (moderator only, enforced in routing).
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == uuid.Nil || req.Title == "" {
		http.Error(w, "userId and title are required", http.StatusBadRequest)
		return
	}

	_, err := h.service.Create(r.Context(), application.CreateInput{
		UserID:     req.UserID,
		Title:      req.Title,
		Message:    req.Message,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
	})
	if err != nil {
		log.Printf("[Notification API] create failed: %v", err)
		http.Error(w, "failed to create notification", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, createdResponse{Created: 1})
}

// CreateBulk serves POST /notifications/bulk (moderator only).
func (h *NotificationHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.UserIDs) == 0 || req.Title == "" {
		http.Error(w, "userIds and title are required", http.StatusBadRequest)
		return
	}

	created, err := h.service.CreateBulk(r.Context(), req.UserIDs, application.CreateInput{
		Title:      req.Title,
		Message:    req.Message,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
	})
	if err != nil {
		log.Printf("[Notification API] bulk create failed: %v", err)
		http.Error(w, "failed to create notifications", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, createdResponse{Created: created})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Notification API] encode response failed: %v", err)
	}
}
