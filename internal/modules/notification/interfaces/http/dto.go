package http

import (
	"github.com/google/uuid"

	"github.com/capstonehub/notify/internal/modules/notification/domain"
)

type createRequest struct {
	UserID     uuid.UUID `json:"userId"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
}

type bulkCreateRequest struct {
	UserIDs    []uuid.UUID `json:"userIds"`
	Title      string      `json:"title"`
	Message    string      `json:"message"`
	EntityType string      `json:"entityType"`
	EntityID   string      `json:"entityId"`
}

type listResponse struct {
	Items        []domain.Notification `json:"items"`
	TotalRecords int64                 `json:"totalRecords"`
	PageNumber   int                   `json:"pageNumber"`
	PageSize     int                   `json:"pageSize"`
}

type countResponse struct {
	Count int `json:"count"`
}

type createdResponse struct {
	Created int `json:"created"`
}
