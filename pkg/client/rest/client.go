// Package rest is the pull-side transport client for the notification
// service. It attaches the bearer token per request (tokens may be refreshed
// between calls), enforces a fixed request timeout, and retries idempotent
// reads once on transient failure.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/capstonehub/notify/pkg/events"
)

const defaultTimeout = 30 * time.Second

// TokenSource yields the current bearer token. An empty token sends the
// request unauthenticated; the server rejects it as it sees fit.
type TokenSource func() (string, error)

// StaticToken returns a TokenSource that always yields tok.
func StaticToken(tok string) TokenSource {
	return func() (string, error) { return tok, nil }
}

// APIError is a non-2xx response normalized to a message string.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client talks to the notification REST endpoints.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout overrides the default 30s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client bound to baseURL, e.g. "http://localhost:8080".
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListQuery parameterizes the notification list.
type ListQuery struct {
	PageNumber int
	PageSize   int
	Keyword    string
}

// Normalize fills defaults so equivalent queries share a cache key.
func (q ListQuery) Normalize() ListQuery {
	if q.PageNumber <= 0 {
		q.PageNumber = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	return q
}

// NotificationPage is one page of notifications plus pagination metadata.
type NotificationPage struct {
	Items        []events.Notification `json:"items"`
	TotalRecords int64                 `json:"totalRecords"`
	PageNumber   int                   `json:"pageNumber"`
	PageSize     int                   `json:"pageSize"`
}

// ListNotifications fetches a page of the caller's notifications.
func (c *Client) ListNotifications(ctx context.Context, q ListQuery) (*NotificationPage, error) {
	q = q.Normalize()
	vals := url.Values{}
	vals.Set("PageNumber", strconv.Itoa(q.PageNumber))
	vals.Set("PageSize", strconv.Itoa(q.PageSize))
	if q.Keyword != "" {
		vals.Set("Keyword", q.Keyword)
	}

	var page NotificationPage
	if err := c.get(ctx, "/notifications?"+vals.Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UnreadCount fetches the caller's unread total.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.get(ctx, "/notifications/unread-count", &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// MarkRead marks one notification as read. Marking an already-read
// notification succeeds as a no-op.
func (c *Client) MarkRead(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodPut, fmt.Sprintf("/notifications/%d/read", id), nil, nil)
}

// MarkAllRead marks every notification of the caller as read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.send(ctx, http.MethodPut, "/notifications/read-all", nil, nil)
}

// CreateInput describes a notification to create (moderator only).
type CreateInput struct {
	UserID     string `json:"userId"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	EntityType string `json:"entityType,omitempty"`
	EntityID   string `json:"entityId,omitempty"`
}

// Create creates a single notification (moderator only).
func (c *Client) Create(ctx context.Context, in CreateInput) error {
	return c.send(ctx, http.MethodPost, "/notifications", in, nil)
}

// BulkCreateInput describes one notification delivered to many users.
type BulkCreateInput struct {
	UserIDs    []string `json:"userIds"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	EntityType string   `json:"entityType,omitempty"`
	EntityID   string   `json:"entityId,omitempty"`
}

// CreateBulk creates the notification for every listed user (moderator only).
func (c *Client) CreateBulk(ctx context.Context, in BulkCreateInput) error {
	return c.send(ctx, http.MethodPost, "/notifications/bulk", in, nil)
}

// get performs a GET with a single retry on network failure or 5xx.
func (c *Client) get(ctx context.Context, path string, out any) error {
	err := c.do(ctx, http.MethodGet, path, nil, out)
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*APIError); ok && apiErr.Status < 500 {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) send(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}
	return c.do(ctx, method, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		tok, err := c.tokens()
		if err != nil {
			return fmt.Errorf("resolving token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
