// Package client talks to the portal notification API the way the browser
// bell does, and drives a STOMP chat connection.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/epathshala/portal-api/internal/models"
)

const defaultTimeout = 10 * time.Second

// StatusError is returned when the API answers with a non 2xx status.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return fmt.Sprintf("Authentication error: %d", e.Status)
	}
	return fmt.Sprintf("Failed to %s: %d", e.Op, e.Status)
}

// IsAuthError reports whether err is a 401 or 403 from the API.
func IsAuthError(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.Status == http.StatusUnauthorized || statusErr.Status == http.StatusForbidden
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// Client calls the notification endpoints under an API base URL such as
// http://localhost:8080/api.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New constructs a Client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// FetchNotifications returns the caller's notifications.
func (c *Client) FetchNotifications(ctx context.Context) ([]models.Notification, error) {
	var list models.NotificationList
	if err := c.do(ctx, http.MethodGet, "/notifications/user", "fetch notifications", &list); err != nil {
		return nil, err
	}
	return list.Content, nil
}

// FetchUnreadCount returns the badge count.
func (c *Client) FetchUnreadCount(ctx context.Context) (int64, error) {
	var count models.UnreadCount
	if err := c.do(ctx, http.MethodGet, "/notifications/user/unread/count", "fetch unread count", &count); err != nil {
		return 0, err
	}
	return count.Count, nil
}

// MarkRead marks one notification read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/notifications/mark-read/"+url.PathEscape(id), "mark notification as read", nil)
}

// MarkAllRead marks every unread notification read and returns how many
// changed.
func (c *Client) MarkAllRead(ctx context.Context) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPost, "/notifications/mark-all-read", "mark all notifications as read", &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

func (c *Client) do(ctx context.Context, method, path, op string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Op: op, Status: resp.StatusCode}
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("%s: empty response", op)
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("%s: decode data: %w", op, err)
	}
	return nil
}
