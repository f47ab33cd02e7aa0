package client

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/epathshala/portal-api/internal/models"
)

// LoadError is the message stored when the list or count cannot be fetched.
const LoadError = "Failed to load notifications"

type notificationAPI interface {
	FetchNotifications(ctx context.Context) ([]models.Notification, error)
	FetchUnreadCount(ctx context.Context) (int64, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int64, error)
}

// PollerState is what the bell renders.
type PollerState struct {
	Notifications []models.Notification
	UnreadCount   int64
	Error         string
	// LastErr keeps the underlying failure for callers that want more than
	// the banner text.
	LastErr error
}

// NotificationPoller holds the bell state for one signed in user.
type NotificationPoller struct {
	api notificationAPI

	mu    sync.RWMutex
	state PollerState
}

// NewNotificationPoller constructs a poller over api.
func NewNotificationPoller(api notificationAPI) *NotificationPoller {
	return &NotificationPoller{api: api}
}

// State returns a copy of the current state.
func (p *NotificationPoller) State() PollerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := p.state
	out.Notifications = append([]models.Notification(nil), p.state.Notifications...)
	return out
}

// Load fetches the list and the unread count together. Both land or neither
// does: on any failure the previous data stays and the error is recorded.
func (p *NotificationPoller) Load(ctx context.Context) error {
	var (
		list  []models.Notification
		count int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = p.api.FetchNotifications(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		count, err = p.api.FetchUnreadCount(gctx)
		return err
	})

	err := g.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.state.Error = LoadError
		p.state.LastErr = err
		return err
	}
	p.state.Notifications = list
	p.state.UnreadCount = count
	p.state.Error = ""
	p.state.LastErr = nil
	return nil
}

// Open is called when the popover opens. The badge drops to zero before the
// server confirms and stays there even if mark-all-read fails.
func (p *NotificationPoller) Open(ctx context.Context) error {
	p.mu.Lock()
	if p.state.UnreadCount == 0 {
		p.mu.Unlock()
		return nil
	}
	p.state.UnreadCount = 0
	p.mu.Unlock()

	if _, err := p.api.MarkAllRead(ctx); err != nil {
		p.mu.Lock()
		p.state.LastErr = err
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	for i := range p.state.Notifications {
		p.state.Notifications[i].IsRead = true
	}
	p.mu.Unlock()
	return nil
}

// MarkOne marks a single notification read and updates the local copy.
func (p *NotificationPoller) MarkOne(ctx context.Context, id string) error {
	if err := p.api.MarkRead(ctx, id); err != nil {
		p.mu.Lock()
		p.state.LastErr = err
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.state.Notifications {
		n := &p.state.Notifications[i]
		if n.ID != id || n.IsRead {
			continue
		}
		n.IsRead = true
		if p.state.UnreadCount > 0 {
			p.state.UnreadCount--
		}
	}
	return nil
}
