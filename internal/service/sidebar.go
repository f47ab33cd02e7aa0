package service

import (
	"context"
	"sync"
	"time"

	"github.com/epathshala/portal-api/internal/models"
)

// SidebarState is the visible state of a collapsible sidebar.
type SidebarState string

const (
	SidebarExpanded      SidebarState = "expanded"
	SidebarCollapsed     SidebarState = "collapsed"
	SidebarHoverExpanded SidebarState = "hover_expanded"
)

// StopTimer cancels a scheduled callback.
type StopTimer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it via
// RealAfterFunc; tests inject a manual clock.
type AfterFunc func(d time.Duration, f func()) StopTimer

// RealAfterFunc wraps time.AfterFunc.
func RealAfterFunc(d time.Duration, f func()) StopTimer {
	return time.AfterFunc(d, f)
}

type sidebarStore interface {
	Set(ctx context.Context, userID string, variant models.LayoutVariant, collapsed bool) (*models.LayoutPreference, error)
}

// SidebarConfig wires a Sidebar.
type SidebarConfig struct {
	UserID    string
	Variant   models.LayoutVariant
	Collapsed bool
	Mobile    bool
	Delay     time.Duration
	After     AfterFunc
	Store     sidebarStore
}

// Sidebar tracks collapse and hover state for one layout. Only Toggle
// changes the persisted flag; hovering is transient.
//
// The REST toggle endpoint only drives Toggle. SetMobile and the mouse
// handlers serve clients that keep a Sidebar alive across pointer and
// viewport events, since the server renders no hover state.
type Sidebar struct {
	mu      sync.Mutex
	state   SidebarState
	mobile  bool
	delay   time.Duration
	after   AfterFunc
	pending StopTimer
	gen     uint64

	userID  string
	variant models.LayoutVariant
	store   sidebarStore
}

// NewSidebar starts in the stored collapsed state.
func NewSidebar(cfg SidebarConfig) *Sidebar {
	if cfg.Delay <= 0 {
		cfg.Delay = models.HoverCollapseDelayMS * time.Millisecond
	}
	if cfg.After == nil {
		cfg.After = RealAfterFunc
	}
	state := SidebarExpanded
	if cfg.Collapsed {
		state = SidebarCollapsed
	}
	return &Sidebar{
		state:   state,
		mobile:  cfg.Mobile,
		delay:   cfg.Delay,
		after:   cfg.After,
		userID:  cfg.UserID,
		variant: cfg.Variant,
		store:   cfg.Store,
	}
}

// State returns the current state.
func (s *Sidebar) State() SidebarState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Collapsed reports whether the sidebar is drawn narrow right now.
func (s *Sidebar) Collapsed() bool {
	return s.State() == SidebarCollapsed
}

// DrawerWidth is the current drawer width in pixels.
func (s *Sidebar) DrawerWidth() int {
	if s.Collapsed() {
		return models.DrawerWidthCollapsed
	}
	return models.DrawerWidthExpanded
}

// SetMobile switches between the mobile and desktop branch. Mobile drops
// any hover expansion.
func (s *Sidebar) SetMobile(mobile bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mobile = mobile
	if mobile && s.state == SidebarHoverExpanded {
		s.cancelLocked()
		s.state = SidebarCollapsed
	}
}

// Toggle flips the persisted flag. A hover-expanded sidebar becomes pinned
// open. The new state applies even if persisting it fails.
func (s *Sidebar) Toggle(ctx context.Context) (SidebarState, error) {
	s.mu.Lock()
	s.cancelLocked()
	var collapsed bool
	switch s.state {
	case SidebarExpanded:
		s.state = SidebarCollapsed
		collapsed = true
	case SidebarCollapsed, SidebarHoverExpanded:
		s.state = SidebarExpanded
	}
	state := s.state
	s.mu.Unlock()

	if s.store == nil {
		return state, nil
	}
	_, err := s.store.Set(ctx, s.userID, s.variant, collapsed)
	return state, err
}

// MouseEnter expands a collapsed desktop sidebar and cancels a pending
// auto-collapse.
func (s *Sidebar) MouseEnter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mobile {
		return
	}
	switch s.state {
	case SidebarCollapsed:
		s.state = SidebarHoverExpanded
	case SidebarHoverExpanded:
		s.cancelLocked()
	}
}

// MouseLeave schedules the hover expansion to end after the delay.
func (s *Sidebar) MouseLeave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mobile || s.state != SidebarHoverExpanded {
		return
	}
	s.cancelLocked()
	gen := s.gen
	s.pending = s.after(s.delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen == gen && s.state == SidebarHoverExpanded {
			s.state = SidebarCollapsed
			s.pending = nil
		}
	})
}

func (s *Sidebar) cancelLocked() {
	s.gen++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}
