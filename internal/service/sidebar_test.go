package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epathshala/portal-api/internal/models"
)

type manualTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	was := !m.stopped
	m.stopped = true
	return was
}

type manualClock struct {
	timers []*manualTimer
}

func (c *manualClock) After(d time.Duration, f func()) StopTimer {
	t := &manualTimer{delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) fireAll() {
	for _, t := range c.timers {
		if !t.stopped {
			t.stopped = true
			t.fn()
		}
	}
}

type recordingStore struct {
	calls []bool
	err   error
}

func (r *recordingStore) Set(_ context.Context, userID string, variant models.LayoutVariant, collapsed bool) (*models.LayoutPreference, error) {
	r.calls = append(r.calls, collapsed)
	return &models.LayoutPreference{UserID: userID, LayoutKey: variant.StorageKey(), Collapsed: collapsed}, r.err
}

func TestSidebarTogglePersists(t *testing.T) {
	store := &recordingStore{}
	sb := NewSidebar(SidebarConfig{UserID: "u1", Variant: models.LayoutMain, Store: store})

	state, err := sb.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SidebarCollapsed, state)
	assert.Equal(t, models.DrawerWidthCollapsed, sb.DrawerWidth())

	state, err = sb.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SidebarExpanded, state)
	assert.Equal(t, []bool{true, false}, store.calls)
}

func TestSidebarHoverAutoCollapse(t *testing.T) {
	clock := &manualClock{}
	sb := NewSidebar(SidebarConfig{Collapsed: true, After: clock.After})

	sb.MouseEnter()
	assert.Equal(t, SidebarHoverExpanded, sb.State())
	assert.Equal(t, models.DrawerWidthExpanded, sb.DrawerWidth())

	sb.MouseLeave()
	require.Len(t, clock.timers, 1)
	assert.Equal(t, 300*time.Millisecond, clock.timers[0].delay)
	assert.Equal(t, SidebarHoverExpanded, sb.State())

	clock.fireAll()
	assert.Equal(t, SidebarCollapsed, sb.State())
}

func TestSidebarReenterCancelsCollapse(t *testing.T) {
	clock := &manualClock{}
	sb := NewSidebar(SidebarConfig{Collapsed: true, After: clock.After})

	sb.MouseEnter()
	sb.MouseLeave()
	sb.MouseEnter()
	assert.True(t, clock.timers[0].stopped)

	clock.timers[0].fn()
	assert.Equal(t, SidebarHoverExpanded, sb.State())
}

func TestSidebarToggleWhileHoveringPinsOpen(t *testing.T) {
	clock := &manualClock{}
	store := &recordingStore{}
	sb := NewSidebar(SidebarConfig{Collapsed: true, After: clock.After, Store: store})

	sb.MouseEnter()
	sb.MouseLeave()
	state, err := sb.Toggle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SidebarExpanded, state)
	assert.Equal(t, []bool{false}, store.calls)

	clock.timers[0].fn()
	assert.Equal(t, SidebarExpanded, sb.State())
}

func TestSidebarMobileIgnoresHover(t *testing.T) {
	clock := &manualClock{}
	sb := NewSidebar(SidebarConfig{Collapsed: true, Mobile: true, After: clock.After})

	sb.MouseEnter()
	assert.Equal(t, SidebarCollapsed, sb.State())
	sb.MouseLeave()
	assert.Empty(t, clock.timers)
}

func TestSidebarSwitchToMobileDropsHover(t *testing.T) {
	sb := NewSidebar(SidebarConfig{Collapsed: true, After: (&manualClock{}).After})
	sb.MouseEnter()
	sb.SetMobile(true)
	assert.Equal(t, SidebarCollapsed, sb.State())
}

func TestSidebarHoverIgnoredWhenExpanded(t *testing.T) {
	sb := NewSidebar(SidebarConfig{})
	sb.MouseEnter()
	assert.Equal(t, SidebarExpanded, sb.State())
}

func TestSidebarToggleStoreFailureStillFlips(t *testing.T) {
	store := &recordingStore{err: errors.New("db down")}
	sb := NewSidebar(SidebarConfig{Store: store})

	state, err := sb.Toggle(context.Background())
	assert.Error(t, err)
	assert.Equal(t, SidebarCollapsed, state)
}
