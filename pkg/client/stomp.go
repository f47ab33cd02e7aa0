package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/epathshala/portal-api/internal/realtime"
)

// State is the lifecycle of a STOMP connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateOpen         State = "open"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// Event drives State transitions.
type Event string

const (
	EventDial       Event = "dial"
	EventConnected  Event = "connected"
	EventSubscribed Event = "subscribed"
	EventDropped    Event = "dropped"
	EventGiveUp     Event = "give_up"
	EventClose      Event = "close"
)

// ErrInvalidTransition is returned by Transition for events the state does
// not accept.
var ErrInvalidTransition = errors.New("invalid stomp state transition")

// ErrRetriesExhausted is returned by Run once the backoff gives up.
var ErrRetriesExhausted = errors.New("stomp reconnect attempts exhausted")

// ErrNotOpen is returned by Send before the subscriptions are in place.
var ErrNotOpen = errors.New("stomp connection is not open")

// Transition returns the state reached from s on ev.
func Transition(s State, ev Event) (State, error) {
	if ev == EventClose {
		return StateDisconnected, nil
	}
	switch s {
	case StateDisconnected, StateReconnecting, StateFailed:
		if ev == EventDial {
			return StateConnecting, nil
		}
		if s == StateReconnecting && ev == EventGiveUp {
			return StateFailed, nil
		}
	case StateConnecting:
		switch ev {
		case EventConnected:
			return StateConnected, nil
		case EventDropped:
			return StateReconnecting, nil
		}
	case StateConnected:
		switch ev {
		case EventSubscribed:
			return StateOpen, nil
		case EventDropped:
			return StateReconnecting, nil
		}
	case StateOpen:
		if ev == EventDropped {
			return StateReconnecting, nil
		}
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s)
}

// Backoff is the reconnect policy.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	Factor      float64
	MaxAttempts int
}

// DefaultBackoff waits 1s, doubling up to 30s, for at most 10 attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:     time.Second,
		Max:         30 * time.Second,
		Factor:      2,
		MaxAttempts: 10,
	}
}

// withDefaults fills a zero Initial or a non-positive Factor from
// DefaultBackoff. A zero Max leaves the delay uncapped.
func (b Backoff) withDefaults() Backoff {
	def := DefaultBackoff()
	if b.Initial <= 0 {
		b.Initial = def.Initial
	}
	if b.Factor <= 0 {
		b.Factor = def.Factor
	}
	return b
}

// Delay returns the wait before the zero-based attempt, or false when the
// attempts are used up.
func (b Backoff) Delay(attempt int) (time.Duration, bool) {
	if attempt < 0 || (b.MaxAttempts > 0 && attempt >= b.MaxAttempts) {
		return 0, false
	}
	b = b.withDefaults()
	delay := float64(b.Initial)
	for i := 0; i < attempt; i++ {
		delay *= b.Factor
		if b.Max > 0 && time.Duration(delay) >= b.Max {
			return b.Max, true
		}
		if delay >= math.MaxInt64 {
			return time.Duration(math.MaxInt64), true
		}
	}
	if b.Max > 0 && time.Duration(delay) > b.Max {
		return b.Max, true
	}
	return time.Duration(delay), true
}

// Message is a MESSAGE frame delivered to a subscription.
type Message struct {
	Destination string
	ContentType string
	Body        []byte
}

// StompConfig configures a StompClient.
type StompConfig struct {
	// URL of the websocket endpoint, e.g. ws://localhost:8080/ws.
	URL           string
	Token         string
	Subscriptions []string
	Backoff       Backoff
	Dialer        *websocket.Dialer
	Logger        *zap.Logger
	OnMessage     func(Message)
	OnState       func(State)
}

// StompClient keeps a subscribed STOMP session alive, reconnecting with
// backoff when the socket drops.
type StompClient struct {
	cfg StompConfig

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewStompClient constructs a client in the disconnected state.
func NewStompClient(cfg StompConfig) *StompClient {
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	cfg.Backoff = cfg.Backoff.withDefaults()
	return &StompClient{cfg: cfg, state: StateDisconnected}
}

// State returns the current connection state.
func (s *StompClient) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *StompClient) fire(ev Event) {
	s.mu.Lock()
	next, err := Transition(s.state, ev)
	if err != nil {
		s.mu.Unlock()
		s.cfg.Logger.Debug("ignored stomp event", zap.Error(err))
		return
	}
	changed := next != s.state
	s.state = next
	s.mu.Unlock()

	if changed && s.cfg.OnState != nil {
		s.cfg.OnState(next)
	}
}

// Run connects and keeps the session open until ctx ends or the backoff is
// exhausted.
func (s *StompClient) Run(ctx context.Context) error {
	attempt := 0
	for {
		s.fire(EventDial)
		err := s.session(ctx, func() { attempt = 0 })
		if ctx.Err() != nil {
			s.fire(EventClose)
			return nil
		}
		s.fire(EventDropped)
		s.cfg.Logger.Warn("stomp connection dropped", zap.Error(err), zap.Int("attempt", attempt+1))

		delay, ok := s.cfg.Backoff.Delay(attempt)
		if !ok {
			s.fire(EventGiveUp)
			return fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
		}
		attempt++

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.fire(EventClose)
			return nil
		case <-timer.C:
		}
	}
}

// session runs one connection from dial to drop.
func (s *StompClient) session(ctx context.Context, opened func()) error {
	target, err := url.Parse(s.cfg.URL)
	if err != nil {
		return err
	}
	if s.cfg.Token != "" {
		q := target.Query()
		q.Set("access_token", s.cfg.Token)
		target.RawQuery = q.Encode()
	}

	conn, _, err := s.cfg.Dialer.DialContext(ctx, target.String(), http.Header{})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close() //nolint:errcheck
	}()

	if err := s.write(conn, realtime.NewFrame(realtime.CmdConnect,
		realtime.HdrAcceptVersion, "1.2",
		"host", target.Host,
	)); err != nil {
		return err
	}
	if err := s.awaitConnected(conn); err != nil {
		return err
	}
	s.fire(EventConnected)

	pending := make(map[string]struct{}, len(s.cfg.Subscriptions))
	for i, dest := range s.cfg.Subscriptions {
		id := "sub-" + strconv.Itoa(i)
		pending[id] = struct{}{}
		if err := s.write(conn, realtime.NewFrame(realtime.CmdSubscribe,
			realtime.HdrID, id,
			realtime.HdrDestination, dest,
			realtime.HdrReceipt, id,
		)); err != nil {
			return err
		}
	}

	subscribed := false
	for {
		if !subscribed && len(pending) == 0 {
			subscribed = true
			s.fire(EventSubscribed)
			opened()
		}
		frames, err := s.read(conn)
		if err != nil {
			return err
		}
		for _, f := range frames {
			switch f.Command {
			case realtime.CmdReceipt:
				delete(pending, f.Headers.Get(realtime.HdrReceiptID))
			case realtime.CmdMessage:
				if s.cfg.OnMessage != nil {
					s.cfg.OnMessage(Message{
						Destination: f.Headers.Get(realtime.HdrDestination),
						ContentType: f.Headers.Get(realtime.HdrContentType),
						Body:        f.Body,
					})
				}
			case realtime.CmdError:
				return fmt.Errorf("stomp error: %s", f.Headers.Get(realtime.HdrMessage))
			}
		}
	}
}

func (s *StompClient) awaitConnected(conn *websocket.Conn) error {
	for {
		frames, err := s.read(conn)
		if err != nil {
			return err
		}
		for _, f := range frames {
			switch f.Command {
			case realtime.CmdConnected:
				return nil
			case realtime.CmdError:
				return fmt.Errorf("stomp connect rejected: %s", f.Headers.Get(realtime.HdrMessage))
			}
		}
	}
}

func (s *StompClient) read(conn *websocket.Conn) ([]*realtime.Frame, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return realtime.Decode(data)
}

func (s *StompClient) write(conn *websocket.Conn, f *realtime.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, f.Encode())
}

// Send publishes body to destination with a JSON content type.
func (s *StompClient) Send(destination string, body []byte) error {
	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()
	if conn == nil || state != StateOpen {
		return ErrNotOpen
	}
	f := realtime.NewFrame(realtime.CmdSend,
		realtime.HdrDestination, destination,
		realtime.HdrContentType, "application/json",
	)
	f.Body = body
	return s.write(conn, f)
}
