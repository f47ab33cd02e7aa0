package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/epathshala/portal-api/internal/models"
	"github.com/epathshala/portal-api/pkg/middleware/cors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	handlerTimeout = 10 * time.Second

	defaultMaxMessageSize = 64 * 1024
	defaultSendBuffer     = 256

	// AppPrefix routes SEND frames to application handlers.
	AppPrefix = "/app/"
	// UserPrefix marks per-user destinations.
	UserPrefix = "/user"
	// ErrorQueue receives application errors for the sending user.
	ErrorQueue = "/queue/errors"
)

var subscribablePrefixes = []string{"/topic/", "/queue/", UserPrefix + "/"}

// Authenticator validates bearer tokens presented by websocket clients.
type Authenticator interface {
	ValidateToken(ctx context.Context, token string) (*models.JWTClaims, error)
}

// Metrics receives connection and frame counts.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	RecordFrame(command, direction string)
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened() {}
func (noopMetrics) ConnectionClosed() {}
func (noopMetrics) RecordFrame(_, _ string) {}

// Config tunes the broker.
type Config struct {
	MaxMessageSize int64
	SendBuffer     int
	AllowedOrigins []string
}

// Inbound is a SEND frame addressed to an application destination.
type Inbound struct {
	Client      *Client
	Destination string
	Headers     Headers
	Body        []byte
}

// AppHandler processes an application destination.
type AppHandler func(ctx context.Context, msg *Inbound) error

type subscription struct {
	client      *Client
	id          string
	destination string
}

// Broker is an in-memory STOMP broker over gorilla/websocket. It tracks
// connected clients, their subscriptions and the application handlers.
type Broker struct {
	cfg      Config
	auth     Authenticator
	metrics  Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	clients  map[*Client]struct{}
	subs     map[string]map[*subscription]struct{}
	handlers map[string]AppHandler
	closed   bool

	seq uint64
}

// NewBroker constructs a broker. metrics may be nil.
func NewBroker(cfg Config, auth Authenticator, metrics Metrics, logger *zap.Logger) *Broker {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := cors.OriginChecker(cfg.AllowedOrigins)
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		cfg:     cfg,
		auth:    auth,
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{"v12.stomp", "v11.stomp", "v10.stomp"},
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed(origin)
			},
		},
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[*Client]struct{}),
		subs:     make(map[string]map[*subscription]struct{}),
		handlers: make(map[string]AppHandler),
	}
}

// Handle registers h for SEND frames to destination, e.g. "/app/test".
func (b *Broker) Handle(destination string, h AppHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[destination] = h
}

func (b *Broker) handler(destination string) (AppHandler, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.handlers[destination]
	return h, ok
}

// ServeHTTP upgrades the request and serves the STOMP session until the
// connection closes. A token in the access_token query parameter or the
// Authorization header is checked before upgrading; otherwise the CONNECT
// frame must carry one.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var claims *models.JWTClaims
	if token := requestToken(r); token != "" {
		var err error
		claims, err = b.auth.ValidateToken(r.Context(), token)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(b, conn, claims)
	if !b.addClient(client) {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	go client.writePump()
	client.readPump()
}

func requestToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("access_token")); token != "" {
		return token
	}
	return bearerToken(r.Header.Get(HdrAuthorization))
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func (b *Broker) addClient(c *Client) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.clients[c] = struct{}{}
	total := len(b.clients)
	b.mu.Unlock()

	b.metrics.ConnectionOpened()
	b.logger.Info("websocket client connected", zap.String("session", c.id), zap.Int("total_clients", total))
	return true
}

func (b *Broker) removeClient(c *Client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.clients, c)
	for _, sub := range c.subs {
		b.dropSubscriptionLocked(sub)
	}
	c.subs = nil
	close(c.send)
	total := len(b.clients)
	b.mu.Unlock()

	b.metrics.ConnectionClosed()
	b.logger.Info("websocket client disconnected", zap.String("session", c.id), zap.Int("total_clients", total))
}

func (b *Broker) dropSubscriptionLocked(sub *subscription) {
	set := b.subs[sub.destination]
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.destination)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Shutdown closes every connection and rejects new ones.
func (b *Broker) Shutdown() {
	b.cancel()
	b.mu.Lock()
	b.closed = true
	clients := make([]*Client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}
}

func (b *Broker) subscribe(c *Client, id, destination string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; !ok {
		return fmt.Errorf("client not connected")
	}
	if _, exists := c.subs[id]; exists {
		return fmt.Errorf("subscription %q already exists", id)
	}
	sub := &subscription{client: c, id: id, destination: destination}
	c.subs[id] = sub
	set, ok := b.subs[destination]
	if !ok {
		set = make(map[*subscription]struct{})
		b.subs[destination] = set
	}
	set[sub] = struct{}{}
	return nil
}

func (b *Broker) unsubscribe(c *Client, id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := c.subs[id]
	if !ok {
		return false
	}
	delete(c.subs, id)
	b.dropSubscriptionLocked(sub)
	return true
}

// Publish sends payload to every subscriber of destination. Payloads other
// than []byte are encoded as JSON.
func (b *Broker) Publish(destination string, payload interface{}) error {
	body, contentType, err := encodePayload(payload)
	if err != nil {
		return err
	}
	b.deliver(destination, body, contentType, nil)
	return nil
}

// PublishToUser sends payload to the sessions of userID subscribed to the
// user form of destination, e.g. "/queue/notifications" reaches
// "/user/queue/notifications".
func (b *Broker) PublishToUser(userID, destination string, payload interface{}) error {
	body, contentType, err := encodePayload(payload)
	if err != nil {
		return err
	}
	b.deliver(UserPrefix+destination, body, contentType, func(c *Client) bool {
		claims := c.Claims()
		return claims != nil && claims.UserID == userID
	})
	return nil
}

func (b *Broker) sendToClient(c *Client, destination string, payload interface{}) {
	body, contentType, err := encodePayload(payload)
	if err != nil {
		b.logger.Warn("failed to encode client payload", zap.Error(err))
		return
	}
	b.deliver(UserPrefix+destination, body, contentType, func(other *Client) bool { return other == c })
}

func encodePayload(payload interface{}) ([]byte, string, error) {
	switch v := payload.(type) {
	case []byte:
		return v, "text/plain;charset=UTF-8", nil
	case string:
		return []byte(v), "text/plain;charset=UTF-8", nil
	default:
		body, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("encode realtime payload: %w", err)
		}
		return body, "application/json", nil
	}
}

func (b *Broker) deliver(destination string, body []byte, contentType string, filter func(*Client) bool) {
	var slow []*Client
	b.mu.RLock()
	for sub := range b.subs[destination] {
		if filter != nil && !filter(sub.client) {
			continue
		}
		frame := NewFrame(CmdMessage,
			HdrDestination, destination,
			HdrSubscription, sub.id,
			HdrMessageID, b.nextMessageID(sub.client),
			HdrContentType, contentType,
		)
		frame.Body = body
		if !sub.client.enqueueLocked(frame) {
			slow = append(slow, sub.client)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.logger.Warn("dropping slow websocket client", zap.String("session", c.id))
		_ = c.conn.Close()
	}
}

func (b *Broker) nextMessageID(c *Client) string {
	return fmt.Sprintf("%s-%d", c.id, atomic.AddUint64(&b.seq, 1))
}

func newSessionID() string {
	return uuid.NewString()
}
