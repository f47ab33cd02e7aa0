package realtime

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/epathshala/portal-api/internal/models"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
)

const (
	directionIn  = "in"
	directionOut = "out"
	serverName   = "ePathshala/1.0"
)

// Client is one STOMP session on a websocket connection.
type Client struct {
	broker *Broker
	conn   *websocket.Conn
	send   chan *Frame
	id     string

	claims    atomic.Pointer[models.JWTClaims]
	connected atomic.Bool

	// subs is guarded by broker.mu.
	subs map[string]*subscription
}

func newClient(b *Broker, conn *websocket.Conn, claims *models.JWTClaims) *Client {
	c := &Client{
		broker: b,
		conn:   conn,
		send:   make(chan *Frame, b.cfg.SendBuffer),
		id:     newSessionID(),
		subs:   make(map[string]*subscription),
	}
	if claims != nil {
		c.claims.Store(claims)
	}
	return c
}

// ID is the STOMP session id.
func (c *Client) ID() string {
	return c.id
}

// Claims returns the authenticated user, or nil before CONNECT.
func (c *Client) Claims() *models.JWTClaims {
	return c.claims.Load()
}

// enqueueLocked queues a frame without blocking. The caller holds broker.mu
// and has seen the client registered, so send is open.
func (c *Client) enqueueLocked(f *Frame) bool {
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

func (c *Client) reply(f *Frame) {
	c.broker.mu.RLock()
	defer c.broker.mu.RUnlock()
	if _, ok := c.broker.clients[c]; !ok {
		return
	}
	if !c.enqueueLocked(f) {
		c.broker.logger.Warn("websocket send buffer full", zap.String("session", c.id), zap.String("command", f.Command))
	}
}

func (c *Client) readPump() {
	defer c.broker.removeClient(c)

	c.conn.SetReadLimit(c.broker.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.broker.logger.Warn("websocket read failed", zap.String("session", c.id), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		frames, decodeErr := Decode(data)
		for _, frame := range frames {
			c.broker.metrics.RecordFrame(frame.Command, directionIn)
			if !c.handleFrame(frame) {
				return
			}
		}
		if decodeErr != nil {
			c.fail("malformed frame", decodeErr.Error())
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame.Encode()); err != nil {
				return
			}
			c.broker.metrics.RecordFrame(frame.Command, directionOut)
			if frame.Command == CmdError {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseProtocolError, ""))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame processes one client frame and reports whether the session
// should continue.
func (c *Client) handleFrame(f *Frame) bool {
	switch f.Command {
	case CmdConnect, CmdStomp:
		return c.handleConnect(f)
	case CmdDisconnect:
		c.receipt(f)
		return false
	}

	if !c.connected.Load() {
		c.fail("not connected", "send CONNECT before "+f.Command)
		return false
	}

	switch f.Command {
	case CmdSubscribe:
		return c.handleSubscribe(f)
	case CmdUnsubscribe:
		id := f.Headers.Get(HdrID)
		if id == "" {
			c.fail("missing id header", "UNSUBSCRIBE requires an id header")
			return false
		}
		c.broker.unsubscribe(c, id)
	case CmdSend:
		return c.handleSend(f)
	case CmdAck, CmdNack, CmdBegin, CmdCommit, CmdAbort:
		// Subscriptions are auto-acknowledged and transactions are not
		// buffered; these frames only produce receipts.
	default:
		c.fail("unexpected command", f.Command+" is a server frame")
		return false
	}
	c.receipt(f)
	return true
}

func (c *Client) handleConnect(f *Frame) bool {
	if c.connected.Load() {
		c.fail("already connected", "CONNECT may only be sent once")
		return false
	}
	if versions, ok := f.Headers.Lookup(HdrAcceptVersion); ok && !acceptsVersion(versions, "1.2") {
		c.fail("unsupported protocol version", "Supported protocol versions are 1.2")
		return false
	}
	if c.Claims() == nil {
		token := bearerToken(f.Headers.Get(HdrAuthorization))
		if token == "" {
			token = strings.TrimSpace(f.Headers.Get("passcode"))
		}
		if token == "" {
			c.fail("authentication required", "present a bearer token in the Authorization header")
			return false
		}
		ctx, cancel := context.WithTimeout(c.broker.ctx, handlerTimeout)
		claims, err := c.broker.auth.ValidateToken(ctx, token)
		cancel()
		if err != nil {
			c.fail("authentication failed", "invalid or expired token")
			return false
		}
		c.claims.Store(claims)
	}

	c.connected.Store(true)
	c.reply(NewFrame(CmdConnected,
		HdrVersion, "1.2",
		HdrHeartBeat, "0,0",
		HdrServer, serverName,
		HdrSession, c.id,
		HdrUserName, c.Claims().UserID,
	))
	return true
}

func acceptsVersion(header, want string) bool {
	for _, v := range strings.Split(header, ",") {
		if strings.TrimSpace(v) == want {
			return true
		}
	}
	return false
}

func (c *Client) handleSubscribe(f *Frame) bool {
	id := f.Headers.Get(HdrID)
	destination := f.Headers.Get(HdrDestination)
	if id == "" || destination == "" {
		c.fail("missing header", "SUBSCRIBE requires id and destination headers")
		return false
	}
	if !subscribable(destination) {
		c.fail("invalid destination", "cannot subscribe to "+destination)
		return false
	}
	if err := c.broker.subscribe(c, id, destination); err != nil {
		c.fail("subscribe failed", err.Error())
		return false
	}
	c.receipt(f)
	return true
}

func subscribable(destination string) bool {
	for _, prefix := range subscribablePrefixes {
		if strings.HasPrefix(destination, prefix) && len(destination) > len(prefix) {
			return true
		}
	}
	return false
}

func (c *Client) handleSend(f *Frame) bool {
	destination := f.Headers.Get(HdrDestination)
	switch {
	case destination == "":
		c.fail("missing destination", "SEND requires a destination header")
		return false

	case strings.HasPrefix(destination, AppPrefix):
		handler, ok := c.broker.handler(destination)
		if !ok {
			c.broker.sendToClient(c, ErrorQueue, map[string]string{"error": "no handler for " + destination})
			break
		}
		ctx, cancel := context.WithTimeout(c.broker.ctx, handlerTimeout)
		err := handler(ctx, &Inbound{Client: c, Destination: destination, Headers: f.Headers, Body: f.Body})
		cancel()
		if err != nil {
			c.broker.logger.Warn("realtime handler failed", zap.String("destination", destination), zap.String("session", c.id), zap.Error(err))
			c.broker.sendToClient(c, ErrorQueue, map[string]string{"error": appErrors.FromError(err).Message})
		}

	case strings.HasPrefix(destination, "/topic/"):
		contentType := f.Headers.Get(HdrContentType)
		if contentType == "" {
			contentType = "text/plain;charset=UTF-8"
		}
		c.broker.deliver(destination, f.Body, contentType, nil)

	default:
		c.fail("invalid destination", "cannot send to "+destination)
		return false
	}
	c.receipt(f)
	return true
}

func (c *Client) receipt(f *Frame) {
	if id := f.Headers.Get(HdrReceipt); id != "" {
		c.reply(NewFrame(CmdReceipt, HdrReceiptID, id))
	}
}

// fail sends an ERROR frame; writePump closes the connection after it.
func (c *Client) fail(message, detail string) {
	frame := NewFrame(CmdError, HdrMessage, message, HdrContentType, "text/plain")
	frame.Body = []byte(detail)
	c.reply(frame)
}
