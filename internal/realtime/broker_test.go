package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epathshala/portal-api/internal/models"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
)

type stubAuth map[string]*models.JWTClaims

func (s stubAuth) ValidateToken(_ context.Context, token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

var testAuth = stubAuth{
	"student-token": {UserID: "u1", FullName: "Asha", Role: models.RoleStudent},
	"teacher-token": {UserID: "u2", FullName: "Ravi", Role: models.RoleTeacher},
}

type fakeChat struct{}

func (fakeChat) SendMessage(_ context.Context, sender *models.JWTClaims, req models.ChatSendRequest) (*models.ChatMessage, error) {
	if req.Message == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid chat message")
	}
	return &models.ChatMessage{ID: "m1", RoomID: string(req.ChatRoomID), SenderID: sender.UserID, SenderName: sender.FullName, Content: req.Message, Type: models.ChatMessageChat}, nil
}

func (fakeChat) JoinRoom(_ context.Context, sender *models.JWTClaims, req models.ChatRoomRequest) (*models.ChatMessage, error) {
	return &models.ChatMessage{RoomID: string(req.RoomID), SenderName: "System", Content: sender.FullName + " joined the chat", Type: models.ChatMessageJoin}, nil
}

func (fakeChat) LeaveRoom(_ context.Context, sender *models.JWTClaims, req models.ChatRoomRequest) (*models.ChatMessage, error) {
	return &models.ChatMessage{RoomID: string(req.RoomID), SenderName: "System", Content: sender.FullName + " left the chat", Type: models.ChatMessageLeave}, nil
}

func (fakeChat) AddUser(sender *models.JWTClaims) (*models.ChatMessage, error) {
	return &models.ChatMessage{SenderName: "System", Content: sender.FullName + " joined the chat!", Type: models.ChatMessageSystem}, nil
}

type countingMetrics struct {
	mu     sync.Mutex
	opened int
	closed int
	frames map[string]int
}

func (m *countingMetrics) ConnectionOpened() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened++
}

func (m *countingMetrics) ConnectionClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}

func (m *countingMetrics) RecordFrame(command, direction string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frames == nil {
		m.frames = map[string]int{}
	}
	m.frames[command+"/"+direction]++
}

func (m *countingMetrics) snapshot() (int, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened, m.closed, m.frames[CmdConnect+"/"+directionIn]
}

func newTestBroker(t *testing.T, cfg Config) (*Broker, *httptest.Server) {
	t.Helper()
	broker := NewBroker(cfg, testAuth, nil, nil)
	RegisterChatHandlers(broker, fakeChat{})
	srv := httptest.NewServer(broker)
	t.Cleanup(func() {
		broker.Shutdown()
		srv.Close()
	})
	return broker, srv
}

type stompConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server, query string) *stompConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &stompConn{t: t, conn: conn}
}

func (s *stompConn) send(f *Frame) {
	s.t.Helper()
	require.NoError(s.t, s.conn.WriteMessage(websocket.TextMessage, f.Encode()))
}

func (s *stompConn) read() *Frame {
	s.t.Helper()
	require.NoError(s.t, s.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := s.conn.ReadMessage()
	require.NoError(s.t, err)
	frames, err := Decode(data)
	require.NoError(s.t, err)
	require.Len(s.t, frames, 1)
	return frames[0]
}

func (s *stompConn) connect(kv ...string) *Frame {
	s.t.Helper()
	s.send(NewFrame(CmdConnect, append([]string{HdrAcceptVersion, "1.1,1.2"}, kv...)...))
	return s.read()
}

func (s *stompConn) subscribe(id, destination string) {
	s.t.Helper()
	s.send(NewFrame(CmdSubscribe, HdrID, id, HdrDestination, destination, HdrReceipt, "r-"+id))
	receipt := s.read()
	require.Equal(s.t, CmdReceipt, receipt.Command)
	require.Equal(s.t, "r-"+id, receipt.Headers.Get(HdrReceiptID))
}

func sendJSON(destination string, body interface{}) *Frame {
	f := NewFrame(CmdSend, HdrDestination, destination, HdrContentType, "application/json")
	f.Body, _ = json.Marshal(body)
	return f
}

func TestConnectWithQueryToken(t *testing.T) {
	broker, srv := newTestBroker(t, Config{})
	client := dial(t, srv, "?access_token=student-token")

	connected := client.connect()
	assert.Equal(t, CmdConnected, connected.Command)
	assert.Equal(t, "1.2", connected.Headers.Get(HdrVersion))
	assert.Equal(t, "u1", connected.Headers.Get(HdrUserName))
	assert.NotEmpty(t, connected.Headers.Get(HdrSession))
	assert.Equal(t, 1, broker.ClientCount())
}

func TestConnectWithFrameAuthorization(t *testing.T) {
	_, srv := newTestBroker(t, Config{})
	client := dial(t, srv, "")

	connected := client.connect(HdrAuthorization, "Bearer teacher-token")
	assert.Equal(t, CmdConnected, connected.Command)
	assert.Equal(t, "u2", connected.Headers.Get(HdrUserName))
}

func TestConnectWithoutTokenFails(t *testing.T) {
	_, srv := newTestBroker(t, Config{})
	client := dial(t, srv, "")

	errFrame := client.connect()
	assert.Equal(t, CmdError, errFrame.Command)
	assert.Equal(t, "authentication required", errFrame.Headers.Get(HdrMessage))
}

func TestUpgradeRejectsInvalidToken(t *testing.T) {
	_, srv := newTestBroker(t, Config{})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?access_token=forged"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFramesBeforeConnectAreRejected(t *testing.T) {
	_, srv := newTestBroker(t, Config{})
	client := dial(t, srv, "?access_token=student-token")

	client.send(NewFrame(CmdSubscribe, HdrID, "0", HdrDestination, "/topic/public"))
	errFrame := client.read()
	assert.Equal(t, CmdError, errFrame.Command)
	assert.Equal(t, "not connected", errFrame.Headers.Get(HdrMessage))
}

func TestUnsupportedVersion(t *testing.T) {
	_, srv := newTestBroker(t, Config{})
	client := dial(t, srv, "?access_token=student-token")

	client.send(NewFrame(CmdConnect, HdrAcceptVersion, "1.0"))
	errFrame := client.read()
	assert.Equal(t, CmdError, errFrame.Command)
	assert.Equal(t, "Supported protocol versions are 1.2", string(errFrame.Body))
}

func TestSendMessageBroadcastsToRoom(t *testing.T) {
	_, srv := newTestBroker(t, Config{})
	alice := dial(t, srv, "?access_token=student-token")
	ravi := dial(t, srv, "?access_token=teacher-token")
	alice.connect()
	ravi.connect()
	ravi.subscribe("room", "/topic/chat.7")

	alice.send(sendJSON(DestSendMessage, map[string]interface{}{"message": "hello", "chatRoomId": 7, "messageType": "TEXT"}))

	msg := ravi.read()
	assert.Equal(t, CmdMessage, msg.Command)
	assert.Equal(t, "/topic/chat.7", msg.Headers.Get(HdrDestination))
	assert.Equal(t, "room", msg.Headers.Get(HdrSubscription))
	assert.Equal(t, "application/json", msg.Headers.Get(HdrContentType))

	var chat models.ChatMessage
	require.NoError(t, json.Unmarshal(msg.Body, &chat))
	assert.Equal(t, "hello", chat.Content)
	assert.Equal(t, "u1", chat.SenderID)
}

func TestJoinRoomNotifiesRoomAndSender(t *testing.T) {
	_, srv := newTestBroker(t, Config{})
	client := dial(t, srv, "?access_token=student-token")
	client.connect()
	client.subscribe("q", "/user/queue/room.3")
	client.subscribe("t", "/topic/chat.3")

	client.send(sendJSON(DestJoinRoom, map[string]interface{}{"roomId": 3}))

	first := client.read()
	assert.Equal(t, "/user/queue/room.3", first.Headers.Get(HdrDestination))
	assert.Contains(t, string(first.Body), "Joined room 3")

	second := client.read()
	assert.Equal(t, "/topic/chat.3", second.Headers.Get(HdrDestination))
	assert.Contains(t, string(second.Body), "Asha joined the chat")
}

func TestAddUserAndEcho(t *testing.T) {
	_, srv := newTestBroker(t, Config{})
	client := dial(t, srv, "?access_token=student-token")
	client.connect()
	client.subscribe("pub", "/topic/public")
	client.subscribe("test", TopicTest)

	client.send(sendJSON(DestAddUser, map[string]string{"userName": "ignored"}))
	greeting := client.read()
	assert.Contains(t, string(greeting.Body), "Asha joined the chat!")

	client.send(sendJSON(DestTest, map[string]string{"message": "ping"}))
	echo := client.read()
	var body map[string]string
	require.NoError(t, json.Unmarshal(echo.Body, &body))
	assert.Equal(t, "Server received: ping", body["message"])
	assert.Equal(t, "success", body["status"])
}

func TestHandlerErrorsGoToUserErrorQueue(t *testing.T) {
	_, srv := newTestBroker(t, Config{})
	client := dial(t, srv, "?access_token=student-token")
	client.connect()
	client.subscribe("err", "/user/queue/errors")

	client.send(sendJSON(DestSendMessage, map[string]interface{}{"message": "", "chatRoomId": "1"}))
	msg := client.read()
	assert.Contains(t, string(msg.Body), "invalid chat message")

	client.send(sendJSON("/app/unknown", map[string]string{}))
	msg = client.read()
	assert.Contains(t, string(msg.Body), "no handler for /app/unknown")
}

func TestPublishToUserOnlyReachesThatUser(t *testing.T) {
	broker, srv := newTestBroker(t, Config{})
	alice := dial(t, srv, "?access_token=student-token")
	ravi := dial(t, srv, "?access_token=teacher-token")
	alice.connect()
	ravi.connect()
	alice.subscribe("n", "/user/queue/notifications")
	ravi.subscribe("n", "/user/queue/notifications")

	require.NoError(t, broker.PublishToUser("u2", "/queue/notifications", map[string]string{"title": "for ravi"}))
	require.NoError(t, broker.PublishToUser("u1", "/queue/notifications", map[string]string{"title": "for asha"}))

	assert.Contains(t, string(alice.read().Body), "for asha")
	assert.Contains(t, string(ravi.read().Body), "for ravi")
}

func TestClientSendToTopicBroadcasts(t *testing.T) {
	_, srv := newTestBroker(t, Config{})
	client := dial(t, srv, "?access_token=student-token")
	client.connect()
	client.subscribe("a", "/topic/assignment")

	f := NewFrame(CmdSend, HdrDestination, "/topic/assignment")
	f.Body = []byte("new homework")
	client.send(f)

	msg := client.read()
	assert.Equal(t, "new homework", string(msg.Body))
	assert.Equal(t, "text/plain;charset=UTF-8", msg.Headers.Get(HdrContentType))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	broker, srv := newTestBroker(t, Config{})
	client := dial(t, srv, "?access_token=student-token")
	client.connect()
	client.subscribe("a", "/topic/a")
	client.subscribe("b", "/topic/b")

	client.send(NewFrame(CmdUnsubscribe, HdrID, "a", HdrReceipt, "unsub"))
	assert.Equal(t, "unsub", client.read().Headers.Get(HdrReceiptID))

	require.NoError(t, broker.Publish("/topic/a", "dropped"))
	require.NoError(t, broker.Publish("/topic/b", "kept"))
	assert.Equal(t, "kept", string(client.read().Body))
}

func TestInvalidSubscriptionDestination(t *testing.T) {
	_, srv := newTestBroker(t, Config{})
	client := dial(t, srv, "?access_token=student-token")
	client.connect()

	client.send(NewFrame(CmdSubscribe, HdrID, "0", HdrDestination, "/app/chat.sendMessage"))
	errFrame := client.read()
	assert.Equal(t, CmdError, errFrame.Command)
	assert.Equal(t, "invalid destination", errFrame.Headers.Get(HdrMessage))
}

func TestDisconnectSendsReceipt(t *testing.T) {
	broker, srv := newTestBroker(t, Config{})
	client := dial(t, srv, "?access_token=student-token")
	client.connect()

	client.send(NewFrame(CmdDisconnect, HdrReceipt, "bye"))
	receipt := client.read()
	assert.Equal(t, CmdReceipt, receipt.Command)
	assert.Equal(t, "bye", receipt.Headers.Get(HdrReceiptID))

	assert.Eventually(t, func() bool { return broker.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMessageSizeLimitClosesConnection(t *testing.T) {
	broker, srv := newTestBroker(t, Config{MaxMessageSize: 128})
	client := dial(t, srv, "?access_token=student-token")
	client.connect()

	f := NewFrame(CmdSend, HdrDestination, "/topic/big")
	f.Body = []byte(strings.Repeat("x", 512))
	client.send(f)

	require.NoError(t, client.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := client.conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return broker.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMetricsCountConnections(t *testing.T) {
	metrics := &countingMetrics{}
	broker := NewBroker(Config{}, testAuth, metrics, nil)
	srv := httptest.NewServer(broker)
	defer srv.Close()

	client := dial(t, srv, "?access_token=student-token")
	client.connect()
	client.send(NewFrame(CmdDisconnect, HdrReceipt, "bye"))
	client.read()

	assert.Eventually(t, func() bool {
		_, closed, _ := metrics.snapshot()
		return closed == 1
	}, time.Second, 10*time.Millisecond)
	broker.Shutdown()

	opened, _, connects := metrics.snapshot()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, connects)
}

func TestShutdownRejectsNewConnections(t *testing.T) {
	broker, srv := newTestBroker(t, Config{})
	broker.Shutdown()

	client := dial(t, srv, "?access_token=student-token")
	require.NoError(t, client.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := client.conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}
