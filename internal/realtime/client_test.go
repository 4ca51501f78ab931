package realtime

import (
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
)

// wsServer is a minimal push endpoint for client tests: it counts
// connections, records inbound frames, and (optionally) answers pings.
type wsServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	answerPings bool

	mu      sync.Mutex
	conns   int
	lastURL string
	cur     *websocket.Conn
	inbound []Message
}

func newWSServer(t *testing.T, answerPings bool) *wsServer {
	t.Helper()
	s := &wsServer{answerPings: answerPings}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns++
		s.lastURL = r.URL.String()
		s.cur = conn
		s.mu.Unlock()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg Message
			if json.Unmarshal(raw, &msg) != nil {
				continue
			}
			s.mu.Lock()
			s.inbound = append(s.inbound, msg)
			s.mu.Unlock()
			if msg.Type == TypePing && s.answerPings {
				pong, _ := json.Marshal(Message{Type: TypePong, Timestamp: time.Now().UnixMilli()})
				conn.WriteMessage(websocket.TextMessage, pong)
			}
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsServer) connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *wsServer) received(msgType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.inbound {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func (s *wsServer) push(t *testing.T, msg Message) {
	t.Helper()
	s.mu.Lock()
	conn := s.cur
	s.mu.Unlock()
	require.NotNil(t, conn)
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

type staticSession struct{ userID, token string }

func (s staticSession) SessionInfo() (string, string, bool) {
	return s.userID, s.token, s.userID != ""
}

func TestQualityFor(t *testing.T) {
	assert.Equal(t, QualityExcellent, QualityFor(50*time.Millisecond))
	assert.Equal(t, QualityGood, QualityFor(200*time.Millisecond))
	assert.Equal(t, QualityPoor, QualityFor(600*time.Millisecond))
	assert.Equal(t, QualityDisconnected, QualityFor(5*time.Second))
}

func TestBackoffDelay_Growth(t *testing.T) {
	base := 3 * time.Second
	assert.Equal(t, 3*time.Second, backoffDelay(base, 0))
	assert.Equal(t, 4500*time.Millisecond, backoffDelay(base, 1))
	assert.Equal(t, 6750*time.Millisecond, backoffDelay(base, 2))
}

func TestClient_ConnectAuthenticatesAndMeasuresLatency(t *testing.T) {
	srv := newWSServer(t, true)

	var connected sync.WaitGroup
	connected.Add(1)
	c := NewClient(Options{
		URL:               srv.url(),
		Session:           staticSession{userID: "u-7", token: "tok"},
		HeartbeatInterval: 30 * time.Millisecond,
		PongTimeout:       time.Second,
		OnConnect:         func() { connected.Done() },
	})
	defer c.Close()

	c.Connect()
	connected.Wait()
	assert.True(t, c.IsConnected())

	// Session identity travels in the URL and in the authenticate frame.
	require.Eventually(t, func() bool { return srv.received(TypeAuthenticate) == 1 },
		time.Second, 5*time.Millisecond)
	srv.mu.Lock()
	lastURL := srv.lastURL
	srv.mu.Unlock()
	assert.Contains(t, lastURL, "userId=u-7")
	assert.Contains(t, lastURL, "token=tok")

	// Heartbeat round-trips and produces a latency classification.
	require.Eventually(t, func() bool { return c.Latency() > 0 },
		2*time.Second, 10*time.Millisecond)
	assert.NotEqual(t, QualityDisconnected, c.ConnectionQuality())
}

func TestClient_MissedPongForcesReconnect(t *testing.T) {
	srv := newWSServer(t, false) // server never answers pings

	c := NewClient(Options{
		URL:               srv.url(),
		HeartbeatInterval: 50 * time.Millisecond,
		PongTimeout:       20 * time.Millisecond,
		ReconnectBase:     20 * time.Millisecond,
	})
	defer c.Close()

	c.Connect()
	require.Eventually(t, func() bool { return c.IsConnected() },
		time.Second, 5*time.Millisecond)

	// The forced close is unclean, so the client dials again.
	require.Eventually(t, func() bool { return srv.connections() >= 2 },
		2*time.Second, 10*time.Millisecond)
}

func TestClient_CleanDisconnectSuppressesReconnect(t *testing.T) {
	srv := newWSServer(t, true)

	base := 30 * time.Millisecond
	c := NewClient(Options{
		URL:               srv.url(),
		HeartbeatInterval: time.Second,
		ReconnectBase:     base,
	})
	defer c.Close()

	c.Connect()
	require.Eventually(t, func() bool { return c.IsConnected() },
		time.Second, 5*time.Millisecond)

	c.Disconnect()
	require.Eventually(t, func() bool { return !c.IsConnected() },
		time.Second, 5*time.Millisecond)

	time.Sleep(3 * base)
	assert.Equal(t, 1, srv.connections(), "clean close must not auto-reconnect")
	assert.Empty(t, c.LastError())
}

func TestClient_ReconnectBudgetExhaustion(t *testing.T) {
	// An endpoint that refuses every dial.
	refuser := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer refuser.Close()

	c := NewClient(Options{
		URL:                  "ws" + strings.TrimPrefix(refuser.URL, "http"),
		ReconnectBase:        10 * time.Millisecond,
		MaxReconnectAttempts: 2,
	})
	defer c.Close()

	c.Connect()
	require.Eventually(t, func() bool { return c.ReconnectAttempt() == 2 },
		2*time.Second, 10*time.Millisecond)

	// Budget spent: attempts stay put and the client is down with an error.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 2, c.ReconnectAttempt())
	assert.False(t, c.IsConnected())
	assert.NotEmpty(t, c.LastError())
}

func TestClient_DispatchSkipsPong(t *testing.T) {
	srv := newWSServer(t, true)

	var mu sync.Mutex
	var got []Message
	c := NewClient(Options{
		URL:               srv.url(),
		HeartbeatInterval: 20 * time.Millisecond,
		Handler: func(m Message) {
			mu.Lock()
			got = append(got, m)
			mu.Unlock()
		},
	})
	defer c.Close()

	c.Connect()
	require.Eventually(t, func() bool { return c.IsConnected() },
		time.Second, 5*time.Millisecond)

	srv.push(t, Message{Type: TypeNotification, Data: json.RawMessage(`{"id":"n1"}`), Timestamp: 1000})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 1
	}, time.Second, 5*time.Millisecond)

	// Wait for at least one heartbeat round-trip, then confirm no pong leaked.
	require.Eventually(t, func() bool { return c.Latency() > 0 },
		2*time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	for _, m := range got {
		assert.NotEqual(t, TypePong, m.Type, "pong must be intercepted internally")
	}
}

func TestClient_MalformedFrameKeepsConnectionOpen(t *testing.T) {
	srv := newWSServer(t, true)

	c := NewClient(Options{URL: srv.url(), HeartbeatInterval: time.Second})
	defer c.Close()

	c.Connect()
	require.Eventually(t, func() bool { return c.IsConnected() },
		time.Second, 5*time.Millisecond)

	srv.mu.Lock()
	conn := srv.cur
	srv.mu.Unlock()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))

	time.Sleep(50 * time.Millisecond)
	assert.True(t, c.IsConnected())
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	c := NewClient(Options{URL: "ws://localhost:1/ws"})
	defer c.Close()
	assert.False(t, c.Send(TypeTyping, map[string]string{"conversationId": "c1"}))
}
