package realtime

import (
	"encoding/json"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/skillbridge/pulse/internal/timers"
	"go.uber.org/zap"
)

// Defaults for the connection tuning knobs.
const (
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultPongTimeout          = 5 * time.Second
	DefaultReconnectBase        = 3 * time.Second
	DefaultMaxReconnectAttempts = 5

	forcedReconnectDelay = time.Second
	backoffFactor        = 1.5
)

// SessionProvider supplies the identity used for the connection URL's query
// parameters and the in-band authenticate message. ok=false means anonymous.
type SessionProvider interface {
	SessionInfo() (userID, token string, ok bool)
}

// Options configures a Client. URL is required; everything else has a
// usable default.
type Options struct {
	URL     string
	Session SessionProvider

	HeartbeatInterval    time.Duration
	PongTimeout          time.Duration
	ReconnectBase        time.Duration
	MaxReconnectAttempts int

	// Handler receives every inbound message except pong.
	Handler func(Message)

	OnConnect    func()
	OnDisconnect func()
	OnError      func(error)

	Logger *zap.Logger
	Dialer *websocket.Dialer
}

func (o *Options) applyDefaults() {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = DefaultPongTimeout
	}
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = DefaultReconnectBase
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
}

// Client is a resilient WebSocket connection. It survives transient network
// failures through capped exponential-backoff reconnection and shields the
// caller from lifecycle complexity: the caller sees state queries, a
// best-effort Send, and its own callbacks.
type Client struct {
	opts   Options
	timers *timers.Set
	log    *zap.Logger

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	closing    bool // deliberate close in progress; suppresses auto-reconnect
	lastErr    string
	attempts   int
	latency    time.Duration
	quality    Quality
	pingSentAt time.Time

	writeMu sync.Mutex
}

func NewClient(opts Options) *Client {
	opts.applyDefaults()
	return &Client{
		opts:    opts,
		timers:  timers.NewSet(),
		log:     opts.Logger,
		state:   StateDisconnected,
		quality: QualityDisconnected,
	}
}

// Connect starts connecting in the background. No-op unless disconnected.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.closing = false
	c.mu.Unlock()
	go c.dial()
}

// Disconnect closes the connection cleanly and cancels pending timers.
// A clean close never triggers the automatic reconnection path.
func (c *Client) Disconnect() {
	c.timers.Cancel("heartbeat")
	c.timers.Cancel("pong-timeout")
	c.timers.Cancel("reconnect")

	c.mu.Lock()
	c.closing = true
	conn := c.conn
	if conn == nil {
		// Nothing live: settle the state here, there is no read loop to do it.
		c.state = StateDisconnected
		c.quality = QualityDisconnected
	}
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"))
		c.writeMu.Unlock()
		conn.Close()
	}
}

// Reconnect forces a fresh connection: clean close, attempt counter reset,
// reconnect after a fixed short delay. This bypasses backoff and is meant
// for caller-initiated "try again now" actions.
func (c *Client) Reconnect() {
	c.Disconnect()

	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()

	c.timers.Schedule("reconnect", forcedReconnectDelay, func() {
		c.Connect()
	})
}

// Close tears the client down for good: clean close plus permanent timer
// shutdown. The client cannot be reused afterwards.
func (c *Client) Close() {
	c.Disconnect()
	c.timers.StopAll()
}

// Send marshals data into the wire envelope and writes it. Best effort:
// returns false, never an error, when the socket is not open or the write
// fails. Messages are not queued.
func (c *Client) Send(msgType string, data any) bool {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateConnected
	c.mu.Unlock()
	if !open || conn == nil {
		return false
	}

	msg := Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		ID:        uuid.NewString(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			c.log.Warn("encoding outbound message failed",
				zap.String("type", msgType), zap.Error(err))
			return false
		}
		msg.Data = raw
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return false
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.log.Warn("send failed", zap.String("type", msgType), zap.Error(err))
		return false
	}
	return true
}

// Subscribe asks the server for the given notification channels.
func (c *Client) Subscribe(channels ...string) bool {
	return c.Send(TypeSubscribe, map[string]any{"channels": channels})
}

// MarkNotificationRead reports a notification as read.
func (c *Client) MarkNotificationRead(id string) bool {
	return c.Send(TypeMarkNotificationRead, map[string]string{"notificationId": id})
}

// Typing signals typing activity in a conversation.
func (c *Client) Typing(conversationID string) bool {
	return c.Send(TypeTyping, map[string]string{"conversationId": conversationID})
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

func (c *Client) IsConnecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnecting
}

func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) ReconnectAttempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Client) ConnectionQuality() Quality {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quality
}

// Latency is the round-trip time measured by the most recent heartbeat.
func (c *Client) Latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency
}

// dial establishes the socket. On failure the attempt is treated like an
// unclean close and feeds the reconnection path.
func (c *Client) dial() {
	conn, resp, err := c.opts.Dialer.Dial(c.buildURL(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.mu.Lock()
		c.lastErr = err.Error()
		c.state = StateDisconnected
		closing := c.closing
		c.mu.Unlock()

		c.log.Warn("websocket dial failed", zap.Error(err))
		if c.opts.OnError != nil {
			c.opts.OnError(err)
		}
		if !closing {
			c.scheduleReconnect()
		}
		return
	}

	c.mu.Lock()
	if c.closing {
		// Disconnect won the race; drop the fresh socket.
		c.state = StateDisconnected
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.lastErr = ""
	c.mu.Unlock()

	c.log.Info("websocket connected", zap.String("url", c.opts.URL))
	if c.opts.OnConnect != nil {
		c.opts.OnConnect()
	}
	c.authenticate()
	c.timers.Schedule("heartbeat", c.opts.HeartbeatInterval, c.heartbeat)
	go c.readLoop(conn)
}

// buildURL appends the session's userId/token query parameters when present.
func (c *Client) buildURL() string {
	if c.opts.Session == nil {
		return c.opts.URL
	}
	userID, token, ok := c.opts.Session.SessionInfo()
	if !ok {
		return c.opts.URL
	}
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return c.opts.URL
	}
	q := u.Query()
	q.Set("userId", userID)
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) authenticate() {
	if c.opts.Session == nil {
		return
	}
	userID, token, ok := c.opts.Session.SessionInfo()
	if !ok {
		return
	}
	c.Send(TypeAuthenticate, map[string]string{"userId": userID, "token": token})
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(err)
			return
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Malformed frames never take the connection down.
			c.log.Warn("dropping unparseable frame", zap.Error(err))
			continue
		}
		if msg.Type == TypePong {
			c.handlePong()
			continue
		}
		if c.opts.Handler != nil {
			c.opts.Handler(msg)
		}
	}
}

// heartbeat sends an in-band ping, arms the pong deadline, and re-arms
// itself for the next interval.
func (c *Client) heartbeat() {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.pingSentAt = time.Now()
	c.mu.Unlock()

	if c.Send(TypePing, nil) {
		c.timers.Schedule("pong-timeout", c.opts.PongTimeout, c.pongTimedOut)
	}
	c.timers.Schedule("heartbeat", c.opts.HeartbeatInterval, c.heartbeat)
}

func (c *Client) handlePong() {
	c.timers.Cancel("pong-timeout")
	c.mu.Lock()
	if !c.pingSentAt.IsZero() {
		c.latency = time.Since(c.pingSentAt)
		c.quality = QualityFor(c.latency)
	}
	c.mu.Unlock()
}

// pongTimedOut treats a missed pong as a dead connection: worst quality and
// a forced close, which surfaces as an unclean close to the read loop and
// from there into the reconnection path.
func (c *Client) pongTimedOut() {
	c.mu.Lock()
	c.quality = QualityDisconnected
	conn := c.conn
	c.mu.Unlock()

	c.log.Warn("no pong within deadline, closing connection")
	if conn != nil {
		conn.Close()
	}
}

// handleClose runs once per connection, from the read loop, for clean and
// unclean closes alike.
func (c *Client) handleClose(err error) {
	c.timers.Cancel("heartbeat")
	c.timers.Cancel("pong-timeout")

	clean := websocket.IsCloseError(err, websocket.CloseNormalClosure)

	c.mu.Lock()
	clean = clean || c.closing
	c.conn = nil
	c.state = StateDisconnected
	c.quality = QualityDisconnected
	if !clean {
		c.lastErr = err.Error()
	}
	c.mu.Unlock()

	c.log.Info("websocket closed", zap.Bool("clean", clean), zap.Error(err))
	if c.opts.OnDisconnect != nil {
		c.opts.OnDisconnect()
	}
	if !clean {
		c.scheduleReconnect()
	}
}

// scheduleReconnect arms the next automatic attempt, backing off by
// base × 1.5^attempt. Once the budget is spent, reconnection stops until the
// caller invokes Reconnect.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.attempts >= c.opts.MaxReconnectAttempts {
		c.mu.Unlock()
		c.log.Warn("reconnect budget exhausted",
			zap.Int("attempts", c.opts.MaxReconnectAttempts))
		return
	}
	delay := backoffDelay(c.opts.ReconnectBase, c.attempts)
	c.attempts++
	attempt := c.attempts
	c.mu.Unlock()

	c.log.Info("scheduling reconnect",
		zap.Int("attempt", attempt), zap.Duration("delay", delay))
	c.timers.Schedule("reconnect", delay, func() {
		c.mu.Lock()
		if c.state != StateDisconnected || c.closing {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		c.mu.Unlock()
		c.dial()
	})
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	return time.Duration(float64(base) * math.Pow(backoffFactor, float64(attempt)))
}
