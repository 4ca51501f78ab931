// Package devserver is a local stand-in for the marketplace push backend:
// it accepts WebSocket clients, answers pings, and pushes sample domain
// notifications so the client stack can be exercised end to end.
package devserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/skillbridge/pulse/internal/models"
	"github.com/skillbridge/pulse/internal/realtime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Hub tracks connected clients and broadcasts frames to them.
type Hub struct {
	log *zap.Logger
	// DB, when set, records every pushed notification for later inspection.
	db *gorm.DB

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn    *websocket.Conn
	userID  string
	writeMu sync.Mutex
}

func NewHub(log *zap.Logger, db *gorm.DB) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, db: db, clients: make(map[*client]struct{})}
}

// HandleConn serves one WebSocket client until it goes away. Blocks.
func (h *Hub) HandleConn(conn *websocket.Conn, userID string) {
	cl := &client{conn: conn, userID: userID}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("client connected", zap.String("userId", userID), zap.Int("clients", n))

	defer func() {
		h.mu.Lock()
		delete(h.clients, cl)
		h.mu.Unlock()
		conn.Close()
		h.log.Info("client disconnected", zap.String("userId", userID))
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg realtime.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.log.Warn("unparseable client frame", zap.Error(err))
			continue
		}
		h.handleMessage(cl, msg)
	}
}

func (h *Hub) handleMessage(cl *client, msg realtime.Message) {
	switch msg.Type {
	case realtime.TypePing:
		h.send(cl, realtime.Message{
			Type:      realtime.TypePong,
			Timestamp: time.Now().UnixMilli(),
			ID:        msg.ID,
		})
	case realtime.TypeAuthenticate:
		h.log.Info("client authenticated", zap.String("userId", cl.userID))
	case realtime.TypeSubscribe:
		h.log.Info("client subscribed", zap.String("userId", cl.userID))
	case realtime.TypeMarkNotificationRead:
		// Echo the read state back, like the production backend does.
		h.Push(realtime.TypeNotificationRead, json.RawMessage(msg.Data))
	case realtime.TypeTyping:
		// Presence chatter; nothing to do in the simulator.
	default:
		h.log.Debug("unhandled client message", zap.String("type", msg.Type))
	}
}

// Push broadcasts one frame to every connected client and records it.
func (h *Hub) Push(msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.log.Warn("encoding push payload failed", zap.Error(err))
		return
	}
	msg := realtime.Message{
		Type:      msgType,
		Data:      raw,
		Timestamp: time.Now().UnixMilli(),
		ID:        uuid.NewString(),
	}

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		targets = append(targets, cl)
	}
	h.mu.Unlock()

	for _, cl := range targets {
		h.send(cl, msg)
		if h.db != nil {
			h.db.Create(&models.DeliveredNotification{
				UserID:  cl.userID,
				Type:    msgType,
				Payload: string(raw),
			})
		}
	}
}

// ClientCount reports how many sockets are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) send(cl *client, msg realtime.Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	cl.writeMu.Lock()
	err = cl.conn.WriteMessage(websocket.TextMessage, raw)
	cl.writeMu.Unlock()
	if err != nil {
		h.log.Warn("push to client failed",
			zap.String("userId", cl.userID), zap.Error(err))
	}
}

// StartSampleFeed pushes a rotating set of sample notifications on a fixed
// interval until stop is closed. Runs in the background.
func (h *Hub) StartSampleFeed(interval time.Duration, stop <-chan struct{}) {
	samples := []struct {
		msgType string
		data    any
	}{
		{realtime.TypeOpportunityMatch, map[string]any{
			"opportunityId": "42", "matchPercentage": 91, "company": "Acme"}},
		{realtime.TypeInterviewScheduled, map[string]any{
			"interviewId": "i1", "company": "Globex", "scheduledAt": "tomorrow 10:00"}},
		{realtime.TypeSkillVerificationComplete, map[string]any{
			"skillId": "s1", "skill": "Go", "passed": true}},
		{realtime.TypeChatMessage, map[string]any{
			"messageId": "m1", "senderName": "Recruiter", "preview": "Hi! Quick question about your profile."}},
		{realtime.TypeUnreadCount, map[string]any{"count": 3}},
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		i := 0
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s := samples[i%len(samples)]
				h.Push(s.msgType, s.data)
				i++
			}
		}
	}()
}
