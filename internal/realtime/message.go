// Package realtime maintains the persistent WebSocket connection to the
// marketplace's push endpoint: authentication, heartbeat with latency
// measurement, automatic reconnection with exponential backoff, and routing
// of typed inbound messages into the notification store.
package realtime

import "encoding/json"

// Message types produced by this client.
const (
	TypePing                 = "ping"
	TypeAuthenticate         = "authenticate"
	TypeSubscribe            = "subscribe"
	TypeMarkNotificationRead = "mark_notification_read"
	TypeTyping               = "typing"
)

// Message types consumed from the server. Pong is intercepted internally
// for latency bookkeeping and never reaches the application handler.
const (
	TypePong                      = "pong"
	TypeNotification              = "notification"
	TypeNotificationRead          = "notification_read"
	TypeUnreadCount               = "unread_count"
	TypeOpportunityMatch          = "opportunity_match"
	TypeInterviewScheduled        = "interview_scheduled"
	TypeSkillVerificationComplete = "skill_verification_complete"
	TypeChatMessage               = "message"
)

// Message is the wire envelope, JSON over the socket.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"` // ms since epoch
	ID        string          `json:"id,omitempty"`
}
