package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/skillbridge/pulse/internal/notify"
	"go.uber.org/zap"
)

// Router translates the marketplace's push messages into notification
// records and hands them to the store. Unrecognized types are logged and
// ignored so new server-side types never break older clients.
type Router struct {
	Store  notify.Store
	Logger *zap.Logger
}

func NewRouter(store notify.Store, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{Store: store, Logger: logger}
}

// Handle is wired as the client's message handler.
func (r *Router) Handle(msg Message) {
	ts := time.UnixMilli(msg.Timestamp)

	switch msg.Type {
	case TypeNotification:
		var n notify.Notification
		if !r.decode(msg, &n) {
			return
		}
		if n.Timestamp.IsZero() {
			n.Timestamp = ts
		}
		n.Read = false
		r.Store.AddNotification(n)

	case TypeNotificationRead:
		var p struct {
			NotificationID string `json:"notificationId"`
		}
		if r.decode(msg, &p) && p.NotificationID != "" {
			r.Store.MarkAsRead(p.NotificationID)
		}

	case TypeUnreadCount:
		var p struct {
			Count int `json:"count"`
		}
		if r.decode(msg, &p) {
			r.Store.UpdateUnreadCount(p.Count)
		}

	case TypeOpportunityMatch:
		var p struct {
			OpportunityID   string  `json:"opportunityId"`
			MatchPercentage float64 `json:"matchPercentage"`
			Company         string  `json:"company"`
		}
		if !r.decode(msg, &p) {
			return
		}
		r.Store.AddNotification(notify.Notification{
			ID:          "match-" + p.OpportunityID,
			Type:        TypeOpportunityMatch,
			Title:       "New opportunity match",
			Message:     fmt.Sprintf("You are a %.0f%% match for a role at %s", p.MatchPercentage, p.Company),
			Timestamp:   ts,
			Priority:    notify.PriorityHigh,
			ActionURL:   "/opportunities/" + p.OpportunityID,
			ActionLabel: "View opportunity",
		})

	case TypeInterviewScheduled:
		var p struct {
			InterviewID string `json:"interviewId"`
			Company     string `json:"company"`
			ScheduledAt string `json:"scheduledAt"`
		}
		if !r.decode(msg, &p) {
			return
		}
		r.Store.AddNotification(notify.Notification{
			ID:          "interview-" + p.InterviewID,
			Type:        TypeInterviewScheduled,
			Title:       "Interview scheduled",
			Message:     fmt.Sprintf("Interview with %s on %s", p.Company, p.ScheduledAt),
			Timestamp:   ts,
			Priority:    notify.PriorityHigh,
			ActionURL:   "/interviews/" + p.InterviewID,
			ActionLabel: "View details",
		})

	case TypeSkillVerificationComplete:
		var p struct {
			SkillID string `json:"skillId"`
			Skill   string `json:"skill"`
			Passed  bool   `json:"passed"`
		}
		if !r.decode(msg, &p) {
			return
		}
		title := "Skill verification complete"
		body := fmt.Sprintf("Your %s verification did not pass this time", p.Skill)
		if p.Passed {
			body = fmt.Sprintf("Your %s skill is now verified", p.Skill)
		}
		r.Store.AddNotification(notify.Notification{
			ID:        "skill-" + p.SkillID,
			Type:      TypeSkillVerificationComplete,
			Title:     title,
			Message:   body,
			Timestamp: ts,
			Priority:  notify.PriorityMedium,
			ActionURL: "/profile/skills",
		})

	case TypeChatMessage:
		var p struct {
			MessageID  string `json:"messageId"`
			SenderName string `json:"senderName"`
			Preview    string `json:"preview"`
		}
		if !r.decode(msg, &p) {
			return
		}
		r.Store.AddNotification(notify.Notification{
			ID:          "msg-" + p.MessageID,
			Type:        TypeChatMessage,
			Title:       "Message from " + p.SenderName,
			Message:     p.Preview,
			Timestamp:   ts,
			Priority:    notify.PriorityMedium,
			ActionURL:   "/messages",
			ActionLabel: "Reply",
		})

	default:
		r.Logger.Debug("ignoring unrecognized message type", zap.String("type", msg.Type))
	}
}

func (r *Router) decode(msg Message, into any) bool {
	if err := json.Unmarshal(msg.Data, into); err != nil {
		r.Logger.Warn("malformed payload",
			zap.String("type", msg.Type), zap.Error(err))
		return false
	}
	return true
}
