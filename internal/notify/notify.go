// Package notify defines the notification records produced by the realtime
// layer and the store contract the UI consumes them through.
package notify

import (
	"sync"
	"time"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Notification is one user-facing notification. Read starts false; the
// store owns it from there.
type Notification struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Read        bool      `json:"read"`
	Priority    Priority  `json:"priority"`
	ActionURL   string    `json:"action_url,omitempty"`
	ActionLabel string    `json:"action_label,omitempty"`
}

// Store receives notifications and read-state updates from the realtime
// layer. Implementations must tolerate unknown IDs in MarkAsRead.
type Store interface {
	AddNotification(n Notification)
	MarkAsRead(id string)
	UpdateUnreadCount(count int)
}

// MemoryStore keeps notifications in memory, newest first, and tracks the
// unread count locally until the server pushes an authoritative one.
type MemoryStore struct {
	mu     sync.Mutex
	items  []Notification
	unread int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AddNotification(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]Notification{n}, s.items...)
	if !n.Read {
		s.unread++
	}
}

func (s *MemoryStore) MarkAsRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id && !s.items[i].Read {
			s.items[i].Read = true
			if s.unread > 0 {
				s.unread--
			}
			return
		}
	}
}

func (s *MemoryStore) UpdateUnreadCount(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread = count
}

// All returns the stored notifications, newest first.
func (s *MemoryStore) All() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.items...)
}

func (s *MemoryStore) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}
