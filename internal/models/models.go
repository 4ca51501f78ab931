package models

import (
	"time"
)

// PatternRecord persists one navigation-pattern blob per storage key.
// The value is the JSON-encoded model; last writer wins across clients
// sharing a key (see DESIGN.md).
type PatternRecord struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeliveredNotification is the dev server's log of every notification frame
// it pushed, so manual test runs can be replayed and inspected.
type DeliveredNotification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID  string `gorm:"index" json:"user_id"`
	Type    string `gorm:"not null" json:"type"`
	Payload string `gorm:"type:text" json:"payload"`
}
