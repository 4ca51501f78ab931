// Package auth supplies the user session consumed by the realtime client:
// a user ID and auth token, kept in a local JSON file like a cached login.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
)

// Session identifies the signed-in user.
type Session struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// SessionInfo implements the realtime session-provider contract.
func (s *Session) SessionInfo() (string, string, bool) {
	if s == nil || s.UserID == "" {
		return "", "", false
	}
	return s.UserID, s.Token, true
}

// FromEnv builds a session from PULSE_USER_ID / PULSE_AUTH_TOKEN.
// Returns nil when no user is configured (anonymous connection).
func FromEnv() *Session {
	userID := os.Getenv("PULSE_USER_ID")
	if userID == "" {
		return nil
	}
	return &Session{UserID: userID, Token: os.Getenv("PULSE_AUTH_TOKEN")}
}

// Load reads a cached session from a JSON file.
func Load(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s := &Session{}
	if err := json.NewDecoder(f).Decode(s); err != nil {
		return nil, fmt.Errorf("decoding session file: %w", err)
	}
	return s, nil
}

// Save caches the session to a JSON file readable only by the user.
func (s *Session) Save(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(s)
}
