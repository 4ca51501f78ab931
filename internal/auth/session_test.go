package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	orig := &Session{UserID: "u-1", Token: "secret"}
	require.NoError(t, orig.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, orig, loaded)

	userID, token, ok := loaded.SessionInfo()
	assert.True(t, ok)
	assert.Equal(t, "u-1", userID)
	assert.Equal(t, "secret", token)
}

func TestSession_AnonymousInfo(t *testing.T) {
	var s *Session
	_, _, ok := s.SessionInfo()
	assert.False(t, ok)

	_, _, ok = (&Session{}).SessionInfo()
	assert.False(t, ok)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PULSE_USER_ID", "")
	assert.Nil(t, FromEnv())

	t.Setenv("PULSE_USER_ID", "u-2")
	t.Setenv("PULSE_AUTH_TOKEN", "tok")
	s := FromEnv()
	require.NotNil(t, s)
	assert.Equal(t, "u-2", s.UserID)
}
