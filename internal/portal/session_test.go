package portal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubportal/internal/logger"
)

func TestSessionStoreExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ss := NewSessionStore(time.Minute, logger.Discard(), func(id string) (*Session, error) {
		return &Session{ID: id}, nil
	})
	ss.now = func() time.Time { return now }

	s, err := ss.Create()
	require.NoError(t, err)
	got, ok := ss.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	now = now.Add(45 * time.Second)
	_, ok = ss.Get(s.ID)
	assert.True(t, ok, "access refreshes the idle timer")

	now = now.Add(2 * time.Minute)
	_, ok = ss.Get(s.ID)
	assert.False(t, ok)
	assert.Zero(t, ss.Len())
}

func TestSessionStoreSweepsOnCreate(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ss := NewSessionStore(time.Minute, logger.Discard(), func(id string) (*Session, error) {
		return &Session{ID: id}, nil
	})
	ss.now = func() time.Time { return now }

	for range 3 {
		_, err := ss.Create()
		require.NoError(t, err)
	}
	now = now.Add(5 * time.Minute)
	_, err := ss.Create()
	require.NoError(t, err)
	assert.Equal(t, 1, ss.Len())
}

func TestIPLimiter(t *testing.T) {
	l := NewIPLimiter(0.001, 2)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "limits are per address")
}
