package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grevgeny/toy-redis-server/internal/stream"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	t.Cleanup(s.Close)

	s.Set("foo", "bar", nil)
	v, ok := s.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", v)
}

func TestGetMissingKey(t *testing.T) {
	s := New()
	t.Cleanup(s.Close)

	_, ok := s.Get("nope")
	assert.False(t, ok)
}

func TestPXExpiryThenGetReturnsMissing(t *testing.T) {
	s := New()
	t.Cleanup(s.Close)

	expireAt := time.Now().Add(100 * time.Millisecond)
	s.Set("foo", "bar", &expireAt)

	v, ok := s.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", v)

	time.Sleep(200 * time.Millisecond)

	_, ok = s.Get("foo")
	assert.False(t, ok)
}

func TestExpiredKeyDroppedFromKeys(t *testing.T) {
	s := New()
	t.Cleanup(s.Close)

	expireAt := time.Now().Add(100 * time.Millisecond)
	s.Set("foo", "bar", &expireAt)
	s.Set("persists", "val", nil)

	keys := s.Keys()
	assert.Contains(t, keys, "foo")
	assert.Contains(t, keys, "persists")

	time.Sleep(200 * time.Millisecond)

	keys = s.Keys()
	assert.NotContains(t, keys, "foo")
	assert.Contains(t, keys, "persists")
}

func TestExpiredKeyReportsTypeNone(t *testing.T) {
	s := New()
	t.Cleanup(s.Close)

	expireAt := time.Now().Add(100 * time.Millisecond)
	s.Set("foo", "bar", &expireAt)
	require.Equal(t, "string", s.Type("foo"))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, "none", s.Type("foo"))
}

func TestDeleteIdempotent(t *testing.T) {
	s := New()
	t.Cleanup(s.Close)

	s.Set("foo", "bar", nil)

	assert.True(t, s.Delete("foo"))
	assert.False(t, s.Delete("foo"))
}

func TestSweepRemovesExpiredKey(t *testing.T) {
	s := &Store{data: make(map[string]*Value), stopSweep: make(chan struct{})}
	t.Cleanup(s.Close)

	past := time.Now().Add(-time.Second)
	s.Set("foo", "bar", &past)

	s.sweep(time.Now())

	s.mu.Lock()
	_, exists := s.data["foo"]
	s.mu.Unlock()
	assert.False(t, exists)
}

func TestXAddAndXRangeThroughStore(t *testing.T) {
	s := New()
	t.Cleanup(s.Close)

	id, err := s.XAdd("events", "1-1", []stream.FieldValue{{Field: "k", Value: "v"}})
	require.NoError(t, err)
	assert.Equal(t, "1-1", id)

	entries, err := s.XRange("events", "-", "+")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1-1", entries[0].ID.String())
}

func TestXAddAgainstStringKeyIsWrongType(t *testing.T) {
	s := New()
	t.Cleanup(s.Close)

	s.Set("foo", "bar", nil)
	_, err := s.XAdd("foo", "1-1", []stream.FieldValue{{Field: "k", Value: "v"}})
	require.ErrorIs(t, err, ErrWrongType)
}

func TestTypeOfMissingKeyIsNone(t *testing.T) {
	s := New()
	t.Cleanup(s.Close)

	assert.Equal(t, "none", s.Type("nope"))
}
