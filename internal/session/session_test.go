package session

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

func TestStatus(t *testing.T) {
	s := New(t0, time.Hour)

	tests := []struct {
		name string
		at   time.Time
		want Status
	}{
		{"fresh", t0, Status{Status: KindActive, RemainingTime: 3600}},
		{"just above threshold", t0.Add(54*time.Minute + 59*time.Second), Status{Status: KindActive, RemainingTime: 301}},
		{"at threshold", t0.Add(55 * time.Minute), Status{Status: KindWarning, RemainingTime: 300, Warning: true}},
		{"sub-second floors", t0.Add(59*time.Minute + 500*time.Millisecond), Status{Status: KindWarning, RemainingTime: 59, Warning: true}},
		{"at expiry", t0.Add(time.Hour), Status{Status: KindExpired, Expired: true}},
		{"after expiry", t0.Add(2 * time.Hour), Status{Status: KindExpired, Expired: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Status(tt.at, 5*time.Minute))
		})
	}
}

func TestInvalidated(t *testing.T) {
	s := New(t0, time.Hour)
	s.Invalidated = true
	assert.True(t, s.IsExpired(t0))
	assert.Zero(t, s.Remaining(t0))
	assert.ErrorIs(t, s.Extend(t0, time.Hour), ErrExpired)
}

func TestExtend(t *testing.T) {
	s := New(t0, time.Hour)
	now := t0.Add(58 * time.Minute)
	require.NoError(t, s.Extend(now, time.Hour))
	assert.Equal(t, time.Hour, s.Remaining(now))

	assert.ErrorIs(t, s.Extend(now.Add(2*time.Hour), time.Hour), ErrExpired)
}

func TestSnapshotAndRestore(t *testing.T) {
	s := New(t0, time.Hour)
	s.Progress = json.RawMessage(`{"current":7}`)
	b := s.Snapshot(t0.Add(10 * time.Minute))
	assert.Equal(t, s.ID, b.SessionID)
	assert.NotEmpty(t, b.ID)

	s.Progress = json.RawMessage(`{"current":9}`)
	late := t0.Add(3 * time.Hour)
	require.True(t, s.IsExpired(late))

	s.RestoreFrom(b, late, time.Hour)
	assert.False(t, s.IsExpired(late))
	assert.JSONEq(t, `{"current":7}`, string(s.Progress))
}

func testStore(t *testing.T, st Store) {
	ctx := context.Background()

	_, err := st.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.GetBackup(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	s := New(t0, time.Hour)
	s.Progress = json.RawMessage(`{"current":1}`)
	require.NoError(t, st.Put(ctx, s))

	got, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))
	assert.JSONEq(t, `{"current":1}`, string(got.Progress))

	b := s.Snapshot(t0)
	require.NoError(t, st.PutBackup(ctx, b))
	gotB, err := st.GetBackup(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, gotB.SessionID)
}

func TestOwnership(t *testing.T) {
	first := New(t0, time.Hour)
	b := first.Snapshot(t0)
	assert.Equal(t, first.ID, b.Owner)
	assert.True(t, first.Owns(b))

	next := first.Successor(t0.Add(2*time.Hour), time.Hour)
	assert.NotEqual(t, first.ID, next.ID)
	assert.Equal(t, first.ID, next.Owner)
	assert.True(t, next.Owns(b))
	assert.Equal(t, first.ID, next.Snapshot(t0).Owner)

	stranger := New(t0, time.Hour)
	assert.False(t, stranger.Owns(b))

	legacy := &Backup{ID: "old", SessionID: stranger.ID}
	assert.True(t, stranger.Owns(legacy))
	assert.False(t, first.Owns(legacy))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	s := New(t0, time.Hour)
	require.NoError(t, st.Put(ctx, s))

	s.Invalidated = true
	got, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.Invalidated, "store holds its own copy")

	got.ExpiresAt = t0
	again, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, again.ExpiresAt.Equal(t0.Add(time.Hour)))
	assert.Equal(t, 1, st.Len())
}

// Runs against a live server only when SESSIONGUARD_TEST_REDIS is set,
// e.g. redis://localhost:6379/15.
func TestRedisStore(t *testing.T) {
	url := os.Getenv("SESSIONGUARD_TEST_REDIS")
	if url == "" {
		t.Skip("SESSIONGUARD_TEST_REDIS not set")
	}
	st, err := NewRedisStore(context.Background(), url, time.Minute)
	require.NoError(t, err)
	defer st.Close()
	testStore(t, st)
}

func TestNewRedisStoreBadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not a url", time.Minute)
	assert.Error(t, err)
}
