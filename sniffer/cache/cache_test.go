package cache

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestPutGet(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "snapshot.json"), testLogger())

	require.NoError(t, l.Put("k", payload{Name: "clanker", Count: 7}, time.Minute))

	var got payload
	require.True(t, l.Get("k", &got))
	assert.Equal(t, payload{Name: "clanker", Count: 7}, got)
}

func TestGetMiss(t *testing.T) {
	l := New("", testLogger())
	var got payload
	assert.False(t, l.Get("absent", &got))
}

func TestExpiry(t *testing.T) {
	l := New("", testLogger())

	require.NoError(t, l.Put("k", payload{Name: "fresh"}, 20*time.Millisecond))

	var got payload
	require.True(t, l.Get("k", &got), "entry must be fresh before the TTL elapses")

	time.Sleep(30 * time.Millisecond)
	assert.False(t, l.Get("k", &got), "entry must be a miss after the TTL elapses")
}

func TestLastWriterWins(t *testing.T) {
	l := New("", testLogger())

	require.NoError(t, l.Put("k", payload{Count: 1}, time.Minute))
	require.NoError(t, l.Put("k", payload{Count: 2}, time.Minute))

	var got payload
	require.True(t, l.Get("k", &got))
	assert.Equal(t, 2, got.Count)
}

func TestSnapshotSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")

	first := New(path, testLogger())
	require.NoError(t, first.Put("k", payload{Name: "persisted", Count: 3}, time.Hour))

	second := New(path, testLogger())
	var got payload
	require.True(t, second.Get("k", &got), "a fresh entry must survive a restart")
	assert.Equal(t, "persisted", got.Name)
}

func TestSnapshotDropsExpiredOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")

	first := New(path, testLogger())
	require.NoError(t, first.Put("stale", payload{Name: "old"}, 10*time.Millisecond))
	require.NoError(t, first.Put("fresh", payload{Name: "new"}, time.Hour))

	time.Sleep(20 * time.Millisecond)

	second := New(path, testLogger())
	var got payload
	assert.False(t, second.Get("stale", &got))
	assert.True(t, second.Get("fresh", &got))
}

func TestCorruptSnapshotIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{not json"), 0644))

	l := New(path, testLogger())
	var got payload
	assert.False(t, l.Get("k", &got))

	// The layer still works and rewrites a valid snapshot.
	require.NoError(t, l.Put("k", payload{Count: 1}, time.Minute))
	assert.True(t, l.Get("k", &got))
}

func TestNoPathDisablesPersistence(t *testing.T) {
	l := New("", testLogger())
	require.NoError(t, l.Put("k", payload{Count: 1}, time.Minute))
}
