// Package cache is the process-wide key/value cache for composite results.
// Entries carry a per-call TTL, expire lazily on read, and are snapshotted
// to a JSON file so they survive a restart. The snapshot is disposable and
// never a source of truth.
package cache

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Layer wraps an in-memory TTL store plus a file snapshot. Writes are
// atomic key replacements; last writer wins.
type Layer struct {
	mu     sync.Mutex
	mem    *gocache.Cache
	path   string
	logger *slog.Logger
}

// snapshotEntry is the persisted form of one cache item. Payloads are kept
// as raw JSON so the snapshot round-trips without knowing payload types.
type snapshotEntry struct {
	Payload   json.RawMessage `json:"payload"`
	ExpiresAt int64           `json:"expiresAt"` // unix nanos
}

// New builds a cache layer backed by the snapshot file at path. A missing
// or corrupt snapshot is ignored; the cache starts empty. path == ""
// disables persistence.
func New(path string, logger *slog.Logger) *Layer {
	l := &Layer{
		mem:    gocache.New(gocache.NoExpiration, 0),
		path:   path,
		logger: logger.With("component", "cache"),
	}
	l.load()
	return l
}

// Get unmarshals the entry for key into out and reports whether it was
// fresh. A stale entry is evicted on the way out.
func (l *Layer) Get(key string, out any) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, found := l.mem.Get(key)
	if !found {
		// Either absent or expired; either way drop any stale remnant.
		l.mem.Delete(key)
		return false
	}
	raw, ok := v.(json.RawMessage)
	if !ok {
		l.mem.Delete(key)
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		l.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		l.mem.Delete(key)
		return false
	}
	return true
}

// Put stores value under key with the call site's TTL and persists the
// snapshot.
func (l *Layer) Put(key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mem.Set(key, json.RawMessage(raw), ttl)
	return l.persist()
}

// persist writes all unexpired entries to the snapshot file. Callers hold
// l.mu.
func (l *Layer) persist() error {
	if l.path == "" {
		return nil
	}
	items := l.mem.Items()
	snapshot := make(map[string]snapshotEntry, len(items))
	for key, item := range items {
		raw, ok := item.Object.(json.RawMessage)
		if !ok {
			continue
		}
		snapshot[key] = snapshotEntry{Payload: raw, ExpiresAt: item.Expiration}
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0644)
}

// load restores unexpired entries from the snapshot file, ignoring any
// read or parse failure.
func (l *Layer) load() {
	if l.path == "" {
		return
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return
	}
	var snapshot map[string]snapshotEntry
	if err := json.Unmarshal(data, &snapshot); err != nil {
		l.logger.Warn("ignoring corrupt cache snapshot", "path", l.path, "error", err)
		return
	}
	now := time.Now().UnixNano()
	items := make(map[string]gocache.Item, len(snapshot))
	for key, entry := range snapshot {
		if entry.ExpiresAt > 0 && now > entry.ExpiresAt {
			continue
		}
		items[key] = gocache.Item{Object: json.RawMessage(entry.Payload), Expiration: entry.ExpiresAt}
	}
	l.mem = gocache.NewFrom(gocache.NoExpiration, 0, items)
}
