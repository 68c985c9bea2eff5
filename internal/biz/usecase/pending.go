package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
)

type pendingEntry struct {
	query domain.PendingQuery
	seq   uint64
}

// PendingTable maps in-flight lookup keys to the chat that asked for them.
// All operations are atomic; entries are never expired unless Sweep is called.
type PendingTable struct {
	mu      sync.Mutex
	entries map[string]pendingEntry
	seq     uint64
	now     func() time.Time
}

// NewPendingTable creates an empty table
func NewPendingTable() *PendingTable {
	return &PendingTable{
		entries: make(map[string]pendingEntry),
		now:     time.Now,
	}
}

// Put records key for originChat, replacing any existing entry for the same key.
// A replaced key keeps its original insertion position for TakeMostRecent.
func (t *PendingTable) Put(key string, originChat int64) domain.PendingQuery {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := domain.PendingQuery{
		Key:        key,
		OriginChat: originChat,
		InsertedAt: t.now(),
		RequestID:  uuid.NewString(),
	}

	prev, ok := t.entries[key]
	if !ok {
		t.seq++
		prev.seq = t.seq
	}
	t.entries[key] = pendingEntry{query: q, seq: prev.seq}
	return q
}

// TakeByKey removes and returns the entry for key
func (t *PendingTable) TakeByKey(key string) (domain.PendingQuery, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return domain.PendingQuery{}, false
	}
	delete(t.entries, key)
	return e.query, true
}

// TakeMostRecent removes and returns the most recently inserted entry
func (t *PendingTable) TakeMostRecent() (domain.PendingQuery, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		latest pendingEntry
		found  bool
	)
	for _, e := range t.entries {
		if !found || e.seq > latest.seq {
			latest = e
			found = true
		}
	}
	if !found {
		return domain.PendingQuery{}, false
	}
	delete(t.entries, latest.query.Key)
	return latest.query, true
}

// Contains reports whether key is pending
func (t *PendingTable) Contains(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key]
	return ok
}

// Len returns the number of pending entries
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Sweep removes entries older than maxAge and returns them
func (t *PendingTable) Sweep(maxAge time.Duration) []domain.PendingQuery {
	if maxAge <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var evicted []domain.PendingQuery
	for key, e := range t.entries {
		if e.query.Age(now) > maxAge {
			evicted = append(evicted, e.query)
			delete(t.entries, key)
		}
	}
	return evicted
}
