// Package store provides the session-partitioned vector store.
// Entries carry an absolute expiry and are evicted lazily: every read runs a
// global sweep over a min-heap of expirations, so sessions that nobody reads
// any more are still reclaimed.
package store

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/vecrelay/internal/clock"
	"github.com/blueberrycongee/vecrelay/internal/metrics"
	relayerrors "github.com/blueberrycongee/vecrelay/pkg/errors"
)

// DefaultTTL is the lifetime of an entry when none is configured.
const DefaultTTL = 90 * time.Second

// Config holds configuration for Store.
type Config struct {
	TTL   time.Duration // Entry lifetime (default: 90s)
	Clock clock.Clock   // Time source (default: system clock)
}

// Stats holds store statistics for monitoring.
type Stats struct {
	Sessions  int   `json:"sessions"`
	Entries   int   `json:"entries"`
	Puts      int64 `json:"puts"`
	Deletes   int64 `json:"deletes"`
	Evictions int64 `json:"evictions"`
}

type entry struct {
	payload   json.RawMessage
	expiresAt int64 // Unix nano
}

// Store is a session-partitioned key-value map with per-entry expiry.
// All operations are serialized by a single mutex, so for a given
// (session, vectorID) the last Put or Delete wins.
type Store struct {
	mu sync.Mutex

	sessions map[string]map[string]*entry

	// Expiration heap (min-heap by expiration time) across all sessions.
	expirations expirationHeap

	ttl   atomic.Int64
	clock clock.Clock

	puts      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64
}

// New creates a new Store.
func New(cfg Config) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}

	s := &Store{
		sessions:    make(map[string]map[string]*entry),
		expirations: make(expirationHeap, 0),
		clock:       cfg.Clock,
	}
	s.ttl.Store(int64(cfg.TTL))
	heap.Init(&s.expirations)
	return s
}

// TTL returns the lifetime applied to new writes.
func (s *Store) TTL() time.Duration {
	return time.Duration(s.ttl.Load())
}

// SetTTL changes the lifetime applied to subsequent writes. Entries already
// stored keep their expiry. Non-positive values are ignored.
func (s *Store) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.ttl.Store(int64(ttl))
}

// Put inserts or overwrites the entry and resets its expiry.
// It creates the session partition if absent and never fails.
func (s *Store) Put(session, vectorID string, payload json.RawMessage) {
	expiresAt := s.clock.Now().Add(s.TTL()).UnixNano()

	payloadCopy := make(json.RawMessage, len(payload))
	copy(payloadCopy, payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	partition, ok := s.sessions[session]
	if !ok {
		partition = make(map[string]*entry)
		s.sessions[session] = partition
		metrics.SessionsStored.Inc()
	}
	if _, exists := partition[vectorID]; !exists {
		metrics.VectorsStored.Inc()
	}
	partition[vectorID] = &entry{
		payload:   payloadCopy,
		expiresAt: expiresAt,
	}

	heap.Push(&s.expirations, &expirationEntry{
		session:    session,
		vectorID:   vectorID,
		expiration: expiresAt,
	})

	s.puts.Add(1)
}

// Get sweeps expired entries across all sessions, then returns a copy of
// the live entries of session. An unknown session yields an empty map.
func (s *Store) Get(session string) map[string]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UnixNano()
	s.sweepLocked(now)

	partition := s.sessions[session]
	result := make(map[string]json.RawMessage, len(partition))
	for id, e := range partition {
		// Entries expiring exactly now were already swept.
		payloadCopy := make(json.RawMessage, len(e.payload))
		copy(payloadCopy, e.payload)
		result[id] = payloadCopy
	}
	return result
}

// Delete removes the entry. It returns a NotFound RelayError when the entry
// is absent or already past its expiry.
func (s *Store) Delete(session, vectorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	partition, ok := s.sessions[session]
	if !ok {
		metrics.VectorDeletes.WithLabelValues("not_found").Inc()
		return relayerrors.NewNotFoundError(session, vectorID)
	}
	e, ok := partition[vectorID]
	if !ok {
		metrics.VectorDeletes.WithLabelValues("not_found").Inc()
		return relayerrors.NewNotFoundError(session, vectorID)
	}

	s.removeLocked(session, partition, vectorID)

	if e.expiresAt <= s.clock.Now().UnixNano() {
		// Invisible already; the removal above is housekeeping.
		s.evictions.Add(1)
		metrics.VectorsEvicted.Inc()
		metrics.VectorDeletes.WithLabelValues("not_found").Inc()
		return relayerrors.NewNotFoundError(session, vectorID)
	}

	s.deletes.Add(1)
	metrics.VectorDeletes.WithLabelValues("deleted").Inc()
	return nil
}

// Sweep removes every expired entry across all sessions and reports how many
// were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.clock.Now().UnixNano())
}

// sweepLocked pops expired records off the heap. Records made stale by an
// overwrite or a delete no longer match the stored expiry and are dropped.
func (s *Store) sweepLocked(now int64) int {
	removed := 0
	for s.expirations.Len() > 0 {
		rec := s.expirations[0]
		if rec.expiration > now {
			break // Heap is sorted, no more expired entries
		}
		heap.Pop(&s.expirations)

		partition, ok := s.sessions[rec.session]
		if !ok {
			continue
		}
		e, ok := partition[rec.vectorID]
		if !ok || e.expiresAt != rec.expiration {
			continue
		}
		s.removeLocked(rec.session, partition, rec.vectorID)
		removed++
	}

	if removed > 0 {
		s.evictions.Add(int64(removed))
		metrics.VectorsEvicted.Add(float64(removed))
	}
	return removed
}

// removeLocked deletes one entry and drops the partition once it is empty.
func (s *Store) removeLocked(session string, partition map[string]*entry, vectorID string) {
	delete(partition, vectorID)
	metrics.VectorsStored.Dec()
	if len(partition) == 0 {
		delete(s.sessions, session)
		metrics.SessionsStored.Dec()
	}
}

// Len returns the number of entries held, including expired entries that
// have not been swept yet.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, partition := range s.sessions {
		n += len(partition)
	}
	return n
}

// Stats returns store statistics.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	sessions := len(s.sessions)
	entries := 0
	for _, partition := range s.sessions {
		entries += len(partition)
	}
	s.mu.Unlock()

	return Stats{
		Sessions:  sessions,
		Entries:   entries,
		Puts:      s.puts.Load(),
		Deletes:   s.deletes.Load(),
		Evictions: s.evictions.Load(),
	}
}
