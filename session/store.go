// Package session implements the concurrent, TTL-pruned in-memory session
// store described in §4.7 of the specification.
package session

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const shardCount = 16

// Nil is the reserved zero-value identifier meaning "no session"; every
// operation on it is a no-op returning the neutral value (property 8).
var Nil uuid.UUID

// Session is one entry in the store.
type Session struct {
	ID           uuid.UUID
	mu           sync.Mutex
	data         map[string]string
	created      time.Time
	lastAccessed time.Time
	lastMutated  time.Time
}

// Created, LastAccessed and LastMutated expose the session's timestamps
// for property-based tests (monotonicity, prune soundness).
func (s *Session) Created() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

func (s *Session) LastAccessed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccessed
}

func (s *Session) LastMutated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMutated
}

type shard struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// Store is a sharded, concurrent session table with two independent
// TTLs and periodic pruning. Grounded on capacitor/pkg/cache/memory's
// cleanup-loop/expiry-scan shape and on bolt/middleware/ratelimit.go's
// per-key sharded limiter store, generalized here to a fixed shard count
// per the spec's own "fine-grained sharded map" design note (§9).
type Store struct {
	shards [shardCount]*shard

	enabled atomic.Bool

	sessionDurationNs  atomic.Int64
	inactiveDurationNs atomic.Int64
	pruneRateNs        atomic.Int64
	lastPruneNs        atomic.Int64

	sweepGroup singleflight.Group

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Store with the given default durations. enabled starts
// true; callers disable via Disable().
func New(sessionDuration, inactiveDuration, pruneRate time.Duration) *Store {
	st := &Store{stopCh: make(chan struct{})}
	for i := range st.shards {
		st.shards[i] = &shard{sessions: make(map[uuid.UUID]*Session)}
	}
	st.enabled.Store(true)
	st.sessionDurationNs.Store(int64(sessionDuration))
	st.inactiveDurationNs.Store(int64(inactiveDuration))
	st.pruneRateNs.Store(int64(pruneRate))
	return st
}

func (st *Store) shardFor(id uuid.UUID) *shard {
	h := fnv.New32a()
	h.Write(id[:])
	return st.shards[h.Sum32()%shardCount]
}

// Enabled reports whether the store currently accepts new sessions.
func (st *Store) Enabled() bool { return st.enabled.Load() }

// Enable turns the store back on.
func (st *Store) Enable() { st.enabled.Store(true) }

// Disable turns the store off and clears every session it holds.
func (st *Store) Disable() {
	st.enabled.Store(false)
	for _, sh := range st.shards {
		sh.mu.Lock()
		sh.sessions = make(map[uuid.UUID]*Session)
		sh.mu.Unlock()
	}
}

func (st *Store) SetSessionDuration(d time.Duration)  { st.sessionDurationNs.Store(int64(d)) }
func (st *Store) SetInactiveDuration(d time.Duration)  { st.inactiveDurationNs.Store(int64(d)) }
func (st *Store) SetPruneRate(d time.Duration)         { st.pruneRateNs.Store(int64(d)) }
func (st *Store) sessionDuration() time.Duration       { return time.Duration(st.sessionDurationNs.Load()) }
func (st *Store) inactiveDuration() time.Duration      { return time.Duration(st.inactiveDurationNs.Load()) }
func (st *Store) pruneRate() time.Duration             { return time.Duration(st.pruneRateNs.Load()) }

// GenerateID produces a UUIDv4 from a CSPRNG, retrying in the vanishingly
// unlikely case of a collision with an existing session.
func (st *Store) GenerateID() uuid.UUID {
	for {
		id := uuid.New()
		if id == Nil {
			continue
		}
		sh := st.shardFor(id)
		sh.mu.RLock()
		_, exists := sh.sessions[id]
		sh.mu.RUnlock()
		if !exists {
			return id
		}
	}
}

// CreateSession mints a fresh session and inserts it, triggering an
// opportunistic prune. Returns Nil when the store is disabled.
func (st *Store) CreateSession() uuid.UUID {
	if !st.Enabled() {
		return Nil
	}
	id := st.GenerateID()
	now := time.Now()
	sh := st.shardFor(id)
	sh.mu.Lock()
	sh.sessions[id] = &Session{ID: id, data: make(map[string]string), created: now, lastAccessed: now, lastMutated: now}
	sh.mu.Unlock()
	st.TryPrune()
	return id
}

// AddSession inserts a session with a caller-chosen id if one is not
// already present. Returns false if disabled, id is Nil, or it exists.
func (st *Store) AddSession(id uuid.UUID) bool {
	if !st.Enabled() || id == Nil {
		return false
	}
	now := time.Now()
	sh := st.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.sessions[id]; exists {
		return false
	}
	sh.sessions[id] = &Session{ID: id, data: make(map[string]string), created: now, lastAccessed: now, lastMutated: now}
	return true
}

func (st *Store) lookup(id uuid.UUID) *Session {
	if id == Nil {
		return nil
	}
	sh := st.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.sessions[id]
}

// WriteSession sets key=value on the session, updating last_mutated and
// last_accessed. An empty value removes the key. Returns true iff the
// session existed.
func (st *Store) WriteSession(id uuid.UUID, key, value string) bool {
	s := st.lookup(id)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.data, key)
	} else {
		s.data[key] = value
	}
	now := time.Now()
	s.lastMutated = now
	s.lastAccessed = now
	return true
}

// ReadSession returns the value for key, updating last_accessed. ok is
// false if the session or key does not exist.
func (st *Store) ReadSession(id uuid.UUID, key string) (value string, ok bool) {
	s := st.lookup(id)
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccessed = time.Now()
	value, ok = s.data[key]
	return value, ok
}

// ClearSession empties the session's data map.
func (st *Store) ClearSession(id uuid.UUID) {
	s := st.lookup(id)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]string)
	s.lastMutated = time.Now()
}

// DeleteSession removes the session entirely.
func (st *Store) DeleteSession(id uuid.UUID) {
	if id == Nil {
		return
	}
	sh := st.shardFor(id)
	sh.mu.Lock()
	delete(sh.sessions, id)
	sh.mu.Unlock()
}

// SessionExists reports whether id names a live session.
func (st *Store) SessionExists(id uuid.UUID) bool {
	return st.lookup(id) != nil
}

// TryPrune runs a prune sweep if prune_rate has elapsed since the last
// one. Concurrent callers collapse into a single in-flight sweep via
// singleflight, so a burst of opportunistic calls after mutations does
// not run the full scan once per caller.
func (st *Store) TryPrune() {
	now := time.Now()
	last := st.lastPruneNs.Load()
	if now.UnixNano()-last < int64(st.pruneRate()) {
		return
	}
	st.sweepGroup.Do("sweep", func() (any, error) {
		st.prune()
		return nil, nil
	})
}

func (st *Store) prune() {
	now := time.Now()
	st.lastPruneNs.Store(now.UnixNano())

	sessionDur := st.sessionDuration()
	inactiveDur := st.inactiveDuration()

	for _, sh := range st.shards {
		sh.mu.Lock()
		for id, s := range sh.sessions {
			s.mu.Lock()
			expired := now.Sub(s.created) >= sessionDur || now.Sub(s.lastAccessed) >= inactiveDur
			s.mu.Unlock()
			if expired {
				delete(sh.sessions, id)
			}
		}
		sh.mu.Unlock()
	}
}

// StartPruneLoop launches a background goroutine that calls prune on a
// fixed interval, per §4.7's "dedicated prune task" alternative to
// opportunistic pruning. Stop via Close.
func (st *Store) StartPruneLoop() {
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(st.pruneRate())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				st.prune()
			case <-st.stopCh:
				return
			}
		}
	}()
}

// Close disables the store and joins the prune loop, if started.
func (st *Store) Close() {
	st.Disable()
	select {
	case <-st.stopCh:
	default:
		close(st.stopCh)
	}
	st.wg.Wait()
}
