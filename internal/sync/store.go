package sync

import (
	"context"
	stdsync "sync"

	"github.com/username/deskchat/internal/pkg/logutil"
)

// Status describes the lifecycle state of a cache entry
type Status int

const (
	// StatusAbsent means the key has never been fetched
	StatusAbsent Status = iota
	// StatusLoading means the first fetch for the key is in flight
	StatusLoading
	// StatusReady means the entry holds the last-known server value
	StatusReady
	// StatusError means the last fetch failed; every observer of the key
	// sees the same error until a later fetch succeeds
	StatusError
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// FetchFunc loads the authoritative value for a key from the backend
type FetchFunc func(ctx context.Context) (interface{}, error)

// Snapshot is a point-in-time copy of one cache entry
type Snapshot struct {
	Key    Key
	Status Status
	Value  interface{}
	Err    error
	Stale  bool
}

type entry struct {
	key        Key
	status     Status
	value      interface{}
	err        error
	stale      bool
	generation uint64 // newest fetch issued for this key
}

type watcher struct {
	prefix Key
	ch     chan Key
}

// Store is the process-wide cache mapping query keys to last-known server
// values. All state transitions happen under one mutex, so the apply-order
// invariants hold regardless of how many fetches are in flight: a response
// belonging to a superseded fetch generation is discarded, and patches run
// against the value at the moment they are applied, in resolve order.
type Store struct {
	mu          stdsync.Mutex
	entries     map[string]*entry
	watchers    map[uint64]*watcher
	nextWatcher uint64
	logger      *logutil.Logger
}

// NewStore creates an empty cache store. The store is meant to be built
// once at application start and handed to every consumer.
func NewStore(logger *logutil.Logger) *Store {
	if logger == nil {
		logger = logutil.NewDefault()
	}
	return &Store{
		entries:  make(map[string]*entry),
		watchers: make(map[uint64]*watcher),
		logger:   logger.WithFields(logutil.Fields{"component": "sync.store"}),
	}
}

// Read returns the current entry for key and, when the entry is absent or
// marked stale, starts a background fetch through fetch. The caller is
// never blocked on the network: a stale entry keeps serving its previous
// value while the refetch is in flight, and an absent entry reports
// loading. The fetch outlives the caller's context deadline on purpose —
// superseded results are discarded on arrival rather than requests being
// cancelled.
func (s *Store) Read(ctx context.Context, key Key, fetch FetchFunc) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(key)
	if e.status == StatusAbsent || e.stale {
		e.generation++
		e.stale = false
		if e.status == StatusAbsent {
			e.status = StatusLoading
		}
		gen := e.generation
		fetchCtx := context.WithoutCancel(ctx)
		go func() {
			value, err := fetch(fetchCtx)
			s.complete(key, gen, value, err)
		}()
	}

	return snapshotOf(e)
}

// Peek returns the current entry for key without triggering a fetch
func (s *Store) Peek(key Key) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key.String()]; ok {
		return snapshotOf(e)
	}
	return Snapshot{Key: key, Status: StatusAbsent}
}

// complete applies a fetch result. Results for superseded generations are
// dropped: if the key was invalidated (or re-read) after this fetch was
// issued, a newer fetch owns the entry and an out-of-date response must
// not overwrite it.
func (s *Store) complete(key Key, generation uint64, value interface{}, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key.String()]
	if !ok || e.generation != generation {
		s.logger.Debug("discarding superseded fetch result", logutil.Fields{
			"key":        key.String(),
			"generation": generation,
		})
		return
	}

	if err != nil {
		e.status = StatusError
		e.err = err
		s.logger.Warn("fetch failed", logutil.Fields{
			"key":   key.String(),
			"error": err.Error(),
		})
	} else {
		e.status = StatusReady
		e.value = value
		e.err = nil
	}
	s.notify(key)
}

// Invalidate marks every entry whose key starts with prefix as stale, so
// the next read refetches. Invalidating an already-stale entry is a no-op,
// which makes the operation idempotent.
func (s *Store) Invalidate(prefix Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		if e.status == StatusAbsent || e.stale {
			continue
		}
		e.stale = true
		s.notify(e.key)
	}
}

// Patch applies a pure function to the cached value for key without a
// network round trip. This is the only optimistic-update primitive; it is
// used by the send-message flow, where the server response already carries
// the exact persisted messages. Patches run under the store lock against
// the value at the moment of application, so two rapid sends compose in
// the order their requests resolved instead of clobbering each other.
func (s *Store) Patch(key Key, updater func(old interface{}) interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(key)
	e.value = updater(e.value)
	e.status = StatusReady
	e.err = nil
	s.notify(key)
}

// Subscribe registers interest in changes to keys under prefix. The
// returned channel receives the key of each changed entry; slow consumers
// miss notifications rather than blocking the store. The cancel function
// must be called when the observer goes away.
func (s *Store) Subscribe(prefix Key) (<-chan Key, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextWatcher
	s.nextWatcher++
	w := &watcher{prefix: prefix, ch: make(chan Key, 16)}
	s.watchers[id] = w

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(w.ch)
		}
	}
	return w.ch, cancel
}

// entry returns the entry for key, creating an absent one if needed.
// Caller must hold the lock.
func (s *Store) entry(key Key) *entry {
	canonical := key.String()
	e, ok := s.entries[canonical]
	if !ok {
		e = &entry{key: key, status: StatusAbsent}
		s.entries[canonical] = e
	}
	return e
}

// notify fans a change out to matching watchers. Caller must hold the lock.
func (s *Store) notify(key Key) {
	for _, w := range s.watchers {
		if !key.HasPrefix(w.prefix) {
			continue
		}
		select {
		case w.ch <- key:
		default:
		}
	}
}

func snapshotOf(e *entry) Snapshot {
	return Snapshot{
		Key:    e.key,
		Status: e.status,
		Value:  e.value,
		Err:    e.err,
		Stale:  e.stale,
	}
}
