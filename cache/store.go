package cache

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// State is the externally visible state of one cache entry.
//
// Data and Err are not mutually exclusive: during an optimistic mutation a
// provisional Data value may coexist with a stale Err until the next
// successful resolution clears it.
type State struct {
	// Data is the last known good value for the key, if any.
	Data any

	// Err is the last fetch or mutation error, cleared on any successful
	// fetch.
	Err error

	// IsValidating reports whether a fetch is currently in flight for the
	// key.
	IsValidating bool

	// IsLoading is true only while the key has never yet produced data.
	IsLoading bool

	// Origin is the resolved, unserialized key that produced this entry. It
	// is bookkeeping for operations that match over original keys.
	Origin any

	// Committed holds the value that was committed before an optimistic
	// overwrite, staged so a failed mutation can roll back. HasCommitted
	// distinguishes a staged nil from no staged value.
	Committed    any
	HasCommitted bool
}

const (
	patchData uint8 = 1 << iota
	patchErr
	patchValidating
	patchLoading
	patchOrigin
	patchCommitted
	patchClearCommitted
)

// Patch is a partial state update. Only the fields explicitly set on the
// patch are merged over the previous state; everything else is preserved.
// The zero Patch changes nothing.
type Patch struct {
	fields     uint8
	data       any
	err        error
	validating bool
	loading    bool
	origin     any
	committed  any
}

// WithData sets the entry's data.
func (p Patch) WithData(v any) Patch {
	p.fields |= patchData
	p.data = v
	return p
}

// WithErr sets the entry's error. Passing nil clears it.
func (p Patch) WithErr(err error) Patch {
	p.fields |= patchErr
	p.err = err
	return p
}

// WithValidating sets the in-flight flag.
func (p Patch) WithValidating(v bool) Patch {
	p.fields |= patchValidating
	p.validating = v
	return p
}

// WithLoading sets the initial-load flag.
func (p Patch) WithLoading(v bool) Patch {
	p.fields |= patchLoading
	p.loading = v
	return p
}

// WithOrigin records the resolved key that produced the entry.
func (p Patch) WithOrigin(origin any) Patch {
	p.fields |= patchOrigin
	p.origin = origin
	return p
}

// WithCommitted stages a pre-mutation committed value for rollback.
func (p Patch) WithCommitted(v any) Patch {
	p.fields |= patchCommitted
	p.committed = v
	return p
}

// ClearCommitted discards any staged pre-mutation value.
func (p Patch) ClearCommitted() Patch {
	p.fields |= patchClearCommitted
	return p
}

func (p Patch) apply(s State) State {
	if p.fields&patchData != 0 {
		s.Data = p.data
	}
	if p.fields&patchErr != 0 {
		s.Err = p.err
	}
	if p.fields&patchValidating != 0 {
		s.IsValidating = p.validating
	}
	if p.fields&patchLoading != 0 {
		s.IsLoading = p.loading
	}
	if p.fields&patchOrigin != 0 {
		s.Origin = p.origin
	}
	if p.fields&patchCommitted != 0 {
		s.Committed = p.committed
		s.HasCommitted = true
	}
	if p.fields&patchClearCommitted != 0 {
		s.Committed = nil
		s.HasCommitted = false
	}
	return s
}

// Listener observes state transitions for one key. It receives the state
// after and before the change; it decides for itself whether the change is
// observationally significant.
type Listener func(current, previous State)

type listenerEntry struct {
	fn Listener
}

// Store is the shared key-to-state map plus the per-key listener lists. All
// methods are safe for concurrent use. Set merges partial updates and
// synchronously notifies listeners for the key.
//
// The store also remembers, per key, the state produced by the very first
// write during the process lifetime, so a consumer can obtain a consistent
// pre-interactive snapshot without special-casing the first call.
type Store struct {
	entries *xsync.MapOf[string, State]
	first   *xsync.MapOf[string, State]

	mu        sync.Mutex // serializes merges and listener list edits
	listeners map[string][]*listenerEntry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries:   xsync.NewMapOf[string, State](),
		first:     xsync.NewMapOf[string, State](),
		listeners: make(map[string][]*listenerEntry),
	}
}

// Get returns the state for a serialized key, if any.
func (s *Store) Get(key string) (State, bool) {
	return s.entries.Load(key)
}

// First returns the state recorded by the first write ever made for the key.
func (s *Store) First(key string) (State, bool) {
	return s.first.Load(key)
}

// Set merges the patch over the key's previous state and synchronously
// notifies every listener registered for the key with (current, previous).
// It returns the merged state.
func (s *Store) Set(key string, p Patch) State {
	s.mu.Lock()
	prev, _ := s.entries.Load(key)
	cur := p.apply(prev)
	s.entries.Store(key, cur)
	s.first.LoadOrStore(key, cur)
	watchers := make([]*listenerEntry, len(s.listeners[key]))
	copy(watchers, s.listeners[key])
	s.mu.Unlock()

	for _, w := range watchers {
		w.fn(cur, prev)
	}
	return cur
}

// Subscribe registers a listener for the key and returns its unsubscribe
// function. Unsubscribing is idempotent.
func (s *Store) Subscribe(key string, fn Listener) func() {
	entry := &listenerEntry{fn: fn}

	s.mu.Lock()
	s.listeners[key] = append(s.listeners[key], entry)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		current := s.listeners[key]
		for i, e := range current {
			if e == entry {
				s.listeners[key] = append(current[:i:i], current[i+1:]...)
				break
			}
		}
		if len(s.listeners[key]) == 0 {
			delete(s.listeners, key)
		}
	}
}

// Keys returns a snapshot of all serialized keys currently in the store.
func (s *Store) Keys() []string {
	keys := make([]string, 0, s.entries.Size())
	s.entries.Range(func(k string, _ State) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}
