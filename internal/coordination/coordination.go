// Package coordination holds the per-store coordination record: the logical
// clock, in-flight request table, mutation ledger, preload table, and
// revalidator registry that the engine uses to fence overlapping operations.
//
// One Record exists per cache store instance, resolved through an explicit
// Registry keyed by store identity, so independent stores never interfere.
package coordination

import (
	"sync"

	"github.com/goliatone/go-swr-cache/cache"
)

// Reason identifies why a registered revalidator is being triggered.
type Reason int

const (
	// ReasonFocus is a window/application focus event.
	ReasonFocus Reason = iota + 1
	// ReasonReconnect is a network reconnect event.
	ReasonReconnect
	// ReasonMutate is a committed mutation for the key.
	ReasonMutate
)

// Inflight is one shared fetch result. The dispatcher fills Data, Err and
// Committed, then closes Done; joiners block on Done and read the outcome.
// There is no true cancellation: a joiner that stops waiting simply abandons
// the handle without aborting the underlying fetch.
type Inflight struct {
	Done      chan struct{}
	Data      any
	Err       error
	Committed bool
}

// NewInflight creates an unresolved in-flight handle.
func NewInflight() *Inflight {
	return &Inflight{Done: make(chan struct{})}
}

type flightEntry struct {
	req       *Inflight
	startedAt int64
}

type revalidator struct {
	fn func(Reason)
}

// Record is the coordination state for a single cache store. All methods are
// safe for concurrent use; every compound check-and-act runs under one lock
// so reads are never acted upon after becoming stale.
type Record struct {
	mu           sync.Mutex
	clock        int64
	flights      map[string]flightEntry
	mutations    map[string][2]int64
	preloads     map[string]*Inflight
	revalidators map[string][]*revalidator
}

// NewRecord creates an empty coordination record.
func NewRecord() *Record {
	return &Record{
		flights:      make(map[string]flightEntry),
		mutations:    make(map[string][2]int64),
		preloads:     make(map[string]*Inflight),
		revalidators: make(map[string][]*revalidator),
	}
}

// next mints a monotonically increasing logical timestamp. Callers hold mu.
func (r *Record) next() int64 {
	r.clock++
	return r.clock
}

// Acquire joins the in-flight request for key when one exists and dedupe is
// enabled; otherwise it registers a fresh dispatch. For a fresh dispatch the
// pending preload for the key, if any, is consumed and returned so the caller
// adopts its result instead of fetching again.
func (r *Record) Acquire(key string, dedupe bool) (req *Inflight, startedAt int64, dispatcher bool, adopted *Inflight) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.flights[key]; ok && dedupe {
		return existing.req, existing.startedAt, false, nil
	}

	req = NewInflight()
	startedAt = r.next()
	if pending, ok := r.preloads[key]; ok {
		delete(r.preloads, key)
		adopted = pending
	}
	r.flights[key] = flightEntry{req: req, startedAt: startedAt}
	return req, startedAt, true, adopted
}

// FlightMatches reports whether the in-flight record for key still belongs to
// the dispatch started at startedAt. A mismatch means a later dispatch has
// superseded this one.
func (r *Record) FlightMatches(key string, startedAt int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.flights[key]
	return ok && entry.startedAt == startedAt
}

// ReleaseFlight deletes the in-flight record for key, but only if it still
// belongs to the dispatch started at startedAt.
func (r *Record) ReleaseFlight(key string, startedAt int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.flights[key]; ok && entry.startedAt == startedAt {
		delete(r.flights, key)
	}
}

// OpenMutation opens a mutation window for key and returns its start
// timestamp. The window stays open (end == 0) until CloseMutation.
func (r *Record) OpenMutation(key string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := r.next()
	r.mutations[key] = [2]int64{start, 0}
	return start
}

// MutationOwner reports whether the mutation window for key still belongs to
// the mutation that opened it at start.
func (r *Record) MutationOwner(key string, start int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	window, ok := r.mutations[key]
	return ok && window[0] == start
}

// CloseMutation stamps the end of the mutation window opened at start. It is
// a no-op when a newer mutation has taken over the key.
func (r *Record) CloseMutation(key string, start int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	window, ok := r.mutations[key]
	if !ok || window[0] != start {
		return false
	}
	r.mutations[key] = [2]int64{start, r.next()}
	return true
}

// MutationOverlaps reports whether a fetch dispatched at fetchStart is stale
// relative to the mutation window recorded for key: it predates the window's
// start, predates its end, or the window is still open.
func (r *Record) MutationOverlaps(key string, fetchStart int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	window, ok := r.mutations[key]
	if !ok {
		return false
	}
	return fetchStart <= window[0] || window[1] == 0 || fetchStart <= window[1]
}

// EnsurePreload returns the pending preload for key, creating one when none
// exists. loaded reports whether an existing handle was returned.
func (r *Record) EnsurePreload(key string) (req *Inflight, loaded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.preloads[key]; ok {
		return existing, true
	}
	req = NewInflight()
	r.preloads[key] = req
	return req, false
}

// DropPreload discards the pending preload for key, if any. Mutations consume
// preloads without adopting them.
func (r *Record) DropPreload(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.preloads, key)
}

// AttachRevalidator appends a revalidation callback for key and returns its
// detach function. Detaching is idempotent.
func (r *Record) AttachRevalidator(key string, fn func(Reason)) func() {
	entry := &revalidator{fn: fn}

	r.mu.Lock()
	r.revalidators[key] = append(r.revalidators[key], entry)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		current := r.revalidators[key]
		for i, e := range current {
			if e == entry {
				r.revalidators[key] = append(current[:i:i], current[i+1:]...)
				break
			}
		}
		if len(r.revalidators[key]) == 0 {
			delete(r.revalidators, key)
		}
	}
}

// Revalidators returns a snapshot of the revalidation callbacks for key, in
// attach order.
func (r *Record) Revalidators(key string) []func(Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]func(Reason), 0, len(r.revalidators[key]))
	for _, e := range r.revalidators[key] {
		out = append(out, e.fn)
	}
	return out
}

// RevalidatorKeys returns the keys that currently have attached revalidators.
func (r *Record) RevalidatorKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.revalidators))
	for k := range r.revalidators {
		keys = append(keys, k)
	}
	return keys
}

// Registry maps cache store instances to their coordination records. It is
// the explicit replacement for hidden module-level coordination state: one
// record per store, created on first use.
type Registry struct {
	mu      sync.Mutex
	records map[*cache.Store]*Record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[*cache.Store]*Record)}
}

// Record returns the coordination record for the store, creating it when the
// store is seen for the first time.
func (g *Registry) Record(store *cache.Store) *Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[store]
	if !ok {
		rec = NewRecord()
		g.records[store] = rec
	}
	return rec
}
