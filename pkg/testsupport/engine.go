package testsupport

import (
	"context"
	"sync"
	"sync/atomic"
)

// FetchTracker is a controllable fetcher for engine tests. Every call counts
// itself, then blocks until its gate opens (or immediately returns when the
// tracker is ungated), and resolves to the result configured for that call.
type FetchTracker struct {
	mu      sync.Mutex
	calls   atomic.Int32
	gates   []chan struct{}
	results []fetchResult
	gated   bool

	// Default resolves calls without a queued result.
	Default any
}

type fetchResult struct {
	data any
	err  error
}

// NewFetchTracker creates an ungated tracker resolving every call to def.
func NewFetchTracker(def any) *FetchTracker {
	return &FetchTracker{Default: def}
}

// NewGatedFetchTracker creates a tracker whose calls block until released.
func NewGatedFetchTracker() *FetchTracker {
	return &FetchTracker{gated: true}
}

// Fetch is the swr.Fetcher to hand to the engine configuration.
func (f *FetchTracker) Fetch(ctx context.Context, arg any) (any, error) {
	f.mu.Lock()
	n := int(f.calls.Add(1)) - 1
	var gate chan struct{}
	if f.gated {
		for len(f.gates) <= n {
			f.gates = append(f.gates, make(chan struct{}))
		}
		gate = f.gates[n]
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if n < len(f.results) {
		r := f.results[n]
		return r.data, r.err
	}
	return f.Default, nil
}

// Resolve queues the outcome for the next unconfigured call, in call order.
func (f *FetchTracker) Resolve(data any, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, fetchResult{data: data, err: err})
}

// Release unblocks the i-th call (zero-based) of a gated tracker. Releasing
// before the call arrives is fine; the call passes straight through.
func (f *FetchTracker) Release(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.gates) <= i {
		f.gates = append(f.gates, make(chan struct{}))
	}
	select {
	case <-f.gates[i]:
	default:
		close(f.gates[i])
	}
}

// Calls returns how many times the fetcher has been invoked.
func (f *FetchTracker) Calls() int {
	return int(f.calls.Load())
}

// EventSource is a manual focus/reconnect event source for engine tests. Its
// Register method matches the Config.OnFocus / Config.OnReconnect shape.
type EventSource struct {
	mu  sync.Mutex
	cbs []func()
}

// Register stores the callback and returns its detach function.
func (s *EventSource) Register(cb func()) func() {
	s.mu.Lock()
	s.cbs = append(s.cbs, cb)
	idx := len(s.cbs) - 1
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.cbs) {
			s.cbs[idx] = nil
		}
	}
}

// Emit fires the event to every registered callback.
func (s *EventSource) Emit() {
	s.mu.Lock()
	cbs := make([]func(), len(s.cbs))
	copy(cbs, s.cbs)
	s.mu.Unlock()

	for _, cb := range cbs {
		if cb != nil {
			cb()
		}
	}
}
