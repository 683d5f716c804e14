package swr

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-swr-cache/cache"
	"github.com/goliatone/go-swr-cache/internal/coordination"
)

// Sentinel errors for engine operations.
var (
	// ErrNoKey is returned when an operation that needs a concrete key is
	// given the empty key.
	ErrNoKey = errors.New("swr: key is empty, fetching disabled")

	// ErrNoFetcher is returned when an operation needs a fetcher and none is
	// configured or supplied.
	ErrNoFetcher = errors.New("swr: no fetcher configured")
)

// Registry hands out one coordination record per cache store, so several
// engines sharing a store also share deduplication, fencing, and preloads,
// while engines on different stores never interfere.
type Registry struct {
	inner *coordination.Registry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{inner: coordination.NewRegistry()}
}

// Engine is the revalidation and mutation engine for one cache store. All
// methods are safe for concurrent use.
type Engine struct {
	store *cache.Store
	rec   *coordination.Record
	ser   cache.KeySerializer
	cfg   Config
	log   Logger

	detachFocus     func()
	detachReconnect func()
}

// New creates an engine bound to the store's coordination record in the
// given registry. The configuration is validated and wired to the focus and
// reconnect event sources it names.
func New(store *cache.Store, registry *Registry, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, errors.New("swr: store is nil")
	}
	if registry == nil {
		return nil, errors.New("swr: registry is nil")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("swr: invalid config: %w", err)
	}

	e := &Engine{
		store: store,
		rec:   registry.inner.Record(store),
		ser:   cache.NewDefaultKeySerializer(),
		cfg:   cfg,
		log:   cfg.Logger,
	}

	if cfg.OnFocus != nil {
		e.detachFocus = cfg.OnFocus(func() { e.broadcast(coordination.ReasonFocus) })
	}
	if cfg.OnReconnect != nil {
		e.detachReconnect = cfg.OnReconnect(func() { e.broadcast(coordination.ReasonReconnect) })
	}
	return e, nil
}

// Close detaches the engine from its focus and reconnect event sources.
// In-flight fetches are not aborted; their results settle normally.
func (e *Engine) Close() {
	if e.detachFocus != nil {
		e.detachFocus()
	}
	if e.detachReconnect != nil {
		e.detachReconnect()
	}
}

// Store returns the underlying cache store.
func (e *Engine) Store() *cache.Store {
	return e.store
}

// GetState returns the current cache state for the key.
func (e *Engine) GetState(key cache.Key) (cache.State, bool) {
	skey, _ := e.ser.Serialize(key)
	if skey == "" {
		return cache.State{}, false
	}
	return e.store.Get(skey)
}

// Subscribe registers a listener for the key's state transitions and returns
// its unsubscribe function.
func (e *Engine) Subscribe(key cache.Key, fn cache.Listener) (func(), error) {
	skey, _ := e.ser.Serialize(key)
	if skey == "" {
		return nil, ErrNoKey
	}
	return e.store.Subscribe(skey, fn), nil
}

// broadcast fans an environment event out to every registered revalidator.
func (e *Engine) broadcast(reason coordination.Reason) {
	for _, skey := range e.rec.RevalidatorKeys() {
		for _, fn := range e.rec.Revalidators(skey) {
			fn(reason)
		}
	}
}

// triggerRevalidation propagates a committed mutation: the first registered
// consumer for the key is asked to revalidate, or the engine revalidates
// directly when nobody is attached.
func (e *Engine) triggerRevalidation(key cache.Key, skey string) {
	if fns := e.rec.Revalidators(skey); len(fns) > 0 {
		fns[0](coordination.ReasonMutate)
		return
	}
	go e.Revalidate(context.Background(), key)
}
