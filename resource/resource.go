package resource

import (
	"context"

	"github.com/goliatone/go-swr-cache/cache"
	"github.com/goliatone/go-swr-cache/swr"
)

// Resource is a typed facade over the engine for one logical resource type.
// It keeps the stale-while-revalidate contract: reads return the best known
// value immediately and refresh it in the background.
type Resource[T any] struct {
	engine *swr.Engine
}

// New creates a typed resource bound to the engine.
func New[T any](engine *swr.Engine) *Resource[T] {
	return &Resource[T]{engine: engine}
}

// Engine exposes the underlying engine for operations the typed surface does
// not cover.
func (r *Resource[T]) Engine() *swr.Engine {
	return r.engine
}

// Get returns the value for the key. When a value is already cached it is
// returned immediately and a background revalidation keeps it fresh;
// otherwise Get blocks on the first fetch and returns its outcome.
func (r *Resource[T]) Get(ctx context.Context, key cache.Key) (T, error) {
	if st, ok := r.engine.GetState(key); ok && st.Data != nil {
		go r.engine.Revalidate(context.Background(), key)
		return r.typed(st.Data), nil
	}

	r.engine.Revalidate(ctx, key)
	st, _ := r.engine.GetState(key)
	if st.Err != nil {
		var zero T
		return zero, st.Err
	}
	return r.typed(st.Data), nil
}

// Peek returns the cached value without triggering any fetch.
func (r *Resource[T]) Peek(key cache.Key) (T, bool) {
	st, ok := r.engine.GetState(key)
	if !ok || st.Data == nil {
		var zero T
		return zero, false
	}
	v, ok := st.Data.(T)
	return v, ok
}

// Mutate writes a typed replacement value for the key.
func (r *Resource[T]) Mutate(ctx context.Context, key cache.Key, value T, opts ...swr.MutateOption) (T, error) {
	res, err := r.engine.Mutate(ctx, key, value, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.typed(res), nil
}

// MutateWith resolves the replacement value from the currently committed one.
func (r *Resource[T]) MutateWith(ctx context.Context, key cache.Key, fn func(ctx context.Context, committed T) (T, error), opts ...swr.MutateOption) (T, error) {
	res, err := r.engine.Mutate(ctx, key, swr.MutatorFunc(func(ctx context.Context, committed any) (any, error) {
		var cur T
		if committed != nil {
			cur, _ = committed.(T)
		}
		return fn(ctx, cur)
	}), opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.typed(res), nil
}

// Preload warms the key with a typed fetcher.
func (r *Resource[T]) Preload(ctx context.Context, key cache.Key, fetch func(ctx context.Context, arg any) (T, error)) (T, error) {
	var fetcher swr.Fetcher
	if fetch != nil {
		fetcher = func(ctx context.Context, arg any) (any, error) {
			return fetch(ctx, arg)
		}
	}
	res, err := r.engine.Preload(ctx, key, fetcher)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.typed(res), nil
}

// Subscribe observes the key's typed data. The listener receives the data and
// error after every state transition.
func (r *Resource[T]) Subscribe(key cache.Key, fn func(data T, err error)) (func(), error) {
	return r.engine.Subscribe(key, func(cur, _ cache.State) {
		fn(r.typed(cur.Data), cur.Err)
	})
}

// Register attaches a consumer for the key; see swr.Engine.Register.
func (r *Resource[T]) Register(key cache.Key, opts ...swr.RegisterOption) (func(), error) {
	return r.engine.Register(key, opts...)
}

// typed converts an untyped cache value, yielding the zero value when the
// entry holds nothing or something of an unexpected type.
func (r *Resource[T]) typed(v any) T {
	if v == nil {
		var zero T
		return zero
	}
	out, _ := v.(T)
	return out
}
