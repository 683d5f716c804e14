package swr

import (
	"context"
	"time"
)

// RevalidateOption tunes a single Revalidate call.
type RevalidateOption func(*revalidateOptions)

type revalidateOptions struct {
	dedupe     bool
	retryCount int
}

func newRevalidateOptions(opts []RevalidateOption) revalidateOptions {
	o := revalidateOptions{dedupe: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithoutDedupe forces a fresh dispatch even when a fetch for the key is
// already in flight. The in-flight record is superseded; the earlier fetch's
// result will be discarded when it settles.
func WithoutDedupe() RevalidateOption {
	return func(o *revalidateOptions) { o.dedupe = false }
}

// withRetryCount threads the retry attempt number through the retry policy.
func withRetryCount(n int) RevalidateOption {
	return func(o *revalidateOptions) { o.retryCount = n }
}

// MutatorFunc computes a mutation's replacement value from the currently
// committed value. It may block (e.g. on a network round trip); a returned
// error becomes the mutation's error.
type MutatorFunc func(ctx context.Context, committed any) (any, error)

// MutateOption tunes a single Mutate call.
type MutateOption func(*mutateOptions)

type mutateOptions struct {
	optimisticValue any
	optimisticFn    func(committed, displayed any) any
	hasOptimistic   bool
	rollbackWhen    func(error) bool
	noRollback      bool
	noPopulate      bool
	noRevalidate    bool
	swallowError    bool
	transform       func(result, current any) any
}

func newMutateOptions(opts []MutateOption) mutateOptions {
	var o mutateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o mutateOptions) shouldRollback(err error) bool {
	if o.noRollback {
		return false
	}
	if o.rollbackWhen != nil {
		return o.rollbackWhen(err)
	}
	return true
}

// WithOptimisticData writes v into the cache immediately, before the
// mutation resolves. The prior committed value is staged for rollback.
func WithOptimisticData(v any) MutateOption {
	return func(o *mutateOptions) {
		o.optimisticValue = v
		o.hasOptimistic = true
	}
}

// WithOptimisticFunc computes the optimistic value from the currently
// committed and currently displayed data.
func WithOptimisticFunc(fn func(committed, displayed any) any) MutateOption {
	return func(o *mutateOptions) {
		o.optimisticFn = fn
		o.hasOptimistic = true
	}
}

// WithoutRollback keeps the optimistic value in place even when the mutation
// fails.
func WithoutRollback() MutateOption {
	return func(o *mutateOptions) { o.noRollback = true }
}

// WithRollbackWhen rolls back the optimistic value only for errors the
// predicate approves.
func WithRollbackWhen(pred func(error) bool) MutateOption {
	return func(o *mutateOptions) { o.rollbackWhen = pred }
}

// WithoutPopulate resolves the mutation without writing its result into the
// cache.
func WithoutPopulate() MutateOption {
	return func(o *mutateOptions) { o.noPopulate = true }
}

// WithTransform passes the resolved value through fn before it is written to
// the cache. fn receives the resolved value and the current cached data.
func WithTransform(fn func(result, current any) any) MutateOption {
	return func(o *mutateOptions) { o.transform = fn }
}

// WithoutRevalidate skips the revalidation normally triggered once the
// mutation commits.
func WithoutRevalidate() MutateOption {
	return func(o *mutateOptions) { o.noRevalidate = true }
}

// WithErrorSwallowed makes Mutate return nil instead of the mutation's error.
// The error still reaches the cache entry and the rollback policy.
func WithErrorSwallowed() MutateOption {
	return func(o *mutateOptions) { o.swallowError = true }
}

// RegisterOption tunes one registered consumer.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	focus             bool
	reconnect         bool
	initial           bool
	refreshInterval   time.Duration
	refreshWhenHidden bool
	refreshWhenOff    bool
}

func (e *Engine) newRegisterOptions(opts []RegisterOption) registerOptions {
	o := registerOptions{
		focus:     e.cfg.RevalidateOnFocus,
		reconnect: e.cfg.RevalidateOnReconnect,
		initial:   true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithoutInitialRevalidation suppresses the revalidation normally kicked off
// when the consumer registers.
func WithoutInitialRevalidation() RegisterOption {
	return func(o *registerOptions) { o.initial = false }
}

// WithFocusRevalidation overrides the engine-level focus default for this
// consumer.
func WithFocusRevalidation(enabled bool) RegisterOption {
	return func(o *registerOptions) { o.focus = enabled }
}

// WithReconnectRevalidation overrides the engine-level reconnect default for
// this consumer.
func WithReconnectRevalidation(enabled bool) RegisterOption {
	return func(o *registerOptions) { o.reconnect = enabled }
}

// WithRefresh polls the key at the given interval while the consumer stays
// registered.
func WithRefresh(interval time.Duration) RegisterOption {
	return func(o *registerOptions) { o.refreshInterval = interval }
}

// RefreshWhenHidden keeps the polling loop running while the consumer is not
// visible.
func RefreshWhenHidden() RegisterOption {
	return func(o *registerOptions) { o.refreshWhenHidden = true }
}

// RefreshWhenOffline keeps the polling loop running while the network is
// down.
func RefreshWhenOffline() RegisterOption {
	return func(o *registerOptions) { o.refreshWhenOff = true }
}
