package swr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-swr-cache/cache"
)

// Mutate writes data for the key, reconciling against concurrent fetches and
// mutations through the mutation ledger.
//
// value may be:
//
//   - nil: no replacement is supplied, the call just triggers a revalidation
//     for the key and returns the resulting data
//   - a MutatorFunc: invoked with the currently committed value; its result
//     (or error) resolves the mutation, blocking as long as it needs to
//   - anything else: used as the replacement data directly
//
// A mutation superseded by a newer one for the same key abandons all cache
// writes but still returns (or fails with) its own result. Once committed,
// the mutation asynchronously triggers a revalidation unless disabled.
func (e *Engine) Mutate(ctx context.Context, key cache.Key, value any, opts ...MutateOption) (any, error) {
	o := newMutateOptions(opts)
	if ctx == nil {
		ctx = context.Background()
	}

	skey, arg := e.ser.Serialize(key)
	if skey == "" {
		return nil, ErrNoKey
	}

	// No replacement and nothing optimistic: this is a plain revalidation,
	// which adopts a pending preload instead of consuming it.
	if value == nil && !o.hasOptimistic {
		e.Revalidate(ctx, key)
		st, _ := e.store.Get(skey)
		return st.Data, nil
	}

	// A mutation that writes consumes any pending preload: its data predates
	// the write.
	e.rec.DropPreload(skey)

	start := e.rec.OpenMutation(skey)

	displayed, _ := e.store.Get(skey)
	committed := displayed.Data
	if displayed.HasCommitted {
		committed = displayed.Committed
	}

	if o.hasOptimistic {
		optimistic := o.optimisticValue
		if o.optimisticFn != nil {
			optimistic = o.optimisticFn(committed, displayed.Data)
		}
		e.store.Set(skey, cache.Patch{}.WithData(optimistic).WithCommitted(committed).WithOrigin(arg))
	}

	result, merr := e.resolveMutation(ctx, value, committed)

	// A newer mutation opened for this key while we were waiting: hands off
	// the shared cache, the later mutation supersedes this one. The caller
	// still gets this call's own outcome.
	if !e.rec.MutationOwner(skey, start) {
		e.log.Debug("mutation superseded, skipping cache writes", Fields{"key": skey})
		return e.mutationReturn(result, merr, o)
	}

	switch {
	case merr != nil:
		patch := cache.Patch{}.WithErr(merr).ClearCommitted()
		if o.hasOptimistic && o.shouldRollback(merr) {
			patch = patch.WithData(committed)
		}
		e.store.Set(skey, patch)
	case !o.noPopulate:
		populated := result
		if o.transform != nil {
			cur, _ := e.store.Get(skey)
			populated = o.transform(result, cur.Data)
		}
		e.store.Set(skey, cache.Patch{}.WithData(populated).WithErr(nil).ClearCommitted().WithOrigin(arg))
	default:
		e.store.Set(skey, cache.Patch{}.ClearCommitted())
	}

	e.rec.CloseMutation(skey, start)

	if !o.noRevalidate {
		e.triggerRevalidation(key, skey)
	}

	return e.mutationReturn(result, merr, o)
}

// MutateMatching applies the mutation to every cached entry whose resolved
// origin key satisfies the predicate, skipping entries that belong to
// specialized cache namespaces. It returns the per-key results in key-walk
// order and the joined errors, if any.
func (e *Engine) MutateMatching(ctx context.Context, match func(origin any) bool, value any, opts ...MutateOption) ([]any, error) {
	if match == nil {
		return nil, errors.New("swr: match predicate is nil")
	}

	var results []any
	var errs []error
	for _, skey := range e.store.Keys() {
		if strings.HasPrefix(skey, cache.NamespacePrefix) {
			continue
		}
		st, ok := e.store.Get(skey)
		if !ok || !match(st.Origin) {
			continue
		}
		key := cache.KeyOf(st.Origin)
		if key.IsZero() {
			continue
		}
		res, err := e.Mutate(ctx, key, value, opts...)
		results = append(results, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("mutate %q: %w", skey, err))
		}
	}
	return results, errors.Join(errs...)
}

// resolveMutation produces the mutation's replacement value. A MutatorFunc
// failure, including a panic, is captured as the mutation's error without the
// cache having been touched by the resolution itself.
func (e *Engine) resolveMutation(ctx context.Context, value any, committed any) (any, error) {
	switch fn := value.(type) {
	case MutatorFunc:
		return e.callMutator(ctx, fn, committed)
	case func(ctx context.Context, committed any) (any, error):
		return e.callMutator(ctx, fn, committed)
	default:
		return value, nil
	}
}

func (e *Engine) callMutator(ctx context.Context, fn MutatorFunc, committed any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("swr: mutator panic: %v", r)
		}
	}()
	return fn(ctx, committed)
}

func (e *Engine) mutationReturn(result any, merr error, o mutateOptions) (any, error) {
	if merr != nil {
		if o.swallowError {
			return nil, nil
		}
		return nil, merr
	}
	return result, nil
}
