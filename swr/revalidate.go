package swr

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/goliatone/go-swr-cache/cache"
)

// Revalidate refreshes the key by invoking the configured fetcher, joining an
// already in-flight fetch for the same key unless deduplication is disabled.
// It blocks until the shared result settles and reports whether an outcome
// (data or error) was applied to the cache; discarded results and no-op calls
// report false.
//
// The call is a no-op when the key is empty, no fetcher is configured, the
// context is already canceled, or the engine is paused.
func (e *Engine) Revalidate(ctx context.Context, key cache.Key, opts ...RevalidateOption) bool {
	o := newRevalidateOptions(opts)
	if ctx == nil {
		ctx = context.Background()
	}

	skey, arg := e.ser.Serialize(key)
	if skey == "" || e.cfg.Fetcher == nil || ctx.Err() != nil || e.cfg.IsPaused() {
		return false
	}

	req, startedAt, dispatcher, adopted := e.rec.Acquire(skey, o.dedupe)

	prev, had := e.store.Get(skey)
	patch := cache.Patch{}.WithValidating(true).WithOrigin(arg)
	fresh := !had || (prev.Data == nil && prev.Err == nil)
	if fresh {
		patch = patch.WithLoading(true)
	}
	e.store.Set(skey, patch)

	if !dispatcher {
		// Joiner: share the dispatcher's outcome. Detaching early means no
		// callbacks fire for this caller, but the fetch itself carries on.
		select {
		case <-req.Done:
			return req.Committed
		case <-ctx.Done():
			return false
		}
	}

	var slow *time.Timer
	if fresh && e.cfg.LoadingTimeout > 0 && e.cfg.OnLoadingSlow != nil {
		slowKey := skey
		slow = time.AfterFunc(e.cfg.LoadingTimeout, func() { e.cfg.OnLoadingSlow(slowKey) })
	}

	e.log.Debug("revalidate dispatched", Fields{"key": skey, "adopted_preload": adopted != nil})

	var data any
	var ferr error
	if adopted != nil {
		select {
		case <-adopted.Done:
			data, ferr = adopted.Data, adopted.Err
		case <-ctx.Done():
			data, ferr = nil, ctx.Err()
		}
	} else {
		data, ferr = e.callFetcher(ctx, arg)
	}
	if slow != nil {
		slow.Stop()
	}

	// Joiners are released no matter what: a lifecycle callback panicking
	// while the result is applied must not leave them waiting forever.
	req.Data, req.Err = data, ferr
	defer close(req.Done)

	committed := e.settle(key, skey, startedAt, data, ferr, o.retryCount)
	req.Committed = committed
	return committed
}

// settle applies a settled fetch to the cache, running the staleness and
// mutation-overlap checks before any write. Only the dispatcher reaches this
// code, so lifecycle callbacks never fire for joiners.
func (e *Engine) settle(key cache.Key, skey string, startedAt int64, data any, ferr error, retryCount int) bool {
	// A later dispatch strictly dominates: it started after this one, so its
	// eventual result is at least as new. Drop ours without touching state.
	if !e.rec.FlightMatches(skey, startedAt) {
		e.log.Debug("fetch result discarded: superseded by later dispatch", Fields{"key": skey})
		if e.cfg.OnDiscarded != nil {
			e.cfg.OnDiscarded(skey)
		}
		return false
	}

	defer e.scheduleFlightRelease(skey, startedAt)

	if e.rec.MutationOverlaps(skey, startedAt) {
		e.store.Set(skey, cache.Patch{}.WithValidating(false).WithLoading(false))
		e.log.Debug("fetch result discarded: overlapping mutation", Fields{"key": skey})
		if e.cfg.OnDiscarded != nil {
			e.cfg.OnDiscarded(skey)
		}
		return false
	}

	if ferr != nil {
		if e.cfg.IsPaused() {
			e.store.Set(skey, cache.Patch{}.WithValidating(false).WithLoading(false))
			return false
		}
		// Errors are never deep-compared: a new error object always counts
		// as a change.
		e.store.Set(skey, cache.Patch{}.WithValidating(false).WithLoading(false).WithErr(ferr))
		if e.cfg.OnError != nil {
			e.cfg.OnError(ferr, skey)
		}
		e.scheduleRetry(key, skey, startedAt, ferr, retryCount)
		return true
	}

	cur, _ := e.store.Get(skey)
	patch := cache.Patch{}.WithValidating(false).WithLoading(false).WithErr(nil)
	if !e.cfg.Compare(data, cur.Data) {
		patch = patch.WithData(data)
	}
	e.store.Set(skey, patch)
	if e.cfg.OnSuccess != nil {
		e.cfg.OnSuccess(data, skey)
	}
	return true
}

// scheduleFlightRelease removes the in-flight record once the deduping
// interval elapses, so a near-simultaneous re-request still joins it, unless
// a newer dispatch has already replaced the record.
func (e *Engine) scheduleFlightRelease(skey string, startedAt int64) {
	if e.cfg.DedupingInterval <= 0 {
		e.rec.ReleaseFlight(skey, startedAt)
		return
	}
	time.AfterFunc(e.cfg.DedupingInterval, func() {
		e.rec.ReleaseFlight(skey, startedAt)
	})
}

// scheduleRetry applies the retry policy after a failed fetch. Retries only
// run for consumers that are currently active, except when neither focus nor
// reconnect revalidation is enabled; then nothing else would ever refresh the
// key, so the retry runs regardless.
func (e *Engine) scheduleRetry(key cache.Key, skey string, startedAt int64, err error, retryCount int) {
	if !e.cfg.ShouldRetryOnError(err) {
		return
	}
	active := e.cfg.IsVisible() && e.cfg.IsOnline()
	if !active && (e.cfg.RevalidateOnFocus || e.cfg.RevalidateOnReconnect) {
		return
	}
	if e.cfg.ErrorRetryCount > 0 && retryCount >= e.cfg.ErrorRetryCount {
		return
	}

	// The failed flight is released up front so the retry never rejoins it.
	// Revalidating on a fresh goroutine keeps an inline retry() call from a
	// custom policy from blocking the settling fetch.
	retry := func() {
		e.rec.ReleaseFlight(skey, startedAt)
		go e.Revalidate(context.Background(), key, withRetryCount(retryCount+1))
	}
	if e.cfg.OnErrorRetry != nil {
		e.cfg.OnErrorRetry(err, skey, retryCount, retry)
		return
	}

	delay := retryBackoff(e.cfg.ErrorRetryInterval, retryCount)
	e.log.Debug("scheduling error retry", Fields{"key": skey, "attempt": retryCount + 1, "delay": delay})
	time.AfterFunc(delay, retry)
}

// retryBackoff computes the jittered exponential delay:
// random(0.5..1.5) * 2^min(retryCount,8) * base.
func retryBackoff(base time.Duration, retryCount int) time.Duration {
	exp := math.Pow(2, float64(min(retryCount, 8)))
	jitter := rand.Float64() + 0.5
	return time.Duration(jitter * exp * float64(base))
}

// callFetcher invokes the configured fetcher, converting a panic into an
// ordinary fetch error so one misbehaving fetcher cannot take down every
// joiner sharing the request.
func (e *Engine) callFetcher(ctx context.Context, arg any) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("swr: fetcher panic: %v", r)
		}
	}()
	return e.cfg.Fetcher(ctx, arg)
}
