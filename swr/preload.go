package swr

import (
	"context"
	"fmt"

	"github.com/goliatone/go-swr-cache/cache"
)

// Preload eagerly fetches the key and parks the pending result so the next
// revalidation (or mutation) for the same key consumes it instead of issuing
// a duplicate fetch. While a preload for the key is pending, further Preload
// calls join it: the fetcher runs exactly once.
//
// A nil fetcher falls back to the engine's configured fetcher. Preload blocks
// until the fetch settles; run it in its own goroutine for fire-and-forget
// prefetching.
func (e *Engine) Preload(ctx context.Context, key cache.Key, fetcher Fetcher) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fetcher == nil {
		fetcher = e.cfg.Fetcher
	}

	skey, arg := e.ser.Serialize(key)
	if skey == "" {
		return nil, ErrNoKey
	}
	if fetcher == nil {
		return nil, ErrNoFetcher
	}

	req, loaded := e.rec.EnsurePreload(skey)
	if loaded {
		select {
		case <-req.Done:
			return req.Data, req.Err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.log.Debug("preload dispatched", Fields{"key": skey})

	data, err := callPreloadFetcher(ctx, fetcher, arg)
	req.Data, req.Err = data, err
	close(req.Done)
	return data, err
}

func callPreloadFetcher(ctx context.Context, fetcher Fetcher, arg any) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("swr: fetcher panic: %v", r)
		}
	}()
	return fetcher(ctx, arg)
}
