// Package swr implements the stale-while-revalidate engine: request
// deduplication, race resolution for overlapping fetches, optimistic
// mutations with rollback, preloading, and trigger-based revalidation.
//
// # Overview
//
// An Engine binds a cache.Store to a fetcher. Revalidate returns the shared
// outcome of at most one in-flight fetch per key; Mutate writes through the
// cache with optimistic updates and timestamp fencing; Preload warms a key
// before its first consumer asks for it.
//
//	store := cache.NewStore()
//	registry := swr.NewRegistry()
//
//	cfg := swr.DefaultConfig()
//	cfg.Fetcher = func(ctx context.Context, arg any) (any, error) {
//		return loadUser(ctx, arg.(string))
//	}
//
//	engine, err := swr.New(store, registry, cfg)
//	if err != nil {
//		// ...
//	}
//
//	key := cache.StringKey("/users/1")
//	engine.Revalidate(ctx, key)
//	state, _ := engine.GetState(key)
//
// # Ordering guarantees
//
// For a single key the engine guarantees "last dispatched request wins": when
// fetch A starts before fetch B and both resolve, only B's result (or a newer
// one) is ever committed, regardless of arrival order. Mutations fence
// overlapping fetches through the mutation ledger; a fetch dispatched inside
// (or before) a mutation window is discarded, and the mutation re-triggers a
// fresh revalidation once committed.
//
// A deliberate consequence of "last dispatched wins": while a later dispatch
// is hanging, an earlier result that already arrived is discarded rather than
// committed, leaving the entry without an update until the later fetch
// settles.
//
// # Coordination
//
// All coordination is per cache store: a Registry hands each store exactly
// one coordination record holding the in-flight table, mutation ledger,
// preload table, and revalidator registry. Engines sharing a store share
// deduplication; engines on different stores never interfere. There is no
// persistence, all state is lost on process exit.
package swr
