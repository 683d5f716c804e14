// Package resource provides a typed, generics-based facade over the untyped
// engine, so callers work with their domain types instead of any.
//
// A Resource[T] wraps one engine. Reads follow stale-while-revalidate: a
// cached value is returned immediately while a background revalidation
// refreshes it; a cold read blocks on the first fetch.
//
//	users := resource.New[User](engine)
//	u, err := users.Get(ctx, cache.StringKey("/users/1"))
//
// Values that do not assert to T yield T's zero value; the engine itself
// never enforces entry types.
package resource
