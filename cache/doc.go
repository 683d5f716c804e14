// Package cache provides the shared state store, key model, and stable
// hashing used by the revalidation engine.
//
// # Overview
//
// The package exports three building blocks:
//
//   - Key and KeySerializer: a closed union of key source forms (string,
//     tuple, map, thunk, empty) normalized into a canonical string identity
//     plus the argument handed to fetchers
//   - StableHasher: a deterministic, order-independent structural hash used
//     by the serializer for non-string keys
//   - Store: the key-to-state map with merge-on-write semantics, synchronous
//     per-key listeners, and first-seen snapshots
//
// # Key identity
//
// Two keys address the same cache entry exactly when their serialized string
// forms are equal. Strings serialize to themselves; structured keys serialize
// to their structural hash; the empty key (and an empty tuple) serializes to
// "", the sentinel meaning "no active key, fetching disabled".
//
//	ser := cache.NewDefaultKeySerializer()
//	skey, arg := ser.Serialize(cache.TupleKey("/users", 42))
//	// skey is a stable hash of the tuple, arg is []any{"/users", 42}
//
// # Hash stability
//
// Hashing is stable across calls for structurally equal inputs regardless of
// map key insertion order. Each call walks the value with its own visit
// table, so a hash depends only on structure, never on object addresses;
// self-referencing structures resolve to a stable counter token rather than
// looping.
package cache
