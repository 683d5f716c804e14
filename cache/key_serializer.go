package cache

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// NamespacePrefix marks serialized keys that belong to specialized cache
// namespaces layered on top of the core store. Bulk operations that walk the
// key space (e.g. predicate mutation) skip entries carrying this prefix.
const NamespacePrefix = "$"

// maxStructuredKeyLen bounds the length of serialized structured keys. Longer
// structural hashes are compacted to an xxhash digest so map keys stay small.
const maxStructuredKeyLen = 256

type keyKind uint8

const (
	keyNone keyKind = iota
	keyString
	keyTuple
	keyMap
	keyThunk
)

// Key is the logical identity of a cacheable request. It is a closed union of
// the supported source forms:
//
//   - a string, used verbatim as the cache identity
//   - a non-empty tuple whose first element is the logical primary key and
//     whose remaining elements are extra fetcher arguments
//   - a plain mapping of fields
//   - a zero-argument thunk producing one of the above (or the empty key to
//     mean "no request")
//   - the empty key, which disables fetching
//
// Two keys address the same cache entry iff their serialized string forms are
// equal.
type Key struct {
	kind   keyKind
	str    string
	tuple  []any
	fields map[string]any
	thunk  func() Key
}

// NoKey returns the empty key. It serializes to "" and disables fetching.
func NoKey() Key {
	return Key{}
}

// StringKey builds a key from a plain string. Serialization is the identity.
func StringKey(s string) Key {
	return Key{kind: keyString, str: s}
}

// TupleKey builds a key from an ordered tuple. An empty tuple is equivalent
// to the empty key.
func TupleKey(parts ...any) Key {
	return Key{kind: keyTuple, tuple: parts}
}

// MapKey builds a key from a plain mapping of fields. A nil map is equivalent
// to the empty key.
func MapKey(fields map[string]any) Key {
	return Key{kind: keyMap, fields: fields}
}

// ThunkKey builds a key from a zero-argument function evaluated at
// serialization time. If the thunk panics, the key degrades to the empty key
// and fetching is disabled rather than the panic propagating.
func ThunkKey(fn func() Key) Key {
	return Key{kind: keyThunk, thunk: fn}
}

// KeyOf rebuilds a Key from a resolved key value, i.e. the second return
// value of KeySerializer.Serialize. Unknown shapes map to the empty key.
func KeyOf(v any) Key {
	switch x := v.(type) {
	case nil:
		return NoKey()
	case string:
		return StringKey(x)
	case []any:
		return TupleKey(x...)
	case map[string]any:
		return MapKey(x)
	}
	return NoKey()
}

// IsZero reports whether the key is the empty key.
func (k Key) IsZero() bool {
	return k.kind == keyNone
}

// KeySerializer normalizes a Key into a stable string identity plus the
// argument to pass to the fetcher. The argument is always the resolved
// pre-serialization value, so a tuple key hands the whole tuple to the
// fetcher, never the hash.
type KeySerializer interface {
	Serialize(key Key) (serialized string, fetcherArg any)
}

// defaultKeySerializer implements KeySerializer on top of StableHasher.
// String keys pass through untouched; structured keys are hashed; empty keys
// and empty tuples serialize to "", the sentinel meaning "fetching disabled".
type defaultKeySerializer struct {
	hasher *StableHasher
}

// NewDefaultKeySerializer creates the default key serializer backed by a
// fresh stable hasher.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{hasher: NewStableHasher()}
}

// Serialize resolves thunks, then produces the canonical string identity and
// the fetcher argument for the key.
func (s *defaultKeySerializer) Serialize(key Key) (string, any) {
	key = resolveKey(key)

	switch key.kind {
	case keyString:
		return key.str, key.str
	case keyTuple:
		if len(key.tuple) == 0 {
			return "", nil
		}
		return s.compact(s.hasher.Hash(key.tuple)), key.tuple
	case keyMap:
		if key.fields == nil {
			return "", nil
		}
		return s.compact(s.hasher.Hash(key.fields)), key.fields
	default:
		return "", nil
	}
}

// compact bounds key length by digesting oversized structural hashes.
func (s *defaultKeySerializer) compact(raw string) string {
	if len(raw) <= maxStructuredKeyLen {
		return raw
	}
	return "x:" + strconv.FormatUint(xxhash.Sum64String(raw), 16)
}

// resolveKey unwraps thunk keys. A panicking thunk means a dependency of the
// key is not ready yet, which disables fetching instead of failing.
func resolveKey(key Key) (resolved Key) {
	const maxThunkDepth = 8

	defer func() {
		if r := recover(); r != nil {
			resolved = NoKey()
		}
	}()

	resolved = key
	for depth := 0; resolved.kind == keyThunk; depth++ {
		if depth >= maxThunkDepth || resolved.thunk == nil {
			return NoKey()
		}
		resolved = resolved.thunk()
	}
	return resolved
}
