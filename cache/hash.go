package cache

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// visitKey identifies a reference-shaped value (pointer, map, slice) within a
// single traversal. Length participates so a resliced view never aliases its
// backing slice's hash.
type visitKey struct {
	ptr  uintptr
	kind reflect.Kind
	size int
}

// StableHasher produces deterministic, order-independent hashes of arbitrary
// structured values. The hash of a value is a compact structural string:
//
//   - slices and arrays hash as "@" followed by each element hash, comma
//     terminated
//   - maps and structs hash as "#" followed by "key:hash," pairs sorted
//     lexicographically by key, skipping nil values
//   - strings hash quoted, so "1" and 1 never collide
//   - times hash via their canonical timestamp form
//   - values implementing fmt.Stringer hash via their string form
//   - functions and channels degrade to a type-tagged token
//
// Each call walks the value with its own visit table, so reference identity
// only matters within one traversal: a self-referencing structure resolves to
// a stable counter token instead of looping forever, and the hash of a value
// depends only on its structure, never on where a previously hashed value
// happened to live in memory. Hash never panics.
type StableHasher struct{}

// NewStableHasher creates a stable hasher.
func NewStableHasher() *StableHasher {
	return &StableHasher{}
}

// Hash returns the structural hash of v.
func (h *StableHasher) Hash(v any) string {
	w := hashWalk{seen: make(map[visitKey]string)}
	return w.hash(v)
}

// hashWalk is the per-call traversal state: visited references and the
// counter minting provisional cycle tokens.
type hashWalk struct {
	seen    map[visitKey]string
	counter uint64
}

func (w *hashWalk) hash(v any) string {
	if v == nil {
		return "null"
	}

	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	}

	rv := reflect.ValueOf(v)

	// Typed nils degrade like untyped nil before any method dispatch; a
	// Stringer with a pointer receiver must never be called on one.
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map:
		if rv.IsNil() {
			return "null"
		}
	}

	if s, ok := v.(fmt.Stringer); ok {
		return stringerToken(s)
	}

	switch rv.Kind() {
	case reflect.Pointer:
		return w.visited(visitKey{ptr: rv.Pointer(), kind: reflect.Pointer}, func() string {
			return w.hash(rv.Elem().Interface())
		})
	case reflect.Slice:
		return w.visited(visitKey{ptr: rv.Pointer(), kind: reflect.Slice, size: rv.Len()}, func() string {
			return w.hashSequence(rv)
		})
	case reflect.Array:
		return w.hashSequence(rv)
	case reflect.Map:
		return w.visited(visitKey{ptr: rv.Pointer(), kind: reflect.Map, size: rv.Len()}, func() string {
			return w.hashMap(rv)
		})
	case reflect.Struct:
		return w.hashStruct(rv)
	case reflect.Func:
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// visited returns the hash already computed for a reference in this walk,
// minting a provisional counter token before recursing so cyclic structures
// terminate.
func (w *hashWalk) visited(key visitKey, compute func() string) string {
	if cached, ok := w.seen[key]; ok {
		return cached
	}
	w.counter++
	w.seen[key] = strconv.FormatUint(w.counter, 10) + "~"
	out := compute()
	w.seen[key] = out
	return out
}

func (w *hashWalk) hashSequence(rv reflect.Value) string {
	var b strings.Builder
	b.WriteByte('@')
	for i := 0; i < rv.Len(); i++ {
		b.WriteString(w.hash(rv.Index(i).Interface()))
		b.WriteByte(',')
	}
	return b.String()
}

// hashMap visits entries in sorted key order so cycle tokens are assigned
// deterministically regardless of map iteration order.
func (w *hashWalk) hashMap(rv reflect.Value) string {
	type entry struct {
		name string
		key  reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key()
		entries = append(entries, entry{name: w.keyName(k), key: k})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	var b strings.Builder
	b.WriteByte('#')
	for _, e := range entries {
		value := rv.MapIndex(e.key).Interface()
		if value == nil {
			continue
		}
		b.WriteString(e.name)
		b.WriteByte(':')
		b.WriteString(w.hash(value))
		b.WriteByte(',')
	}
	return b.String()
}

func (w *hashWalk) hashStruct(rv reflect.Value) string {
	rt := rv.Type()
	pairs := make([]string, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		value := rv.Field(i).Interface()
		if value == nil {
			continue
		}
		pairs = append(pairs, field.Name+":"+w.hash(value)+",")
	}
	sort.Strings(pairs)
	return "#" + strings.Join(pairs, "")
}

// keyName renders a map key for the sorted object form. String keys stay
// verbatim so they read like field names; everything else uses its hash.
func (w *hashWalk) keyName(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return w.hash(k.Interface())
}

// stringerToken renders a Stringer, degrading to a type tag if the String
// method panics on a value it did not expect.
func stringerToken(s fmt.Stringer) (out string) {
	defer func() {
		if recover() != nil {
			out = fmt.Sprintf("%T:!", s)
		}
	}()
	return s.String()
}
