package cache

import (
	"strings"
	"testing"

	"github.com/goliatone/go-swr-cache/pkg/testsupport"
)

func TestSerialize_StringKeyPassesThrough(t *testing.T) {
	s := NewDefaultKeySerializer()

	serialized, arg := s.Serialize(StringKey("/api/users/1"))
	if serialized != "/api/users/1" {
		t.Errorf("expected identity serialization, got %q", serialized)
	}
	if arg != "/api/users/1" {
		t.Errorf("expected the string itself as fetcher arg, got %v", arg)
	}
}

func TestSerialize_EmptyForms(t *testing.T) {
	s := NewDefaultKeySerializer()

	tests := []struct {
		name string
		key  Key
	}{
		{"no key", NoKey()},
		{"empty tuple", TupleKey()},
		{"nil map", MapKey(nil)},
		{"nil thunk", ThunkKey(nil)},
		{"thunk returning no key", ThunkKey(func() Key { return NoKey() })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serialized, arg := s.Serialize(tt.key)
			if serialized != "" {
				t.Errorf("expected empty serialization, got %q", serialized)
			}
			if arg != nil {
				t.Errorf("expected nil fetcher arg, got %v", arg)
			}
		})
	}
}

func TestSerialize_TupleIsDeterministic(t *testing.T) {
	s := NewDefaultKeySerializer()

	first, _ := s.Serialize(TupleKey("users", 42, map[string]any{"active": true}))
	second, _ := s.Serialize(TupleKey("users", 42, map[string]any{"active": true}))
	if first != second {
		t.Errorf("same tuple serialized differently: %q vs %q", first, second)
	}
	if first == "" {
		t.Error("non-empty tuple must not serialize to the empty key")
	}
}

func TestSerialize_TupleArgIsTheWholeTuple(t *testing.T) {
	s := NewDefaultKeySerializer()

	_, arg := s.Serialize(TupleKey("users", 42))
	tuple, ok := arg.([]any)
	if !ok {
		t.Fatalf("expected []any fetcher arg, got %T", arg)
	}
	if len(tuple) != 2 || tuple[0] != "users" || tuple[1] != 42 {
		t.Errorf("unexpected tuple arg: %v", tuple)
	}
}

func TestSerialize_TypeDistinction(t *testing.T) {
	s := NewDefaultKeySerializer()

	withString, _ := s.Serialize(TupleKey(1, "1"))
	withInt, _ := s.Serialize(TupleKey(1, 1))
	if withString == withInt {
		t.Error(`keys [1, "1"] and [1, 1] must not share a cache entry`)
	}
}

func TestSerialize_MapOrderIndependent(t *testing.T) {
	s := NewDefaultKeySerializer()

	a, _ := s.Serialize(MapKey(map[string]any{"b": 2, "a": 1}))
	b, _ := s.Serialize(MapKey(map[string]any{"a": 1, "b": 2}))
	if a != b {
		t.Errorf("field order leaked into the key: %q vs %q", a, b)
	}
}

func TestSerialize_FixtureQueryStable(t *testing.T) {
	s := NewDefaultKeySerializer()

	var query map[string]any
	testsupport.LoadFixtureJSON(t, testsupport.FixturePath("user_query.json"), &query)

	var copied map[string]any
	testsupport.LoadFixtureJSON(t, testsupport.FixturePath("user_query.json"), &copied)

	first, _ := s.Serialize(MapKey(query))
	second, _ := s.Serialize(MapKey(copied))
	if first != second {
		t.Errorf("separately decoded queries serialized differently: %q vs %q", first, second)
	}
}

func TestSerialize_ThunkResolves(t *testing.T) {
	s := NewDefaultKeySerializer()

	serialized, arg := s.Serialize(ThunkKey(func() Key { return StringKey("lazy") }))
	if serialized != "lazy" || arg != "lazy" {
		t.Errorf("thunk should resolve to its result, got (%q, %v)", serialized, arg)
	}
}

func TestSerialize_ThunkPanicDisablesFetching(t *testing.T) {
	s := NewDefaultKeySerializer()

	serialized, arg := s.Serialize(ThunkKey(func() Key {
		panic("dependency not ready")
	}))
	if serialized != "" || arg != nil {
		t.Errorf("a panicking thunk must degrade to the empty key, got (%q, %v)", serialized, arg)
	}
}

func TestSerialize_ThunkDepthBounded(t *testing.T) {
	s := NewDefaultKeySerializer()

	var infinite func() Key
	infinite = func() Key { return ThunkKey(infinite) }

	serialized, _ := s.Serialize(ThunkKey(infinite))
	if serialized != "" {
		t.Errorf("unbounded thunk chains must degrade to the empty key, got %q", serialized)
	}
}

func TestSerialize_LongKeysAreDigested(t *testing.T) {
	s := NewDefaultKeySerializer()

	long := strings.Repeat("payload-", 128)
	serialized, _ := s.Serialize(TupleKey("docs", long))

	if len(serialized) > maxStructuredKeyLen {
		t.Errorf("serialized key not compacted: %d chars", len(serialized))
	}
	if !strings.HasPrefix(serialized, "x:") {
		t.Errorf("compacted key should carry the digest prefix, got %q", serialized)
	}

	again, _ := s.Serialize(TupleKey("docs", long))
	if serialized != again {
		t.Error("digested keys must stay deterministic")
	}
}

func TestSerialize_TypedNilTupleElement(t *testing.T) {
	s := NewDefaultKeySerializer()

	// A typed nil whose String method dereferences the receiver must not
	// take down the caller; it hashes like nil.
	serialized, _ := s.Serialize(TupleKey("users", (*labelRef)(nil)))
	if serialized == "" {
		t.Fatal("tuple with a typed nil element must still produce a key")
	}

	again, _ := s.Serialize(TupleKey("users", (*labelRef)(nil)))
	if serialized != again {
		t.Error("typed nil elements must serialize deterministically")
	}
}

func TestKeyOf_RoundTrip(t *testing.T) {
	s := NewDefaultKeySerializer()

	tests := []struct {
		name string
		key  Key
	}{
		{"string", StringKey("/api/users")},
		{"tuple", TupleKey("users", 7)},
		{"map", MapKey(map[string]any{"page": 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serialized, arg := s.Serialize(tt.key)
			rebuilt := KeyOf(arg)
			roundTripped, _ := s.Serialize(rebuilt)
			if roundTripped != serialized {
				t.Errorf("round trip changed the key: %q vs %q", roundTripped, serialized)
			}
		})
	}
}

func TestKeyOf_UnknownShape(t *testing.T) {
	if !KeyOf(42).IsZero() {
		t.Error("unknown origin shapes must map to the empty key")
	}
	if !KeyOf(nil).IsZero() {
		t.Error("nil origin must map to the empty key")
	}
}
