package coordination

import (
	"testing"

	"github.com/goliatone/go-swr-cache/cache"
)

func TestRecord_AcquireJoinsWithDedupe(t *testing.T) {
	r := NewRecord()

	req1, started1, dispatcher1, _ := r.Acquire("k", true)
	if !dispatcher1 {
		t.Fatal("first acquire must dispatch")
	}

	req2, started2, dispatcher2, _ := r.Acquire("k", true)
	if dispatcher2 {
		t.Fatal("second acquire with dedupe must join")
	}
	if req1 != req2 || started1 != started2 {
		t.Error("joiner must share the dispatcher's request and timestamp")
	}
}

func TestRecord_AcquireWithoutDedupeSupersedes(t *testing.T) {
	r := NewRecord()

	_, started1, _, _ := r.Acquire("k", true)
	_, started2, dispatcher2, _ := r.Acquire("k", false)

	if !dispatcher2 {
		t.Fatal("acquire without dedupe must dispatch fresh")
	}
	if started2 <= started1 {
		t.Errorf("timestamps must be monotonic: %d then %d", started1, started2)
	}
	if r.FlightMatches("k", started1) {
		t.Error("superseded dispatch must no longer own the flight")
	}
	if !r.FlightMatches("k", started2) {
		t.Error("latest dispatch must own the flight")
	}
}

func TestRecord_ReleaseFlightChecksOwnership(t *testing.T) {
	r := NewRecord()

	_, started1, _, _ := r.Acquire("k", true)
	_, started2, _, _ := r.Acquire("k", false)

	r.ReleaseFlight("k", started1) // stale release must be ignored
	if !r.FlightMatches("k", started2) {
		t.Fatal("stale release removed the live flight")
	}

	r.ReleaseFlight("k", started2)
	if r.FlightMatches("k", started2) {
		t.Error("owned release must remove the flight")
	}
}

func TestRecord_AcquireConsumesPreload(t *testing.T) {
	r := NewRecord()

	pre, loaded := r.EnsurePreload("k")
	if loaded {
		t.Fatal("first ensure must create the preload")
	}

	_, _, _, adopted := r.Acquire("k", true)
	if adopted != pre {
		t.Fatal("fresh dispatch must adopt the pending preload")
	}

	_, _, _, again := r.Acquire("k", false)
	if again != nil {
		t.Error("preload must be consumed exactly once")
	}
}

func TestRecord_JoinerDoesNotConsumePreload(t *testing.T) {
	r := NewRecord()

	r.Acquire("k", true)
	r.EnsurePreload("k")

	_, _, dispatcher, adopted := r.Acquire("k", true)
	if dispatcher {
		t.Fatal("expected a joiner")
	}
	if adopted != nil {
		t.Error("joiners must not consume preloads")
	}

	if _, loaded := r.EnsurePreload("k"); !loaded {
		t.Error("preload should still be pending")
	}
}

func TestRecord_DropPreload(t *testing.T) {
	r := NewRecord()

	r.EnsurePreload("k")
	r.DropPreload("k")

	if _, loaded := r.EnsurePreload("k"); loaded {
		t.Error("dropped preload must not be returned")
	}
}

func TestRecord_MutationWindow(t *testing.T) {
	r := NewRecord()

	fetchBefore, _, _, _ := flightFor(r, "clock-before")
	start := r.OpenMutation("k")

	if !r.MutationOwner("k", start) {
		t.Fatal("opener must own the window")
	}

	// Open window overlaps everything.
	if !r.MutationOverlaps("k", fetchBefore) {
		t.Error("fetch predating the window must overlap")
	}
	later, _, _, _ := flightFor(r, "clock-open")
	if !r.MutationOverlaps("k", later) {
		t.Error("any fetch overlaps an open window")
	}

	if !r.CloseMutation("k", start) {
		t.Fatal("owner close must succeed")
	}

	// Closed window: only fetches dispatched after the end escape it.
	if !r.MutationOverlaps("k", fetchBefore) {
		t.Error("fetch started before the window must still overlap")
	}
	after, _, _, _ := flightFor(r, "clock-after")
	if r.MutationOverlaps("k", after) {
		t.Error("fetch dispatched after the close must not overlap")
	}
}

func TestRecord_NewerMutationTakesOver(t *testing.T) {
	r := NewRecord()

	first := r.OpenMutation("k")
	second := r.OpenMutation("k")

	if r.MutationOwner("k", first) {
		t.Error("first mutation must have lost ownership")
	}
	if r.CloseMutation("k", first) {
		t.Error("stale close must be refused")
	}
	if !r.CloseMutation("k", second) {
		t.Error("current owner must close successfully")
	}
}

func TestRecord_RevalidatorLifecycle(t *testing.T) {
	r := NewRecord()

	var reasons []Reason
	detach := r.AttachRevalidator("k", func(reason Reason) {
		reasons = append(reasons, reason)
	})

	for _, fn := range r.Revalidators("k") {
		fn(ReasonMutate)
	}
	if len(reasons) != 1 || reasons[0] != ReasonMutate {
		t.Fatalf("expected one mutate trigger, got %v", reasons)
	}

	detach()
	detach() // idempotent

	if got := r.Revalidators("k"); len(got) != 0 {
		t.Errorf("detached revalidator still listed: %d", len(got))
	}
	if keys := r.RevalidatorKeys(); len(keys) != 0 {
		t.Errorf("key should be gone once empty: %v", keys)
	}
}

func TestRegistry_OneRecordPerStore(t *testing.T) {
	g := NewRegistry()

	a := cache.NewStore()
	b := cache.NewStore()

	if g.Record(a) != g.Record(a) {
		t.Error("same store must resolve to the same record")
	}
	if g.Record(a) == g.Record(b) {
		t.Error("different stores must get independent records")
	}
}

// flightFor mints a logical timestamp by dispatching a throwaway flight.
func flightFor(r *Record, key string) (int64, *Inflight, bool, *Inflight) {
	req, startedAt, dispatcher, adopted := r.Acquire(key, true)
	return startedAt, req, dispatcher, adopted
}
