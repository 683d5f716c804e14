package testsupport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFetchTracker_UngatedResolvesImmediately(t *testing.T) {
	tracker := NewFetchTracker("default")
	tracker.Resolve("queued", nil)

	data, err := tracker.Fetch(context.Background(), nil)
	if err != nil || data != "queued" {
		t.Errorf("first call = (%v, %v)", data, err)
	}

	data, err = tracker.Fetch(context.Background(), nil)
	if err != nil || data != "default" {
		t.Errorf("unconfigured call must fall back to the default, got (%v, %v)", data, err)
	}

	if tracker.Calls() != 2 {
		t.Errorf("calls = %d", tracker.Calls())
	}
}

func TestFetchTracker_QueuedErrors(t *testing.T) {
	boom := errors.New("boom")
	tracker := NewFetchTracker(nil)
	tracker.Resolve(nil, boom)

	if _, err := tracker.Fetch(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("expected the queued error, got %v", err)
	}
}

func TestFetchTracker_GatedBlocksUntilReleased(t *testing.T) {
	tracker := NewGatedFetchTracker()
	tracker.Resolve("late", nil)

	done := make(chan string, 1)
	go func() {
		data, _ := tracker.Fetch(context.Background(), nil)
		done <- data.(string)
	}()

	select {
	case <-done:
		t.Fatal("gated call returned before release")
	case <-time.After(10 * time.Millisecond):
	}

	tracker.Release(0)
	select {
	case data := <-done:
		if data != "late" {
			t.Errorf("data = %q", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("call never returned after release")
	}
}

func TestFetchTracker_ReleaseBeforeCall(t *testing.T) {
	tracker := NewGatedFetchTracker()
	tracker.Resolve("fast", nil)
	tracker.Release(0)

	data, err := tracker.Fetch(context.Background(), nil)
	if err != nil || data != "fast" {
		t.Errorf("pre-released call = (%v, %v)", data, err)
	}
}

func TestFetchTracker_GatedHonorsContext(t *testing.T) {
	tracker := NewGatedFetchTracker()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := tracker.Fetch(ctx, nil)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("call never returned after cancel")
	}
}

func TestEventSource_EmitAndDetach(t *testing.T) {
	var source EventSource

	calls := 0
	detach := source.Register(func() { calls++ })

	source.Emit()
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}

	detach()
	detach() // idempotent

	source.Emit()
	if calls != 1 {
		t.Errorf("detached callback still fired: %d", calls)
	}
}
