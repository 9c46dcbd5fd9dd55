package event

import (
	"sync"
	"testing"
	"time"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus(nil)

	called := false
	id := bus.Subscribe(TypeRunPaused, func(e Event) {
		called = true
	})

	if id == "" {
		t.Error("Subscribe should return a non-empty ID")
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", bus.SubscriptionCount())
	}
	if called {
		t.Error("handler should not be called until an event is published")
	}
}

func TestBus_Publish(t *testing.T) {
	bus := NewBus(nil)

	var received Event
	bus.Subscribe(TypeRunPaused, func(e Event) {
		received = e
	})

	bus.Publish(NewRunPausedEvent("run-1", []string{"errors"}))

	paused, ok := received.(RunPausedEvent)
	if !ok {
		t.Fatalf("received %T, want RunPausedEvent", received)
	}
	if paused.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", paused.RunID)
	}
}

func TestBus_OrderAndWildcard(t *testing.T) {
	bus := NewBus(nil)

	var order []string
	bus.SubscribeAll(func(e Event) { order = append(order, "all") })
	bus.Subscribe(TypeRunFinished, func(e Event) { order = append(order, "first") })
	bus.Subscribe(TypeRunFinished, func(e Event) { order = append(order, "second") })

	bus.Publish(NewRunFinishedEvent("r", true, false, 0, time.Second))

	want := []string{"first", "second", "all"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	count := 0
	id := bus.Subscribe(TypeLockout, func(e Event) { count++ })
	keep := bus.Subscribe(TypeLockout, func(e Event) { count += 10 })

	if !bus.Unsubscribe(id) {
		t.Fatal("Unsubscribe returned false for known id")
	}
	if bus.Unsubscribe(id) {
		t.Error("second Unsubscribe should return false")
	}

	bus.Publish(NewLockoutEvent("nominatim", time.Now()))
	if count != 10 {
		t.Errorf("count = %d, want 10", count)
	}
	if !bus.Unsubscribe(keep) {
		t.Error("Unsubscribe(keep) returned false")
	}
}

func TestBus_PanicRecovery(t *testing.T) {
	bus := NewBus(nil)

	reached := false
	bus.Subscribe(TypeCacheLookup, func(e Event) { panic("boom") })
	bus.Subscribe(TypeCacheLookup, func(e Event) { reached = true })

	bus.Publish(NewCacheLookupEvent("overpass", true))

	if !reached {
		t.Error("handler after a panicking handler should still run")
	}
}

func TestBus_NilPublish(t *testing.T) {
	var bus *Bus
	bus.Publish(NewRunSubmittedEvent("r", "x"))
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	seen := 0
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(NewSpecialistDispatchedEvent("r", "geo_agent"))
		}()
	}
	wg.Wait()

	if seen != 50 {
		t.Errorf("seen = %d, want 50", seen)
	}
}

func TestSpecialistCompletedEvent_Failed(t *testing.T) {
	ok := NewSpecialistCompletedEvent("r", "geo_agent", "", 1, time.Millisecond)
	bad := NewSpecialistCompletedEvent("r", "geo_agent", "TRANSIENT", 3, time.Millisecond)
	if ok.Failed() {
		t.Error("success event reports Failed()")
	}
	if !bad.Failed() {
		t.Error("failure event does not report Failed()")
	}
	if bad.EventType() != TypeSpecialistCompleted {
		t.Errorf("EventType() = %q", bad.EventType())
	}
	if bad.Timestamp().IsZero() {
		t.Error("Timestamp should be set")
	}
}
