package events

import (
	"context"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBrokerSubscribeFiltersTables(t *testing.T) {
	b := NewBroker(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := b.Subscribe(ctx, TableTimeEntries)
	all := b.Subscribe(ctx)

	b.Publish(Event{Table: TableProjects, Action: ActionInsert, ID: "p1"})
	b.Publish(Event{Table: TableTimeEntries, Action: ActionInsert, ID: "e1"})

	if e := receive(t, entries); e.ID != "e1" {
		t.Errorf("entries subscriber got %s, want e1", e.ID)
	}
	if e := receive(t, all); e.ID != "p1" {
		t.Errorf("first event = %s, want p1", e.ID)
	}
	if e := receive(t, all); e.ID != "e1" || e.At.IsZero() {
		t.Errorf("second event = %+v", e)
	}
}

func TestBrokerUnsubscribeOnCancel(t *testing.T) {
	b := NewBroker(1)
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	if b.Subscribers() != 1 {
		t.Fatalf("subscribers = %d, want 1", b.Subscribers())
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if b.Subscribers() != 0 {
		t.Errorf("subscribers = %d, want 0", b.Subscribers())
	}
}

func TestBrokerDropsForSlowSubscriber(t *testing.T) {
	b := NewBroker(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := b.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(Event{Table: TableProjects})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if len(ch) != 1 {
		t.Errorf("buffered = %d, want 1", len(ch))
	}
}

func TestBrokerClose(t *testing.T) {
	b := NewBroker(0)
	ch := b.Subscribe(context.Background())
	b.Close()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
	if _, ok := <-b.Subscribe(context.Background()); ok {
		t.Error("subscribe after close should return a closed channel")
	}
	b.Publish(Event{Table: TableProjects})
}

func TestCacheInvalidateOn(t *testing.T) {
	b := NewBroker(0)
	c := NewCache[int]()
	stop := c.InvalidateOn(b, ByUser, TableTimeEntries, TableProjects)

	c.Set("alice", 1)
	c.Set("bob", 2)

	b.Publish(Event{Table: TableAPIKeys, UserID: "alice"})
	if _, ok := c.Get("alice"); !ok {
		t.Error("api key change should not evict")
	}

	b.Publish(Event{Table: TableTimeEntries, UserID: "alice"})
	if _, ok := c.Get("alice"); ok {
		t.Error("alice should be evicted")
	}
	if v, ok := c.Get("bob"); !ok || v != 2 {
		t.Error("bob should remain cached")
	}

	stop()
	b.Publish(Event{Table: TableProjects, UserID: "bob"})
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1 after cancel", c.Len())
	}
}

func TestCacheSetIfGeneration(t *testing.T) {
	b := NewBroker(0)
	c := NewCache[int]()
	defer c.InvalidateOn(b, ByUser, TableTimeEntries)()

	gen := c.Generation("alice")
	// A change lands while the value is being computed.
	b.Publish(Event{Table: TableTimeEntries, UserID: "alice"})
	if c.SetIfGeneration("alice", 1, gen) {
		t.Fatal("stale value was stored")
	}
	if _, ok := c.Get("alice"); ok {
		t.Fatal("stale value is cached")
	}

	gen = c.Generation("alice")
	if !c.SetIfGeneration("alice", 2, gen) {
		t.Fatal("fresh value was refused")
	}
	if v, _ := c.Get("alice"); v != 2 {
		t.Errorf("cached = %d, want 2", v)
	}

	// Other keys are unaffected.
	bobGen := c.Generation("bob")
	b.Publish(Event{Table: TableTimeEntries, UserID: "alice"})
	if !c.SetIfGeneration("bob", 3, bobGen) {
		t.Error("bob's value refused after alice's change")
	}
}

func TestBrokerSubscribeUser(t *testing.T) {
	b := NewBroker(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := b.SubscribeUser(ctx, "alice", TableTimeEntries)

	// Bob's traffic must not fill alice's buffer.
	for range 5 {
		b.Publish(Event{Table: TableTimeEntries, ID: "b", UserID: "bob"})
	}
	b.Publish(Event{Table: TableProjects, ID: "p", UserID: "alice"})
	b.Publish(Event{Table: TableTimeEntries, ID: "a1", UserID: "alice"})
	b.Publish(Event{Table: TableTimeEntries, ID: "a2", UserID: "alice"})

	for _, want := range []string{"a1", "a2"} {
		select {
		case e := <-alice:
			if e.ID != want || e.UserID != "alice" {
				t.Errorf("got %+v, want %s", e, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing event %s", want)
		}
	}
	select {
	case e := <-alice:
		t.Errorf("unexpected event %+v", e)
	default:
	}
}
