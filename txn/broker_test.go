package txn

import "testing"

type fakeMailbox struct {
	dirty []Key
}

func (f *fakeMailbox) MarkDirty(db int, key string) {
	f.dirty = append(f.dirty, Key{DB: db, Key: key})
}

func TestWatchThenPublishDeliversDirty(t *testing.T) {
	b := NewBroker()
	mb := &fakeMailbox{}

	if !b.Watch(mb, 0, "k") {
		t.Fatal("expected first Watch to report newly-subscribed")
	}
	if b.Watch(mb, 0, "k") {
		t.Fatal("expected duplicate Watch to report already-subscribed")
	}

	b.Publish(0, "k")

	if len(mb.dirty) != 1 || mb.dirty[0] != (Key{DB: 0, Key: "k"}) {
		t.Fatalf("expected one dirty notification for db0/k, got %v", mb.dirty)
	}
}

func TestPublishIgnoresUnrelatedKeys(t *testing.T) {
	b := NewBroker()
	mb := &fakeMailbox{}
	b.Watch(mb, 0, "k")

	b.Publish(0, "other")
	b.Publish(1, "k")

	if len(mb.dirty) != 0 {
		t.Fatalf("expected no notifications, got %v", mb.dirty)
	}
}

func TestUnwatchStopsDelivery(t *testing.T) {
	b := NewBroker()
	mb := &fakeMailbox{}
	b.Watch(mb, 0, "k")
	b.Unwatch(mb, 0, "k")

	b.Publish(0, "k")

	if len(mb.dirty) != 0 {
		t.Fatalf("expected no notifications after Unwatch, got %v", mb.dirty)
	}
}

func TestUnwatchAllClearsEverySubscription(t *testing.T) {
	b := NewBroker()
	mb := &fakeMailbox{}
	b.Watch(mb, 0, "a")
	b.Watch(mb, 0, "b")
	b.Watch(mb, 1, "a")

	b.UnwatchAll(mb)

	b.Publish(0, "a")
	b.Publish(0, "b")
	b.Publish(1, "a")

	if len(mb.dirty) != 0 {
		t.Fatalf("expected no notifications after UnwatchAll, got %v", mb.dirty)
	}
	if len(b.byMbox) != 0 {
		t.Errorf("expected byMbox to be empty after UnwatchAll, got %d entries", len(b.byMbox))
	}
	if len(b.byKey) != 0 {
		t.Errorf("expected byKey to be empty after UnwatchAll, got %d entries", len(b.byKey))
	}
}

func TestPublishDeliversToMultipleWatchers(t *testing.T) {
	b := NewBroker()
	a := &fakeMailbox{}
	c := &fakeMailbox{}
	b.Watch(a, 0, "shared")
	b.Watch(c, 0, "shared")

	b.Publish(0, "shared")

	if len(a.dirty) != 1 || len(c.dirty) != 1 {
		t.Fatalf("expected both watchers notified, got %d/%d", len(a.dirty), len(c.dirty))
	}
}
