package eventbus

import (
	"testing"
	"time"
)

func TestSubscribeFiltersByPrefix(t *testing.T) {
	t.Parallel()
	b := New()
	rem, unsubRem := b.Subscribe(4, "reminder.")
	defer unsubRem()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()

	b.Publish(Event{Type: "store.reloaded"})
	b.Publish(Event{Type: "reminder.due", Data: "a"})

	select {
	case e := <-rem:
		if e.Type != "reminder.due" || e.Time.IsZero() {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("reminder event not delivered")
	}
	if len(rem) != 0 {
		t.Fatal("filtered subscriber received foreign event")
	}
	if len(all) != 2 {
		t.Fatalf("catch-all subscriber got %d events, want 2", len(all))
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	unsub()
	unsub()
	b.Publish(Event{Type: "x"})
}
