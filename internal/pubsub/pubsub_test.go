package pubsub

import "testing"

func TestSubscribeReceives(t *testing.T) {
	b := New[int]()
	ch, cancel := b.Subscribe(4)
	defer cancel()

	b.Publish(42)

	if got := <-ch; got != 42 {
		t.Errorf("received %d, want 42", got)
	}
}

func TestSlowSubscriberGetsLatest(t *testing.T) {
	b := New[int]()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	// Buffer size 1: the second publish must evict the first.
	b.Publish(1)
	b.Publish(2)

	if got := <-ch; got != 2 {
		t.Errorf("received %d, want latest value 2", got)
	}
	select {
	case v := <-ch:
		t.Errorf("unexpected extra value %d", v)
	default:
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	b := New[string]()
	ch, cancel := b.Subscribe(1)

	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}

	cancel()
	cancel() // safe to call twice

	if b.Len() != 0 {
		t.Errorf("Len() = %d after cancel, want 0", b.Len())
	}
	if _, ok := <-ch; ok {
		t.Error("channel not closed after cancel")
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	b := New[int]()
	b.Publish(7) // must not panic or block
}

func TestMultipleSubscribers(t *testing.T) {
	b := New[int]()
	ch1, cancel1 := b.Subscribe(1)
	ch2, cancel2 := b.Subscribe(1)
	defer cancel1()
	defer cancel2()

	b.Publish(9)

	if got := <-ch1; got != 9 {
		t.Errorf("sub1 received %d, want 9", got)
	}
	if got := <-ch2; got != 9 {
		t.Errorf("sub2 received %d, want 9", got)
	}
}
