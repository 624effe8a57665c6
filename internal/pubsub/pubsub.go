// Package pubsub provides a small snapshot broadcaster used to bind UI code
// to the session, directory, and watchlist stores. Stores publish whole
// immutable snapshots; subscribers always observe a complete state, never a
// partially applied mutation.
package pubsub

import "sync"

// Broadcaster fans a stream of snapshots out to any number of subscribers.
// Publish never blocks: when a subscriber's buffer is full the oldest queued
// snapshot is dropped so the newest one always lands. Intermediate snapshots
// may be skipped by a slow subscriber, but the last published value is
// always delivered.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan T
}

// New creates an empty Broadcaster.
func New[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a new subscriber with the given channel buffer size
// (minimum 1). The returned cancel function removes the subscription and
// closes the channel; it is safe to call more than once.
func (b *Broadcaster[T]) Subscribe(buf int) (<-chan T, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan T, buf)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers v to every subscriber without blocking.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
			// Full buffer: drop the oldest snapshot and retry so the
			// subscriber still converges on the latest state.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// Len returns the current number of subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
