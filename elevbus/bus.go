package elevbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNoSubscribers = errors.New("bus has no subscribers")
	ErrClosed        = errors.New("bus closed")
)

// LagError is returned by Recv when the subscriber fell more than the bus
// capacity behind. The subscription has already skipped to the oldest
// retained command.
type LagError struct {
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("subscriber lagged, %d commands missed", e.Missed)
}

// Bus is a bounded multi-producer, multi-consumer broadcast channel. Every
// subscriber sees every command published after it subscribed, in
// per-publisher order. Publishers never block: a slow subscriber loses the
// oldest unread commands instead.
type Bus struct {
	mu     sync.Mutex
	ring   []Command
	tail   uint64 // sequence number of the next published command
	subs   int
	closed bool
	notify chan struct{} // closed and replaced on every publish
}

func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bus{
		ring:   make([]Command, capacity),
		notify: make(chan struct{}),
	}
}

func (b *Bus) Capacity() int { return len(b.ring) }

// Publish delivers cmd to all current subscribers.
func (b *Bus) Publish(cmd Command) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.subs == 0 {
		return ErrNoSubscribers
	}
	b.ring[b.tail%uint64(len(b.ring))] = cmd
	b.tail++
	close(b.notify)
	b.notify = make(chan struct{})
	return nil
}

func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs++
	return &Subscription{bus: b, next: b.tail}
}

// Close wakes every subscriber with ErrClosed once it has drained what is
// still buffered.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}

// Subscribers returns the number of open subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs
}

type Subscription struct {
	bus    *Bus
	next   uint64
	closed bool
}

// Recv blocks until the next command is available.
func (s *Subscription) Recv(ctx context.Context) (Command, error) {
	b := s.bus
	for {
		b.mu.Lock()
		if s.closed {
			b.mu.Unlock()
			return Command{}, ErrClosed
		}
		if s.next < b.tail {
			capacity := uint64(len(b.ring))
			if b.tail-s.next > capacity {
				oldest := b.tail - capacity
				missed := oldest - s.next
				s.next = oldest
				b.mu.Unlock()
				return Command{}, &LagError{Missed: missed}
			}
			cmd := b.ring[s.next%capacity]
			s.next++
			b.mu.Unlock()
			return cmd, nil
		}
		if b.closed {
			b.mu.Unlock()
			return Command{}, ErrClosed
		}
		wait := b.notify
		b.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return Command{}, ctx.Err()
		}
	}
}

func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.bus.subs--
}
