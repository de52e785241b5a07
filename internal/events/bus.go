package events

import (
	"sync"
)

// DefaultBufferSize is the subscriber channel capacity used when none is given.
const DefaultBufferSize = 256

// EventBus is a pub-sub bus with topic and all-topic subscriptions.
//
// Every subscription owns an unbounded queue drained into its channel by a
// forwarding goroutine, so Publish never blocks and never drops an event: a
// slow reader sees every event of a build, in publish order. Close stops
// accepting events; each channel is closed once its queued events have been
// read. A reader that stops early must call Unsubscribe.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[string][]*subscription
	allSubs []*subscription
	closed  bool
}

// subscription queues events for one subscriber.
type subscription struct {
	out  chan Event
	wake chan struct{}
	quit chan struct{}

	mu       sync.Mutex
	queue    []Event
	draining bool // no more events will be queued
	stopped  bool
}

func newSubscription(bufSize int) *subscription {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	s := &subscription{
		out:  make(chan Event, bufSize),
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	go s.forward()
	return s
}

func (s *subscription) push(event Event) {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, event)
	s.mu.Unlock()
	s.signal()
}

func (s *subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// drain marks the queue complete; the channel closes after the last event.
func (s *subscription) drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.signal()
}

// stop discards queued events and closes the channel.
func (s *subscription) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.draining = true
	s.queue = nil
	close(s.quit)
}

func (s *subscription) forward() {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		draining := s.draining
		s.mu.Unlock()

		for _, event := range batch {
			select {
			case s.out <- event:
			case <-s.quit:
				return
			}
		}
		if len(batch) > 0 {
			continue
		}
		if draining {
			return
		}
		select {
		case <-s.wake:
		case <-s.quit:
			return
		}
	}
}

// NewEventBus creates an open bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[string][]*subscription),
	}
}

// Subscribe returns a channel receiving events published to topic. bufSize
// is the channel capacity; events beyond it wait in the subscription queue.
// A subscription made after Close receives an already-closed channel.
func (b *EventBus) Subscribe(topic string, bufSize int) <-chan Event {
	s := newSubscription(bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		s.drain()
		return s.out
	}
	b.subs[topic] = append(b.subs[topic], s)
	return s.out
}

// SubscribeAll returns a channel receiving events from every topic.
func (b *EventBus) SubscribeAll(bufSize int) <-chan Event {
	s := newSubscription(bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		s.drain()
		return s.out
	}
	b.allSubs = append(b.allSubs, s)
	return s.out
}

// Unsubscribe detaches the subscription behind ch, discards its pending
// events and closes ch. Unknown channels are ignored.
func (b *EventBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, list := range b.subs {
		if s, rest, ok := remove(list, ch); ok {
			b.subs[topic] = rest
			s.stop()
			return
		}
	}
	if s, rest, ok := remove(b.allSubs, ch); ok {
		b.allSubs = rest
		s.stop()
	}
}

func remove(list []*subscription, ch <-chan Event) (*subscription, []*subscription, bool) {
	for i, s := range list {
		if s.out == ch {
			rest := append(list[:i:i], list[i+1:]...)
			return s, rest, true
		}
	}
	return nil, list, false
}

// Publish queues event for the topic's subscribers and for all-topic
// subscribers. Events published after Close are discarded.
func (b *EventBus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, s := range b.subs[topic] {
		s.push(event)
	}
	for _, s := range b.allSubs {
		s.push(event)
	}
}

// Close stops accepting events. Each subscriber channel is closed after its
// queued events are delivered. Safe to call more than once.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, list := range b.subs {
		for _, s := range list {
			s.drain()
		}
	}
	for _, s := range b.allSubs {
		s.drain()
	}
}
