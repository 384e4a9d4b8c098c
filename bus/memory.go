package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MemoryBus delivers events in-process. One dispatcher goroutine per topic
// drains a publish queue and fans out to subscribers, so per-subscriber
// ordering holds without publishers ever waiting on consumers.
type MemoryBus struct {
	config Config
	topics map[Topic]*topicState
	closed atomic.Bool
	wg     sync.WaitGroup
}

type topicState struct {
	name Topic

	mu     sync.Mutex
	queue  []Event
	subs   []*Subscription
	gone   []*Subscription // unsubscribed, channel close pending on dispatcher
	notify chan struct{}
	done   chan struct{}
}

// Subscription is one attached subscriber.
type Subscription struct {
	topic    Topic
	ch       chan Event
	filter   func(Event) bool // nil delivers everything
	closed   atomic.Bool
	degraded atomic.Bool
	dropped  atomic.Int64
	bus      *MemoryBus
}

// NewMemoryBus creates a bus with dispatchers running for every topic.
func NewMemoryBus(cfg Config) *MemoryBus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	b := &MemoryBus{
		config: cfg,
		topics: make(map[Topic]*topicState, len(Topics)),
	}
	for _, name := range Topics {
		t := &topicState{
			name:   name,
			notify: make(chan struct{}, 1),
			done:   make(chan struct{}),
		}
		b.topics[name] = t
		b.wg.Add(1)
		go b.dispatch(t)
	}
	return b
}

// Publish queues an event. Missing id and timestamp are stamped here so
// every delivered event is self-describing.
func (b *MemoryBus) Publish(ev Event) error {
	if b.closed.Load() {
		return ErrClosed
	}
	t, ok := b.topics[ev.Topic]
	if !ok {
		return ErrInvalidTopic
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	t.mu.Lock()
	t.queue = append(t.queue, ev)
	t.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}
	return nil
}

// Subscribe attaches a subscriber to a topic.
func (b *MemoryBus) Subscribe(topic Topic, opts ...SubscribeOption) (*Subscription, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	t, ok := b.topics[topic]
	if !ok {
		return nil, ErrInvalidTopic
	}

	sub := &Subscription{
		topic: topic,
		ch:    make(chan Event, b.config.BufferSize),
		bus:   b,
	}
	for _, opt := range opts {
		opt(sub)
	}

	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()

	return sub, nil
}

// dispatch is the per-topic delivery loop. It is the only goroutine that
// sends on or closes subscriber channels, which keeps delivery ordered and
// channel closes race-free.
func (b *MemoryBus) dispatch(t *topicState) {
	defer b.wg.Done()

	for {
		select {
		case <-t.done:
			t.mu.Lock()
			for _, sub := range append(t.subs, t.gone...) {
				close(sub.ch)
			}
			t.subs, t.gone, t.queue = nil, nil, nil
			t.mu.Unlock()
			return
		case <-t.notify:
			t.mu.Lock()
			batch := t.queue
			t.queue = nil
			subs := make([]*Subscription, len(t.subs))
			copy(subs, t.subs)
			gone := t.gone
			t.gone = nil
			t.mu.Unlock()

			for _, sub := range gone {
				close(sub.ch)
			}
			for _, ev := range batch {
				for _, sub := range subs {
					if sub.closed.Load() {
						continue
					}
					if sub.filter != nil && !sub.filter(ev) {
						continue
					}
					deliver(sub, ev)
				}
			}
		}
	}
}

// deliver hands an event to one subscriber. When the buffer is full the
// oldest buffered event is discarded so the publisher is never blocked;
// the subscriber is marked degraded so clients know to re-snapshot.
func deliver(sub *Subscription, ev Event) {
	select {
	case sub.ch <- ev:
		return
	default:
	}

	select {
	case <-sub.ch:
		sub.dropped.Add(1)
		sub.degraded.Store(true)
	default:
	}

	select {
	case sub.ch <- ev:
	default:
	}
}

// Close stops all dispatchers and closes subscriber channels.
func (b *MemoryBus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	for _, t := range b.topics {
		close(t.done)
	}
	b.wg.Wait()
	return nil
}

// Events returns the channel of delivered events. The channel is closed
// on Unsubscribe or bus Close.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() Topic {
	return s.topic
}

// Degraded reports whether this subscriber has lost events to buffer
// overflow. A degraded client should re-fetch a snapshot and resume.
func (s *Subscription) Degraded() bool {
	return s.degraded.Load()
}

// Dropped returns the number of events lost to buffer overflow.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Unsubscribe detaches the subscriber and frees its buffer. The event
// channel is closed by the dispatcher shortly after.
func (s *Subscription) Unsubscribe() error {
	if s.closed.Swap(true) {
		return nil
	}

	t, ok := s.bus.topics[s.topic]
	if !ok {
		return nil
	}

	t.mu.Lock()
	for i, sub := range t.subs {
		if sub == s {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			break
		}
	}
	t.gone = append(t.gone, s)
	t.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}
	return nil
}
