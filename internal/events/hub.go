// Package events fans out queue and progress notifications to observers.
//
// The Hub keeps a bounded replay buffer so long-poll clients can resume from a
// sequence number, and pushes every event to live subscribers without ever
// blocking the publisher: a subscriber that falls behind loses events rather
// than stalling a slot.
package events

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Topics published by the engine.
const (
	TopicQueue          = "queue"
	TopicProgressPrefix = "progress."
	TopicHistory        = "history"
	TopicSlots          = "slots"
)

// Event is one notification.
type Event struct {
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Topic     string    `json:"topic"`
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
}

// Publisher is the narrow contract producers depend on.
type Publisher interface {
	Publish(topic, eventType string, data any)
}

// Sink receives every published event, for example to persist it.
type Sink interface {
	Append(Event)
}

type subscriber struct {
	prefix string
	ch     chan Event
}

// Hub stores recent events and wakes waiters when new events arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	sinks    []Sink
	subs     map[*subscriber]struct{}
	dropped  uint64
}

// NewHub constructs a hub holding at most capacity events for replay.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &Hub{capacity: capacity, subs: make(map[*subscriber]struct{})}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// AddSink wires an additional sink that receives every published event.
func (h *Hub) AddSink(sink Sink) {
	if h == nil || sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Publish appends an event and notifies subscribers.
func (h *Hub) Publish(topic, eventType string, data any) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	evt := Event{
		Sequence:  h.nextSeq,
		Timestamp: time.Now().UTC(),
		Topic:     topic,
		Type:      eventType,
		Data:      data,
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	for sub := range h.subs {
		if !strings.HasPrefix(evt.Topic, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			h.dropped++
		}
	}
	sinks := append([]Sink(nil), h.sinks...)
	h.cond.Broadcast()
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Append(evt)
	}
}

// Subscribe registers a live subscriber for topics starting with prefix. An
// empty prefix receives everything. The returned cancel func must be called to
// release the subscription; it closes the channel.
func (h *Hub) Subscribe(prefix string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &subscriber{prefix: prefix, ch: make(chan Event, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			close(sub.ch)
			h.mu.Unlock()
		})
	}
}

// Oldest returns the sequence of the oldest buffered event, or zero when the
// buffer is empty.
func (h *Hub) Oldest() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return 0
	}
	return h.buffer[0].Sequence
}

// Dropped reports how many events were discarded for slow subscribers.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Fetch returns buffered events with sequence greater than since. When wait is
// true, Fetch blocks until at least one event is available or ctx ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	stopWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-stopWait:
			}
		}()
	}
	defer close(stopWait)

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Tail returns the most recent limit events without blocking.
func (h *Hub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	start := max(0, len(h.buffer)-limit)
	out := make([]Event, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	startIdx := -1
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, h.nextSeq
	}
	end := min(startIdx+limit, len(h.buffer))
	out := make([]Event, end-startIdx)
	copy(out, h.buffer[startIdx:end])
	return out, out[len(out)-1].Sequence
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

// Nop discards everything.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(string, string, any) {}
