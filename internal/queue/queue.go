package queue

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/google/uuid"

	"cratedig/internal/events"
	"cratedig/internal/logging"
)

// DefaultCapacity bounds the queue when Options.Capacity is unset.
const DefaultCapacity = 1000

// Queue event types.
const (
	EventEnqueued = "queue.enqueued"
	EventRemoved  = "queue.removed"
	EventRejected = "queue.rejected"
	EventDequeued = "queue.dequeued"
)

// Options configures a Queue.
type Options struct {
	Capacity  int
	Cooldown  time.Duration
	Publisher events.Publisher
	Logger    *slog.Logger
}

// Queue is safe for concurrent use. The mutex is held only for slice and map
// operations.
type Queue struct {
	mu       sync.Mutex
	items    []Item
	keys     map[string]struct{}
	capacity int

	cooldown    *ttlcache.Cache[string, time.Time]
	cooldownTTL time.Duration
	closed      bool

	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs an empty queue.
func New(opts Options) *Queue {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	q := &Queue{
		keys:        make(map[string]struct{}),
		capacity:    capacity,
		cooldownTTL: opts.Cooldown,
		publisher:   publisher,
		logger:      logging.NewComponentLogger(opts.Logger, "queue"),
		now:         time.Now,
	}
	if opts.Cooldown > 0 {
		q.cooldown = ttlcache.New(ttlcache.Options[string, time.Time]{}.SetDefaultTTL(opts.Cooldown))
	}
	return q
}

// Enqueue appends items to the tail.
func (q *Queue) Enqueue(items ...Item) []EnqueueResult {
	return q.add(false, items)
}

// EnqueueFront places items at the head, preserving their relative order.
func (q *Queue) EnqueueFront(items ...Item) []EnqueueResult {
	return q.add(true, items)
}

func (q *Queue) add(front bool, items []Item) []EnqueueResult {
	results := make([]EnqueueResult, len(items))
	var accepted, rejected []Item
	var reasons []Reason

	q.mu.Lock()
	block := make([]Item, 0, len(items))
	for idx, item := range items {
		item.ArtistID = strings.TrimSpace(item.ArtistID)
		item.ReleaseFolder = strings.TrimSpace(item.ReleaseFolder)
		reason, ok := q.admitLocked(item, len(block))
		if !ok {
			results[idx] = EnqueueResult{Reason: reason}
			rejected = append(rejected, item)
			reasons = append(reasons, reason)
			continue
		}
		if item.QueueKey == "" {
			item.QueueKey = uuid.NewString()
		}
		if item.EnqueuedAt.IsZero() {
			item.EnqueuedAt = q.now().UTC()
		}
		q.keys[item.DedupeKey()] = struct{}{}
		block = append(block, item)
		accepted = append(accepted, item)
		results[idx] = EnqueueResult{Accepted: true, QueueKey: item.QueueKey}
	}
	if front {
		q.items = append(block, q.items...)
	} else {
		q.items = append(q.items, block...)
	}
	length := len(q.items)
	q.mu.Unlock()

	for _, item := range accepted {
		q.publisher.Publish(events.TopicQueue, EventEnqueued, map[string]any{
			"item":   item,
			"front":  front,
			"length": length,
		})
	}
	for i, item := range rejected {
		q.logger.Info("enqueue refused",
			logging.String(logging.FieldArtistID, item.ArtistID),
			logging.String(logging.FieldReleaseFolder, item.ReleaseFolder),
			logging.String("reason", string(reasons[i])),
			logging.String(logging.FieldEventType, "queue_rejected"),
		)
		q.publisher.Publish(events.TopicQueue, EventRejected, map[string]any{
			"item":   item,
			"reason": reasons[i],
		})
	}
	return results
}

func (q *Queue) admitLocked(item Item, pending int) (Reason, bool) {
	if item.ArtistID == "" || item.ReleaseFolder == "" {
		return ReasonInvalid, false
	}
	key := item.DedupeKey()
	if _, exists := q.keys[key]; exists {
		return ReasonDuplicate, false
	}
	if q.cooldown != nil {
		if _, cooling := q.cooldown.Get(key); cooling {
			if !item.Force {
				return ReasonCooldown, false
			}
			q.cooldown.Delete(key)
		}
	}
	if len(q.items)+pending >= q.capacity {
		return ReasonCapacity, false
	}
	return "", true
}

// Dequeue pops the head item and announces it. Its dedupe key stays reserved
// until Release.
func (q *Queue) Dequeue() (Item, bool) {
	item, length, ok := q.Take()
	if ok {
		q.AnnounceDequeued(item, length)
	}
	return item, ok
}

// Take pops the head item without publishing and returns the remaining
// length. Callers holding their own locks announce the claim with
// AnnounceDequeued after releasing them, since hub sinks may block.
func (q *Queue) Take() (Item, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, 0, false
	}
	item := q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	return item, len(q.items), true
}

// AnnounceDequeued publishes the claim of an item returned by Take.
func (q *Queue) AnnounceDequeued(item Item, length int) {
	q.publisher.Publish(events.TopicQueue, EventDequeued, map[string]any{
		"item":   item,
		"length": length,
	})
}

// Requeue returns a claimed item to the tail without touching its dedupe
// reservation. Capacity is not enforced because the item already held a slot
// in it.
func (q *Queue) Requeue(item Item) {
	q.mu.Lock()
	q.keys[item.DedupeKey()] = struct{}{}
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// RequeueFront returns claimed items to the head in order, keeping their
// dedupe reservation. Used for releases interrupted by shutdown.
func (q *Queue) RequeueFront(items ...Item) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	block := make([]Item, 0, len(items)+len(q.items))
	for _, item := range items {
		q.keys[item.DedupeKey()] = struct{}{}
		block = append(block, item)
	}
	q.items = append(block, q.items...)
	q.mu.Unlock()
}

// Release frees the dedupe key of a finished item.
func (q *Queue) Release(item Item) {
	q.mu.Lock()
	delete(q.keys, item.DedupeKey())
	q.mu.Unlock()
}

// MarkFailed starts the cooldown window for a release.
func (q *Queue) MarkFailed(artistID, folder string) {
	if q.cooldown == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.cooldown.Set(DedupeKey(artistID, folder), q.now().UTC(), ttlcache.DefaultTTL)
}

// Close stops the cooldown expiry goroutine. Failures recorded afterwards are
// not cooled down. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	if q.cooldown != nil {
		q.cooldown.Close()
	}
}

// InCooldown reports whether a release is inside its failure cooldown.
func (q *Queue) InCooldown(artistID, folder string) bool {
	if q.cooldown == nil {
		return false
	}
	_, ok := q.cooldown.Get(DedupeKey(artistID, folder))
	return ok
}

// TryRemove drops the first queued item with queueKey.
func (q *Queue) TryRemove(queueKey string) bool {
	queueKey = strings.TrimSpace(queueKey)
	if queueKey == "" {
		return false
	}
	q.mu.Lock()
	idx := -1
	for i, item := range q.items {
		if item.QueueKey == queueKey {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return false
	}
	removed := q.items[idx]
	rebuilt := make([]Item, 0, len(q.items)-1)
	rebuilt = append(rebuilt, q.items[:idx]...)
	rebuilt = append(rebuilt, q.items[idx+1:]...)
	q.items = rebuilt
	delete(q.keys, removed.DedupeKey())
	length := len(q.items)
	q.mu.Unlock()

	q.publisher.Publish(events.TopicQueue, EventRemoved, map[string]any{
		"item":   removed,
		"length": length,
	})
	return true
}

// RemoveAllForArtist drops every queued item of an artist and returns the
// number removed. In-flight releases are untouched.
func (q *Queue) RemoveAllForArtist(artistID string) int {
	want := strings.ToLower(strings.TrimSpace(artistID))
	if want == "" {
		return 0
	}
	q.mu.Lock()
	kept := make([]Item, 0, len(q.items))
	var removed []Item
	for _, item := range q.items {
		if strings.ToLower(item.ArtistID) == want {
			removed = append(removed, item)
			delete(q.keys, item.DedupeKey())
			continue
		}
		kept = append(kept, item)
	}
	q.items = kept
	length := len(q.items)
	q.mu.Unlock()

	for _, item := range removed {
		q.publisher.Publish(events.TopicQueue, EventRemoved, map[string]any{
			"item":   item,
			"length": length,
		})
	}
	return len(removed)
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Capacity returns the configured bound.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Contains reports whether a release is queued or in flight.
func (q *Queue) Contains(artistID, folder string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.keys[DedupeKey(artistID, folder)]
	return ok
}

// Snapshot returns the length and first limit items. A non-positive limit
// returns every item.
func (q *Queue) Snapshot(limit int) Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Item, n)
	copy(out, q.items[:n])
	return Snapshot{
		Length:   len(q.items),
		InFlight: len(q.keys) - len(q.items),
		Capacity: q.capacity,
		Items:    out,
	}
}
