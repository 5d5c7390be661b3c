package slots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"cratedig/internal/cancel"
	"cratedig/internal/events"
	"cratedig/internal/library"
	"cratedig/internal/logging"
	"cratedig/internal/notifications"
	"cratedig/internal/progress"
	"cratedig/internal/provider"
	"cratedig/internal/queue"
	"cratedig/internal/releaselog"
	"cratedig/internal/services"
)

// MaxSlots bounds the pool size.
const MaxSlots = 32

const defaultPollInterval = 2 * time.Second

// EventSlotState is published on events.TopicSlots whenever a slot changes
// state.
const EventSlotState = "slot.state"

// Acquirer runs the provider chain for one release.
type Acquirer interface {
	Acquire(ctx context.Context, req provider.Request) (provider.Outcome, error)
}

// Options wires a Pool to its collaborators. Queue, Registry, Tracker,
// History and Acquirer are required; the rest are optional.
type Options struct {
	Count        int
	PollInterval time.Duration
	ErrorBackoff time.Duration
	// LibraryDir is the root new releases are placed under when the metadata
	// store has no release path.
	LibraryDir string

	Queue      *queue.Queue
	Registry   *cancel.Registry
	Tracker    *progress.Tracker
	History    *progress.History
	Acquirer   Acquirer
	Metadata   library.Metadata
	ReleaseLog releaselog.Sink
	Notifier   notifications.Service
	Publisher  events.Publisher
	Logger     *slog.Logger
}

// Pool schedules queued releases onto a resizable set of slots.
type Pool struct {
	queue        *queue.Queue
	registry     *cancel.Registry
	tracker      *progress.Tracker
	history      *progress.History
	acquirer     Acquirer
	metadata     library.Metadata
	releaseLog   releaselog.Sink
	notifier     notifications.Service
	publisher    events.Publisher
	logger       *slog.Logger
	libraryDir   string
	pollInterval time.Duration
	errorBackoff time.Duration

	mu          sync.Mutex
	slots       map[int]*slot
	desired     int
	initialized bool
	running     bool
	runCtx      context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	wake        chan struct{}

	now func() time.Time
}

// New validates opts and builds an idle pool. Slots start on the first Run
// tick.
func New(opts Options) (*Pool, error) {
	switch {
	case opts.Queue == nil:
		return nil, errors.New("slots: queue is required")
	case opts.Registry == nil:
		return nil, errors.New("slots: cancellation registry is required")
	case opts.Tracker == nil:
		return nil, errors.New("slots: progress tracker is required")
	case opts.History == nil:
		return nil, errors.New("slots: history is required")
	case opts.Acquirer == nil:
		return nil, errors.New("slots: acquirer is required")
	}
	if err := validateCount(opts.Count); err != nil {
		return nil, err
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Pool{
		queue:        opts.Queue,
		registry:     opts.Registry,
		tracker:      opts.Tracker,
		history:      opts.History,
		acquirer:     opts.Acquirer,
		metadata:     opts.Metadata,
		releaseLog:   opts.ReleaseLog,
		notifier:     notifier,
		publisher:    publisher,
		logger:       logging.NewComponentLogger(opts.Logger, "slots"),
		libraryDir:   opts.LibraryDir,
		pollInterval: poll,
		errorBackoff: opts.ErrorBackoff,
		slots:        make(map[int]*slot),
		desired:      opts.Count,
		wake:         make(chan struct{}, 1),
		now:          time.Now,
	}, nil
}

func validateCount(n int) error {
	if n < 0 || n > MaxSlots {
		return services.Wrap(services.ErrValidation, "slots", "resize",
			fmt.Sprintf("slot count %d outside 0..%d", n, MaxSlots), nil)
	}
	return nil
}

// Run drives the scheduler until ctx is done, then shuts every slot down.
func (p *Pool) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("slot pool already running")
	}
	runCtx, cancelFn := context.WithCancel(ctx)
	p.runCtx = runCtx
	p.cancel = cancelFn
	p.running = true
	p.mu.Unlock()
	defer p.Shutdown()

	p.logger.Info("slot pool started",
		logging.Int("slots", p.Desired()),
		logging.Duration("poll_interval", p.pollInterval),
		logging.String(logging.FieldEventType, "slots_started"),
	)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.tick()
	for {
		select {
		case <-runCtx.Done():
			return nil
		case <-ticker.C:
			p.tick()
		case <-p.wake:
			p.tick()
		}
	}
}

// Notify asks the scheduler to look at the queue before the next tick.
func (p *Pool) Notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// claim is a release handed to a slot together with its cancellation token.
type claim struct {
	item  queue.Item
	token context.Context
}

// taken records a queue pop to announce once the pool lock is released.
type taken struct {
	item     queue.Item
	length   int
	inFlight int
}

// tick claims one queued release for every active idle slot. Claims happen
// under p.mu; hub publishing and logging wait until it is released because
// event sinks may write to disk.
func (p *Pool) tick() {
	popped := p.claimIdle()
	for _, t := range popped {
		p.queue.AnnounceDequeued(t.item, t.length)
		if t.inFlight > 0 {
			p.logger.Debug("release already in flight; requeued",
				logging.Int(logging.FieldSlotID, t.inFlight),
				logging.String(logging.FieldArtistID, t.item.ArtistID),
				logging.String(logging.FieldReleaseFolder, t.item.ReleaseFolder),
				logging.String(logging.FieldEventType, "slot_claim_skipped"),
			)
		}
	}
}

func (p *Pool) claimIdle() []taken {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	if !p.initialized {
		p.initialized = true
		p.reconcileLocked()
	}
	var popped []taken
	for _, s := range p.sortedLocked() {
		if !s.active || s.working {
			continue
		}
		item, length, ok := p.queue.Take()
		if !ok {
			return popped
		}
		if other := p.workingOnLocked(item); other != nil {
			p.queue.Requeue(item)
			popped = append(popped, taken{item: item, length: length, inFlight: other.id})
			continue
		}
		popped = append(popped, taken{item: item, length: length})
		// The token exists before the claim is visible, so a cancel racing
		// this tick either finds the release queued or finds its token.
		token := p.registry.CreateFor(p.runCtx, item.ArtistID, item.ReleaseFolder)
		claimed := item
		s.working = true
		s.current = &claimed
		s.startedAt = p.now().UTC()
		s.lastActivity = s.startedAt
		select {
		case s.work <- claim{item: item, token: token}:
		default:
			s.working = false
			s.current = nil
			p.registry.Release(token, item.ArtistID, item.ReleaseFolder)
			p.queue.RequeueFront(item)
		}
	}
	return popped
}

func (p *Pool) workingOnLocked(item queue.Item) *slot {
	for _, s := range p.slots {
		if s.current != nil && s.current.SameRelease(item) {
			return s
		}
	}
	return nil
}

func (p *Pool) sortedLocked() []*slot {
	out := make([]*slot, 0, len(p.slots))
	for _, s := range p.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Shutdown stops every slot, waits for in-flight work to unwind, and resets
// the pool so Run can start it again. Interrupted and claimed-but-unstarted
// releases go back to the head of the queue.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancelFn := p.cancel
	p.running = false
	p.cancel = nil
	for _, s := range p.slots {
		close(s.stop)
	}
	p.mu.Unlock()

	cancelFn()
	p.wg.Wait()

	p.mu.Lock()
	var unstarted []queue.Item
	for _, s := range p.sortedLocked() {
		select {
		case c := <-s.work:
			unstarted = append(unstarted, c.item)
		default:
		}
	}
	p.slots = make(map[int]*slot)
	p.initialized = false
	p.runCtx = nil
	p.mu.Unlock()

	p.queue.RequeueFront(unstarted...)
	p.registry.Clear()
	p.logger.Info("slot pool stopped",
		logging.Int("requeued_unstarted", len(unstarted)),
		logging.String(logging.FieldEventType, "slots_stopped"),
	)
}

// CancelRelease cancels the in-flight attempt for a release. It takes the
// claim lock so a release claimed by a concurrent tick already has a token.
func (p *Pool) CancelRelease(artistID, folder string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registry.CancelForRelease(artistID, folder)
}

// CancelArtist drops the artist's queued releases and then cancels every
// in-flight attempt of the artist.
func (p *Pool) CancelArtist(artistID string) (cancelled, removed int) {
	removed = p.queue.RemoveAllForArtist(artistID)
	p.mu.Lock()
	defer p.mu.Unlock()
	cancelled = p.registry.CancelActiveForArtist(artistID)
	return cancelled, removed
}
