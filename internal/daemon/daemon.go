package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"cratedig/internal/cancel"
	"cratedig/internal/config"
	"cratedig/internal/events"
	"cratedig/internal/history"
	"cratedig/internal/library"
	"cratedig/internal/logging"
	"cratedig/internal/notifications"
	"cratedig/internal/progress"
	"cratedig/internal/queue"
	"cratedig/internal/releaselog"
	"cratedig/internal/slots"
)

const defaultHubCapacity = 2048

// Daemon owns the engine and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	hub        *events.Hub
	queue      *queue.Queue
	registry   *cancel.Registry
	tracker    *progress.Tracker
	history    *progress.History
	store      *history.Store
	catalog    *library.Catalog
	releaseLog *releaselog.Writer
	notifier   notifications.Service
	archive    *events.Archive
	providers  []ProviderStatus
	checks     []transportCheck
	pool       *slots.Pool
	api        *apiServer

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	group     *errgroup.Group
}

// ProviderStatus reports whether an acquisition chain is usable.
type ProviderStatus struct {
	Name    string
	Enabled bool
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	StartedAt     time.Time
	LockFilePath  string
	HistoryDBPath string
	Queue         queue.Snapshot
	DesiredSlots  int
	Slots         []slots.SlotView
	Providers     []ProviderStatus
	EventsDropped uint64
}

type options struct {
	acquirer slots.Acquirer
	notifier notifications.Service
	archive  *events.Archive
}

// Option customizes daemon construction.
type Option func(*options)

// WithAcquirer replaces the provider chain built from configuration.
func WithAcquirer(acquirer slots.Acquirer) Option {
	return func(o *options) { o.acquirer = acquirer }
}

// WithNotifier replaces the notification service built from configuration.
func WithNotifier(notifier notifications.Service) Option {
	return func(o *options) { o.notifier = notifier }
}

// WithEventArchive journals every event so clients can resume from cursors
// older than the in-memory buffer.
func WithEventArchive(archive *events.Archive) Option {
	return func(o *options) { o.archive = archive }
}

// New constructs a daemon with initialized dependencies. Durable history is
// loaded before returning.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	catalog, err := library.NewCatalog(cfg.CatalogPath(), logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	hub := events.NewHub(defaultHubCapacity)
	if o.archive != nil {
		hub.AddSink(o.archive)
	}
	hist := progress.NewHistory(progress.HistoryOptions{
		RingSize:  cfg.History.RingSize,
		Persister: store,
		Publisher: hub,
		Logger:    logger,
	})
	if entries, loadErr := store.LoadAll(context.Background()); loadErr != nil {
		logging.WarnWithContext(logger, "history rehydrate failed; starting empty", "history_rehydrate_failed",
			logging.Error(loadErr),
			logging.String(logging.FieldErrorHint, "check history.db in state_dir"),
			logging.String(logging.FieldImpact, "history from previous runs is not visible"),
		)
	} else {
		hist.Rehydrate(entries)
		logger.Info("history rehydrated",
			logging.Int("entries", len(entries)),
			logging.String(logging.FieldEventType, "history_rehydrated"),
		)
	}

	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		hub:        hub,
		registry:   cancel.NewRegistry(),
		tracker:    progress.NewTracker(hub),
		history:    hist,
		store:      store,
		catalog:    catalog,
		releaseLog: releaselog.New(cfg.Paths.LogDir, logger),
		notifier:   o.notifier,
		archive:    o.archive,
		lockPath:   cfg.LockPath(),
		lock:       flock.New(cfg.LockPath()),
	}
	d.queue = queue.New(queue.Options{
		Capacity:  cfg.Queue.Capacity,
		Cooldown:  cfg.FailureCooldown(),
		Publisher: hub,
		Logger:    logger,
	})
	if d.notifier == nil {
		d.notifier = notifications.NewService(cfg)
	}

	acquirer := o.acquirer
	if acquirer == nil {
		chain, statuses, checks, chainErr := buildChain(cfg, catalog, logger)
		if chainErr != nil {
			_ = store.Close()
			return nil, chainErr
		}
		acquirer = chain
		d.providers = statuses
		d.checks = checks
	} else {
		d.providers = []ProviderStatus{{Name: "custom", Enabled: true}}
	}

	pool, err := slots.New(slots.Options{
		Count:        cfg.Slots.Count,
		PollInterval: cfg.PollInterval(),
		ErrorBackoff: cfg.ErrorBackoff(),
		LibraryDir:   cfg.Paths.LibraryDir,
		Queue:        d.queue,
		Registry:     d.registry,
		Tracker:      d.tracker,
		History:      hist,
		Acquirer:     acquirer,
		Metadata:     catalog,
		ReleaseLog:   d.releaseLog,
		Notifier:     d.notifier,
		Publisher:    hub,
		Logger:       logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create slot pool: %w", err)
	}
	d.pool = pool
	d.api = newAPIServer(cfg.Paths.APIBind, cfg.Paths.APIToken, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the slot pool, the API server
// and retention. It returns once everything is listening.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another cratedig daemon instance is already running")
	}

	listener, err := d.api.listen()
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}

	runCtx, cancelFn := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return d.pool.Run(groupCtx) })
	group.Go(func() error { return d.api.serve(groupCtx, listener) })
	group.Go(func() error {
		d.retentionLoop(groupCtx)
		return nil
	})
	group.Go(func() error {
		d.logTransportSnapshot(groupCtx)
		return nil
	})

	d.cancel = cancelFn
	d.group = group
	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("cratedig daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
		logging.Int("slots", d.pool.Desired()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Wait blocks until the daemon's run group ends, either because the context
// given to Start was cancelled or because a component failed.
func (d *Daemon) Wait() error {
	d.mu.Lock()
	group := d.group
	d.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return
	}
	cancelFn, group := d.cancel, d.group
	d.cancel, d.group = nil, nil
	d.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
	}
	if group != nil {
		if err := group.Wait(); err != nil {
			d.logger.Warn("daemon component exited with error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "daemon_component_failed"),
			)
		}
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("cratedig daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the history store.
func (d *Daemon) Close() error {
	d.Stop()
	d.queue.Close()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	started := d.startedAt
	d.mu.Unlock()
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		StartedAt:     started,
		LockFilePath:  d.lockPath,
		HistoryDBPath: d.store.Path(),
		Queue:         d.queue.Snapshot(1),
		DesiredSlots:  d.pool.Desired(),
		Slots:         d.pool.Snapshot(),
		Providers:     append([]ProviderStatus(nil), d.providers...),
		EventsDropped: d.hub.Dropped(),
	}
}

// Enqueue adds releases to the tail, or to the head when front is set, and
// wakes the scheduler when anything was accepted.
func (d *Daemon) Enqueue(items []queue.Item, front bool) []queue.EnqueueResult {
	var results []queue.EnqueueResult
	if front {
		results = d.queue.EnqueueFront(items...)
	} else {
		results = d.queue.Enqueue(items...)
	}
	for _, res := range results {
		if res.Accepted {
			d.pool.Notify()
			break
		}
	}
	return results
}

// QueueSnapshot returns queue occupancy and up to limit queued items.
func (d *Daemon) QueueSnapshot(limit int) queue.Snapshot {
	return d.queue.Snapshot(limit)
}

// RemoveQueued drops a queued release by queue key.
func (d *Daemon) RemoveQueued(queueKey string) bool {
	return d.queue.TryRemove(queueKey)
}

// CancelRelease drops a waiting copy of a release from the queue and then
// cancels its in-flight attempt. Removing first means a release claimed in
// between is already registered with the pool and still gets cancelled.
func (d *Daemon) CancelRelease(artistID, folder string) (cancelled, removed int) {
	for _, item := range d.queue.Snapshot(0).Items {
		if strings.EqualFold(item.ArtistID, strings.TrimSpace(artistID)) &&
			strings.EqualFold(item.ReleaseFolder, strings.TrimSpace(folder)) {
			if d.queue.TryRemove(item.QueueKey) {
				removed++
			}
		}
	}
	if d.pool.CancelRelease(artistID, folder) {
		cancelled = 1
	}
	return cancelled, removed
}

// CancelArtist cancels every in-flight release of an artist and drops the
// artist's queued releases.
func (d *Daemon) CancelArtist(artistID string) (cancelled, removed int) {
	return d.pool.CancelArtist(artistID)
}

// Slots returns the desired slot count and every slot ordered by id.
func (d *Daemon) Slots() (int, []slots.SlotView) {
	return d.pool.Desired(), d.pool.Snapshot()
}

// ResizeSlots changes the slot count at runtime.
func (d *Daemon) ResizeSlots(n int) error {
	return d.pool.Resize(n)
}

// RecentHistory returns up to limit recent attempts, newest first.
func (d *Daemon) RecentHistory(limit int) []progress.Entry {
	return d.history.Recent(limit)
}

// ReleaseHistory returns the latest attempt at a release and the tail of its
// release log.
func (d *Daemon) ReleaseHistory(artistID, folder string, logLines int) (progress.Entry, bool, []string) {
	entry, ok := d.history.ForRelease(artistID, folder)
	if !ok {
		return progress.Entry{}, false, nil
	}
	artist := strings.TrimSpace(entry.ArtistName)
	if artist == "" {
		artist = entry.ArtistID
	}
	title := strings.TrimSpace(entry.ReleaseTitle)
	if title == "" {
		title = entry.ReleaseFolder
	}
	lines, err := d.releaseLog.Tail(artist, title, logLines)
	if err != nil {
		d.logger.Debug("release log tail failed", logging.Error(err))
	}
	return entry, true, lines
}

// Events exposes the event hub for API streaming.
func (d *Daemon) Events() *events.Hub {
	return d.hub
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// APIAddress returns the address the API server is listening on, or the
// configured bind address before Start.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}
