package slots

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"cratedig/internal/cancel"
	"cratedig/internal/config"
	"cratedig/internal/events"
	"cratedig/internal/library"
	"cratedig/internal/logging"
	"cratedig/internal/notifications"
	"cratedig/internal/progress"
	"cratedig/internal/provider"
	"cratedig/internal/queue"
	"cratedig/internal/releaselog"
	"cratedig/internal/services"
	"cratedig/internal/textmatch"
)

var errPanic = errors.New("slot panic")

type slot struct {
	id           int
	active       bool
	working      bool
	state        progress.SlotState
	current      *queue.Item
	startedAt    time.Time
	lastActivity time.Time

	work chan claim
	stop chan struct{}
}

func newSlot(id int) *slot {
	return &slot{
		id:     id,
		active: true,
		state:  progress.StateIdle,
		work:   make(chan claim, 1),
		stop:   make(chan struct{}),
	}
}

func (s *slot) viewLocked() SlotView {
	view := SlotView{
		ID:             s.id,
		Active:         s.active,
		Working:        s.working,
		State:          s.state,
		StartedAt:      s.startedAt,
		LastActivityAt: s.lastActivity,
	}
	if s.current != nil {
		item := *s.current
		view.Current = &item
	}
	return view
}

func (p *Pool) runSlot(ctx context.Context, s *slot) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case c := <-s.work:
			if ctx.Err() != nil {
				p.unclaim(s, c)
				return
			}
			p.process(ctx, s, c)
			if p.retireIfInactive(s) {
				return
			}
		}
	}
}

// unclaim returns a release that was handed to a slot but never started.
func (p *Pool) unclaim(s *slot, c claim) {
	p.mu.Lock()
	s.working = false
	s.current = nil
	p.mu.Unlock()
	p.registry.Release(c.token, c.item.ArtistID, c.item.ReleaseFolder)
	p.queue.RequeueFront(c.item)
}

// result is what one attempt ended with.
type result struct {
	state    progress.SlotState
	outcome  string
	message  string
	provider string
	backoff  bool
	// interrupted marks an attempt stopped by pool shutdown rather than by a
	// cancel request. It is requeued instead of recorded.
	interrupted bool
}

func (p *Pool) process(runCtx context.Context, s *slot, c claim) {
	item := c.item
	rel := progress.Release{
		ArtistID:      item.ArtistID,
		ReleaseFolder: item.ReleaseFolder,
		ArtistName:    item.ArtistName,
		ReleaseTitle:  item.ReleaseTitle,
		SlotID:        s.id,
	}
	tokenCtx := c.token
	workCtx := services.WithSlotID(tokenCtx, s.id)
	workCtx = services.WithRelease(workCtx, item.ArtistID, item.ReleaseFolder)
	workCtx = services.WithRequestID(workCtx, uuid.NewString())
	logger := logging.WithContext(workCtx, p.logger)

	var res result
	defer func() {
		if r := recover(); r != nil {
			res = result{state: progress.StateError, outcome: progress.OutcomeFailed, message: fmt.Sprint(r), backoff: true}
			logging.ErrorWithContext(logger, "slot panicked outside acquisition", "slot_panic",
				logging.String("panic", res.message),
				logging.String(logging.FieldImpact, "slot backs off before taking more work"),
			)
			p.transition(workCtx, s, rel, res.state)
			p.history.RecordResult(workCtx, rel, progress.Result{Outcome: res.outcome, ErrorMessage: res.message})
		}
		p.finish(runCtx, tokenCtx, s, item, rel, res)
	}()

	p.transition(workCtx, s, rel, progress.StateStarting)
	req := p.buildRequest(workCtx, item)
	rel.ArtistName = req.ArtistName
	rel.ReleaseTitle = req.ReleaseTitle

	p.tracker.Begin(s.id, item.ArtistID, item.ReleaseFolder, req.ArtistName, req.ReleaseTitle)
	reporter := p.tracker.Reporter(s.id)
	reporter.OnLog = releaselog.Func(p.releaseLog, logger, req.ArtistName, req.ReleaseTitle)
	req.Reporter = reporter
	reporter.Log(fmt.Sprintf("claimed by slot %d", s.id))

	p.transition(workCtx, s, rel, progress.StateProcessing)
	p.setLibraryStatus(workCtx, item, library.StatusSearching)
	logger.Info("release processing started",
		logging.String("release", item.Label()),
		logging.String(logging.FieldEventType, "release_started"),
	)

	outcome, err := p.acquire(workCtx, req)
	res = p.classify(workCtx, outcome, err)
	if res.state == progress.StateCancelled && runCtx.Err() != nil && !cancel.Requested(tokenCtx) {
		res.interrupted = true
		p.setLibraryStatus(context.WithoutCancel(workCtx), item, library.StatusQueued)
		reporter.Log("interrupted by shutdown; requeued")
		logger.Info("release interrupted by shutdown",
			logging.String("release", item.Label()),
			logging.String(logging.FieldEventType, "release_interrupted"),
		)
		return
	}

	switch res.state {
	case progress.StateCompleted:
		reporter.Complete(res.provider)
		reporter.Log(fmt.Sprintf("acquired via %s: %s", res.provider, outcome.Candidate))
		logger.Info("release acquired",
			logging.Args(logging.OutcomeAttrs(res.provider, res.outcome, outcome.Candidate)...)...)
	case progress.StateCancelled:
		reporter.Cancel()
		reporter.Log("cancelled")
		logger.Info("release cancelled",
			logging.String("release", item.Label()),
			logging.String(logging.FieldEventType, "release_cancelled"),
		)
	default:
		reporter.Fail(res.message)
		reporter.Log("failed: " + res.message)
		if res.backoff {
			logging.ErrorWithContext(logger, "release attempt crashed", "release_unexpected_error",
				logging.String("release", item.Label()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "slot backs off before taking more work"),
			)
		} else {
			logging.WarnWithContext(logger, "release not acquired", "release_failed",
				logging.String("release", item.Label()),
				logging.String("outcome", res.outcome),
				logging.String("reason", res.message),
			)
		}
	}
	p.transition(workCtx, s, rel, res.state)
	p.history.RecordResult(workCtx, rel, progress.Result{
		Success:      res.state == progress.StateCompleted,
		Outcome:      res.outcome,
		ErrorMessage: res.message,
		ProviderUsed: res.provider,
	})
	p.report(workCtx, item, rel, res)
}

func (p *Pool) acquire(ctx context.Context, req provider.Request) (outcome provider.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = provider.Outcome{}
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return p.acquirer.Acquire(ctx, req)
}

func (p *Pool) classify(ctx context.Context, outcome provider.Outcome, err error) result {
	switch {
	case err == nil && outcome.Acquired:
		return result{state: progress.StateCompleted, outcome: progress.OutcomeCompleted, provider: outcome.Provider}
	case ctx.Err() != nil || services.Classify(err) == services.KindCancelled:
		return result{state: progress.StateCancelled, outcome: progress.OutcomeCancelled}
	case err == nil:
		msg := outcome.Reason
		if msg == "" {
			msg = "no matching release found"
		}
		return result{state: progress.StateError, outcome: progress.OutcomeNotFound, message: msg}
	}
	res := result{state: progress.StateError, outcome: progress.OutcomeFailed, message: services.Summary(err)}
	switch services.Classify(err) {
	case services.KindNotFound:
		res.outcome = progress.OutcomeNotFound
	case services.KindUnexpected:
		res.backoff = true
	}
	return res
}

func (p *Pool) buildRequest(ctx context.Context, item queue.Item) provider.Request {
	req := provider.Request{
		ArtistID:       item.ArtistID,
		ReleaseFolder:  item.ReleaseFolder,
		ArtistName:     item.ArtistName,
		ReleaseTitle:   item.ReleaseTitle,
		Year:           item.Year,
		ExpectedTracks: item.ExpectedTracks,
	}
	if p.metadata != nil {
		info, err := p.metadata.GetRelease(ctx, item.ArtistID, item.ReleaseFolder)
		switch {
		case err == nil:
			if req.ArtistName == "" {
				req.ArtistName = info.ArtistName
			}
			if req.ReleaseTitle == "" {
				req.ReleaseTitle = info.Title
			}
			if req.Year == "" {
				req.Year = info.Year
			}
			if req.ExpectedTracks <= 0 {
				req.ExpectedTracks = info.TrackCount
			}
			req.TargetDir = info.ReleasePath
		case !errors.Is(err, services.ErrNotFound):
			logging.WarnWithContext(logging.WithContext(ctx, p.logger), "metadata lookup failed", "metadata_lookup_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "acquisition continues with queued fields only"),
			)
		}
	}
	if req.ArtistName == "" {
		req.ArtistName = item.ArtistID
	}
	if req.ReleaseTitle == "" {
		req.ReleaseTitle = item.ReleaseFolder
	}
	if req.TargetDir == "" && p.libraryDir != "" {
		req.TargetDir = filepath.Join(p.libraryDir,
			textmatch.SanitizeFileName(req.ArtistName),
			textmatch.SanitizeFileName(item.ReleaseFolder))
	}
	return req
}

// report pushes the outcome to the library and the notifier. Neither may
// change the recorded result.
func (p *Pool) report(ctx context.Context, item queue.Item, rel progress.Release, res result) {
	side := context.WithoutCancel(ctx)
	var status library.DownloadStatus
	switch res.state {
	case progress.StateCompleted:
		status = library.StatusDownloaded
		if res.provider == config.ProviderIndexer {
			// Handed to an external downloader; it finishes the transfer.
			status = library.StatusDownloading
		}
	case progress.StateCancelled:
		status = library.StatusCancelled
	default:
		status = library.StatusFailed
		if res.outcome == progress.OutcomeNotFound {
			status = library.StatusNotFound
		}
	}
	p.setLibraryStatus(side, item, status)

	if res.state == progress.StateCancelled {
		return
	}
	event := notifications.EventReleaseCompleted
	payload := notifications.Payload{
		"artist":   rel.ArtistName,
		"title":    rel.ReleaseTitle,
		"provider": res.provider,
	}
	if res.state != progress.StateCompleted {
		event = notifications.EventReleaseFailed
		payload["error"] = res.message
	}
	if err := p.notifier.Publish(side, event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "outcome recorded without push notification"),
		)
	}
}

func (p *Pool) setLibraryStatus(ctx context.Context, item queue.Item, status library.DownloadStatus) {
	if p.metadata == nil {
		return
	}
	if err := p.metadata.UpdateDownloadStatus(ctx, item.ArtistID, item.ReleaseFolder, status); err != nil &&
		!errors.Is(err, services.ErrNotFound) {
		p.logger.Debug("library status update failed",
			logging.String(logging.FieldArtistID, item.ArtistID),
			logging.String(logging.FieldReleaseFolder, item.ReleaseFolder),
			logging.String("status", string(status)),
			logging.Error(err),
		)
	}
}

func (p *Pool) transition(ctx context.Context, s *slot, rel progress.Release, to progress.SlotState) {
	p.mu.Lock()
	from := s.state
	s.state = to
	s.lastActivity = p.now().UTC()
	view := s.viewLocked()
	p.mu.Unlock()

	p.history.RecordTransition(ctx, rel, from, to)
	p.publisher.Publish(events.TopicSlots, EventSlotState, view)
}

// finish clears the slot's claim exactly once, waits out the error backoff
// when the attempt crashed, and returns the slot to Idle.
func (p *Pool) finish(runCtx, tokenCtx context.Context, s *slot, item queue.Item, rel progress.Release, res result) {
	p.mu.Lock()
	s.current = nil
	p.mu.Unlock()
	if res.interrupted {
		p.queue.RequeueFront(item)
	} else {
		p.queue.Release(item)
	}
	p.registry.Release(tokenCtx, item.ArtistID, item.ReleaseFolder)
	p.tracker.Clear(s.id)
	if res.state == progress.StateError {
		p.queue.MarkFailed(item.ArtistID, item.ReleaseFolder)
	}

	if res.backoff && p.errorBackoff > 0 {
		timer := time.NewTimer(p.errorBackoff)
		select {
		case <-runCtx.Done():
		case <-timer.C:
		}
		timer.Stop()
	}

	p.transition(context.WithoutCancel(tokenCtx), s, rel, progress.StateIdle)
	p.mu.Lock()
	s.working = false
	s.startedAt = time.Time{}
	p.mu.Unlock()
	p.Notify()
}
