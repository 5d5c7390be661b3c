package progress

// SlotReporter adapts a Tracker slot to the callbacks the provider chains
// emit. Log lines go to OnLog when set.
type SlotReporter struct {
	tracker *Tracker
	slotID  int
	OnLog   func(line string)
}

// Reporter returns a reporter bound to slotID.
func (t *Tracker) Reporter(slotID int) *SlotReporter {
	return &SlotReporter{tracker: t, slotID: slotID}
}

// Searching marks the release as searching and resets track counters.
func (r *SlotReporter) Searching() {
	r.tracker.Update(r.slotID, func(p *Progress) {
		p.Status = StatusSearching
		p.TotalTracks = 0
		p.CompletedTracks = 0
	})
}

// Downloading records that a candidate was chosen with total tracks.
func (r *SlotReporter) Downloading(total int) {
	r.tracker.Update(r.slotID, func(p *Progress) {
		p.Status = StatusDownloading
		p.TotalTracks = total
		p.CompletedTracks = 0
	})
}

// TrackCompleted records that track index (1-based) finished. Counters never
// move backwards.
func (r *SlotReporter) TrackCompleted(index int) {
	r.tracker.Update(r.slotID, func(p *Progress) {
		if index > p.CompletedTracks {
			p.CompletedTracks = index
		}
	})
}

// ProviderAttempt records which provider chain is running.
func (r *SlotReporter) ProviderAttempt(name string, index, total int) {
	r.tracker.Update(r.slotID, func(p *Progress) {
		p.CurrentProvider = name
		p.CurrentProviderIndex = index
		p.TotalProviders = total
	})
}

// Log forwards a decision line.
func (r *SlotReporter) Log(line string) {
	if r.OnLog != nil {
		r.OnLog(line)
	}
}

// Complete marks the release completed with every track accounted for.
func (r *SlotReporter) Complete(provider string) {
	r.tracker.Update(r.slotID, func(p *Progress) {
		p.Status = StatusCompleted
		p.CompletedTracks = p.TotalTracks
		if provider != "" {
			p.CurrentProvider = provider
		}
		p.ErrorMessage = ""
	})
}

// Fail marks the release failed with a human-readable message.
func (r *SlotReporter) Fail(message string) {
	r.tracker.Update(r.slotID, func(p *Progress) {
		p.Status = StatusFailed
		p.ErrorMessage = message
	})
}

// Cancel marks the release cancelled.
func (r *SlotReporter) Cancel() {
	r.tracker.Update(r.slotID, func(p *Progress) {
		p.Status = StatusCancelled
	})
}
