package slots

import (
	"sort"
	"time"

	"cratedig/internal/logging"
	"cratedig/internal/progress"
	"cratedig/internal/queue"
)

// SlotView is a read-only snapshot of one slot.
type SlotView struct {
	ID             int                `json:"id"`
	Active         bool               `json:"active"`
	Working        bool               `json:"working"`
	State          progress.SlotState `json:"state"`
	Current        *queue.Item        `json:"current,omitempty"`
	Progress       *progress.Progress `json:"progress,omitempty"`
	StartedAt      time.Time          `json:"started_at,omitempty"`
	LastActivityAt time.Time          `json:"last_activity_at,omitempty"`
}

// Resize sets the desired slot count. Growth takes effect immediately.
// Shrinking stops idle slots now and retires busy ones when their release
// finishes.
func (p *Pool) Resize(n int) error {
	if err := validateCount(n); err != nil {
		return err
	}
	p.mu.Lock()
	previous := p.desired
	p.desired = n
	if p.running && p.initialized {
		p.reconcileLocked()
	}
	p.mu.Unlock()

	if previous != n {
		p.logger.Info("slot count changed",
			logging.Int("previous", previous),
			logging.Int("slots", n),
			logging.String(logging.FieldEventType, "slots_resized"),
		)
		p.Notify()
	}
	return nil
}

// Desired returns the configured slot count.
func (p *Pool) Desired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.desired
}

func (p *Pool) reconcileLocked() {
	ordered := p.sortedLocked()
	active := 0
	for _, s := range ordered {
		if s.active {
			active++
		}
	}

	if active < p.desired {
		need := p.desired - active
		for _, s := range ordered {
			if need == 0 {
				break
			}
			if !s.active {
				s.active = true
				need--
			}
		}
		for ; need > 0; need-- {
			p.startSlotLocked()
		}
		return
	}

	excess := active - p.desired
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].id > ordered[j].id })
	for _, s := range ordered {
		if excess == 0 {
			return
		}
		if s.active && !s.working {
			close(s.stop)
			delete(p.slots, s.id)
			excess--
		}
	}
	for _, s := range ordered {
		if excess == 0 {
			return
		}
		if s.active && s.working {
			s.active = false
			excess--
		}
	}
}

func (p *Pool) startSlotLocked() {
	id := 1
	for {
		if _, taken := p.slots[id]; !taken {
			break
		}
		id++
	}
	s := newSlot(id)
	p.slots[id] = s
	p.wg.Add(1)
	go p.runSlot(p.runCtx, s)
}

// retireIfInactive removes a slot that was marked for removal while busy.
func (p *Pool) retireIfInactive(s *slot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.active {
		return false
	}
	if current, ok := p.slots[s.id]; ok && current == s {
		delete(p.slots, s.id)
	}
	return true
}

// Snapshot returns every slot ordered by id.
func (p *Pool) Snapshot() []SlotView {
	p.mu.Lock()
	views := make([]SlotView, 0, len(p.slots))
	for _, s := range p.sortedLocked() {
		views = append(views, s.viewLocked())
	}
	p.mu.Unlock()

	for i := range views {
		if prog, ok := p.tracker.Get(views[i].ID); ok {
			views[i].Progress = &prog
		}
	}
	return views
}
