// Package timeline stages activity events and confirms them in batches after
// a fixed delay. It simulates block-confirmation latency only: a confirmed
// event is not durable by virtue of being confirmed.
package timeline

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tahcohcat/meechain/internal/models"
)

// DefaultConfirmDelay mirrors the latency players are used to seeing.
const DefaultConfirmDelay = 3500 * time.Millisecond

// Reconciler owns one player's timeline. Events move staged -> confirmed
// exactly once; timestamps never change.
type Reconciler struct {
	mu        sync.Mutex
	clock     Clock
	delay     time.Duration
	events    []models.TimelineEvent
	timer     Timer
	stopped   bool
	onConfirm func(confirmed []models.TimelineEvent)
}

// NewReconciler restores events (in insertion order) and arms the
// confirmation timer if any of them are still staged. onConfirm may be nil
// and is called outside the reconciler's lock.
func NewReconciler(clock Clock, delay time.Duration, restored []models.TimelineEvent, onConfirm func([]models.TimelineEvent)) *Reconciler {
	if clock == nil {
		clock = RealClock()
	}
	if delay <= 0 {
		delay = DefaultConfirmDelay
	}

	r := &Reconciler{
		clock:     clock,
		delay:     delay,
		events:    append([]models.TimelineEvent(nil), restored...),
		onConfirm: onConfirm,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stagedLocked() > 0 {
		r.armLocked()
	}
	return r
}

// Stage appends a staged event stamped with the current time.
func (r *Reconciler) Stage(kind models.EventType, message, chainTag string) models.TimelineEvent {
	ev := models.TimelineEvent{
		ID:        uuid.NewString(),
		Type:      kind,
		Message:   message,
		Timestamp: r.clock.Now().UnixMilli(),
		Status:    models.StatusStaged,
		ChainTag:  chainTag,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	r.armLocked()
	return ev
}

// armLocked schedules a confirmation unless one is already pending.
func (r *Reconciler) armLocked() {
	if r.stopped || r.timer != nil {
		return
	}
	r.timer = r.clock.AfterFunc(r.delay, r.confirm)
}

func (r *Reconciler) confirm() {
	r.mu.Lock()
	r.timer = nil
	if r.stopped {
		r.mu.Unlock()
		return
	}

	var confirmed []models.TimelineEvent
	for i := range r.events {
		if r.events[i].Status != models.StatusStaged {
			continue
		}
		r.events[i].Status = models.StatusConfirmed
		confirmed = append(confirmed, r.events[i])
	}
	fn := r.onConfirm
	r.mu.Unlock()

	if len(confirmed) > 0 && fn != nil {
		fn(confirmed)
	}
}

// Events returns a copy sorted newest first. Among equal timestamps the most
// recently staged comes first.
func (r *Reconciler) Events() []models.TimelineEvent {
	r.mu.Lock()
	out := make([]models.TimelineEvent, 0, len(r.events))
	for i := len(r.events) - 1; i >= 0; i-- {
		out = append(out, r.events[i])
	}
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}

// Log returns a copy in insertion order, the form used for persistence.
func (r *Reconciler) Log() []models.TimelineEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.TimelineEvent(nil), r.events...)
}

func (r *Reconciler) Staged() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stagedLocked()
}

func (r *Reconciler) stagedLocked() int {
	n := 0
	for _, ev := range r.events {
		if ev.Status == models.StatusStaged {
			n++
		}
	}
	return n
}

// Stop cancels any pending confirmation. Staged events stay staged and are
// picked up again by whichever reconciler restores them.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
