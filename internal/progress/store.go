// Package progress owns a player's counters, unlocked achievements, timeline
// and notification. All mutation goes through Store methods; readers get
// copies.
package progress

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tahcohcat/meechain/internal/achievements"
	"github.com/tahcohcat/meechain/internal/logger"
	"github.com/tahcohcat/meechain/internal/models"
	"github.com/tahcohcat/meechain/internal/notify"
	"github.com/tahcohcat/meechain/internal/timeline"
)

var ErrReservedEventType = errors.New("event type is recorded by the store itself")

// Update is what listeners receive after every change.
type Update struct {
	State        models.PlayerState   `json:"state"`
	Notification *models.Notification `json:"notification,omitempty"`
}

// Listener observes store changes. Calls are serialised per store and arrive
// in mutation order. A listener must not call back into the store.
type Listener interface {
	StateChanged(u Update)
}

type ListenerFunc func(u Update)

func (f ListenerFunc) StateChanged(u Update) { f(u) }

type Options struct {
	Clock        timeline.Clock
	ConfirmDelay time.Duration
	ChainTag     string
	Catalog      *achievements.Catalog
}

type Store struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	playerID  string
	clock     timeline.Clock
	catalog   *achievements.Catalog
	chainTag  string
	progress  models.ProgressSnapshot
	unlocked  map[string]models.UnlockedAchievement
	order     []string
	unseen    []string
	updatedAt time.Time
	timeline  *timeline.Reconciler
	relay     *notify.Relay
	listeners []Listener
	log       *logger.Log
}

// NewStore rehydrates a store from a persisted state. A zero PlayerState
// (with PlayerID set) starts a fresh player.
func NewStore(initial models.PlayerState, opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = timeline.RealClock()
	}
	if opts.Catalog == nil {
		opts.Catalog = achievements.Default
	}

	s := &Store{
		playerID:  initial.PlayerID,
		clock:     opts.Clock,
		catalog:   opts.Catalog,
		chainTag:  opts.ChainTag,
		progress:  initial.Progress,
		unlocked:  make(map[string]models.UnlockedAchievement, len(initial.Achievements)),
		unseen:    append([]string(nil), initial.Unseen...),
		updatedAt: initial.UpdatedAt,
		relay:     notify.NewRelay(),
		log:       logger.New().With("player", initial.PlayerID),
	}

	s.sanitize()
	for _, a := range initial.Achievements {
		if _, dup := s.unlocked[a.AchievementID]; dup {
			continue
		}
		s.unlocked[a.AchievementID] = a
		s.order = append(s.order, a.AchievementID)
	}
	if n := initial.Notification; n != nil {
		if _, held := s.unlocked[n.AchievementID]; held {
			s.relay.Restore(*n)
		} else {
			s.log.With("achievement", n.AchievementID).Warn("dropping restored notification for an achievement not held")
		}
	}

	s.timeline = timeline.NewReconciler(opts.Clock, opts.ConfirmDelay, initial.Timeline, s.timelineConfirmed)
	return s
}

func (s *Store) sanitize() {
	p := &s.progress
	for _, c := range []*int{&p.BotsMinted, &p.ProposalsAnalyzed, &p.PersonasCreated, &p.MiningLevel} {
		if *c < 0 {
			s.log.Warn(fmt.Sprintf("negative counter %d in restored state, resetting to 0", *c))
			*c = 0
		}
	}
}

func (s *Store) PlayerID() string {
	return s.playerID
}

// Subscribe registers l for every subsequent change.
func (s *Store) Subscribe(l Listener) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// RecordMint counts a freshly minted MeeBot.
func (s *Store) RecordMint() models.ActionResult {
	return s.apply(func(p *models.ProgressSnapshot) bool {
		p.BotsMinted++
		return true
	}, models.EventCreation, "Minted a new MeeBot")
}

// RecordProposalAnalyzed counts a completed governance proposal analysis.
func (s *Store) RecordProposalAnalyzed() models.ActionResult {
	return s.apply(func(p *models.ProgressSnapshot) bool {
		p.ProposalsAnalyzed++
		return true
	}, models.EventAnalysis, "Analyzed a governance proposal")
}

// RecordPersonaCreated counts a newly created persona.
func (s *Store) RecordPersonaCreated() models.ActionResult {
	return s.apply(func(p *models.ProgressSnapshot) bool {
		p.PersonasCreated++
		return true
	}, models.EventCreation, "Created a new persona")
}

// SetMiningLevel takes the level derived by the mining simulation. Levels
// at or below the current one are ignored.
func (s *Store) SetMiningLevel(level int) models.ActionResult {
	return s.apply(func(p *models.ProgressSnapshot) bool {
		if level <= p.MiningLevel {
			return false
		}
		p.MiningLevel = level
		return true
	}, "", "")
}

// RecordEvent stages a timeline entry originating outside the progress
// flows (gifts, chat, migrations...). Achievement unlocks are reserved. An
// empty chainTag falls back to the store's.
func (s *Store) RecordEvent(kind models.EventType, message, chainTag string) (models.TimelineEvent, error) {
	if _, err := models.ParseEventType(string(kind)); err != nil {
		return models.TimelineEvent{}, err
	}
	if kind == models.EventAchievementUnlock {
		return models.TimelineEvent{}, ErrReservedEventType
	}

	s.mu.Lock()
	if chainTag == "" {
		chainTag = s.chainTag
	}
	ev := s.timeline.Stage(kind, message, chainTag)
	s.updatedAt = s.clock.Now()
	s.commitLocked()

	return ev, nil
}

func (s *Store) apply(mutate func(*models.ProgressSnapshot) bool, kind models.EventType, message string) models.ActionResult {
	s.mu.Lock()

	if !mutate(&s.progress) {
		result := models.ActionResult{Progress: s.progress}
		s.mu.Unlock()
		return result
	}

	now := s.clock.Now()
	result := models.ActionResult{Progress: s.progress}
	if kind != "" {
		result.Events = append(result.Events, s.timeline.Stage(kind, message, s.chainTag))
	}

	qualified := s.catalog.Evaluate(s.progress, s.heldLocked())
	for _, d := range qualified {
		u := models.UnlockedAchievement{AchievementID: d.ID, UnlockedAt: now}
		s.unlocked[d.ID] = u
		s.order = append(s.order, d.ID)
		result.Unlocked = append(result.Unlocked, u)
		result.Events = append(result.Events,
			s.timeline.Stage(models.EventAchievementUnlock, fmt.Sprintf("Unlocked \"%s\" badge", d.Name), s.chainTag))
		s.log.With("achievement", d.ID).Info("achievement unlocked")
	}

	if skipped := s.relay.Notify(qualified, now); len(skipped) > 0 {
		s.unseen = append(s.unseen, skipped...)
		s.log.With("unseen", skipped).Debug("simultaneous unlocks not surfaced")
	}
	if n, ok := s.relay.Current(); ok && len(qualified) > 0 {
		result.Notification = &n
	}

	s.updatedAt = now
	s.log.With("progress", s.progress).Debug("progress updated")
	s.commitLocked()

	return result
}

func (s *Store) heldLocked() achievements.IDSet {
	held := make(achievements.IDSet, len(s.unlocked))
	for id := range s.unlocked {
		held[id] = true
	}
	return held
}

// commitLocked releases s.mu and delivers the resulting update. The notify
// lock is taken before s.mu is released so updates leave in mutation order.
func (s *Store) commitLocked() {
	u := s.updateLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, l := range s.listeners {
		l.StateChanged(u)
	}
}

func (s *Store) timelineConfirmed(confirmed []models.TimelineEvent) {
	s.mu.Lock()
	s.updatedAt = s.clock.Now()
	s.log.Debug(fmt.Sprintf("confirmed %d timeline events", len(confirmed)))
	s.commitLocked()
}

func (s *Store) updateLocked() Update {
	u := Update{State: s.stateLocked()}
	if n, ok := s.relay.Current(); ok {
		u.Notification = &n
	}
	return u
}

func (s *Store) stateLocked() models.PlayerState {
	st := models.PlayerState{
		PlayerID:     s.playerID,
		Progress:     s.progress,
		Achievements: make([]models.UnlockedAchievement, 0, len(s.order)),
		Timeline:     s.timeline.Log(),
		Unseen:       append([]string(nil), s.unseen...),
		UpdatedAt:    s.updatedAt,
	}
	if n, ok := s.relay.Current(); ok {
		st.Notification = &n
	}
	for _, id := range s.order {
		st.Achievements = append(st.Achievements, s.unlocked[id])
	}
	return st
}

func (s *Store) Snapshot() models.ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Achievements lists held achievements in unlock order; ties within one
// action follow catalog order.
func (s *Store) Achievements() []models.UnlockedAchievement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked().Achievements
}

// Has reports whether the player holds id.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.unlocked[id]
	return ok
}

// Timeline returns events newest first.
func (s *Store) Timeline() []models.TimelineEvent {
	return s.timeline.Events()
}

func (s *Store) Notification() (models.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relay.Current()
}

// Dismiss acknowledges the current notification.
func (s *Store) Dismiss() bool {
	s.mu.Lock()
	if !s.relay.Dismiss() {
		s.mu.Unlock()
		return false
	}
	s.commitLocked()
	return true
}

// State returns a deep copy of everything persisted for the player.
func (s *Store) State() models.PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Close stops the pending timeline confirmation, if any.
func (s *Store) Close() {
	s.timeline.Stop()
}
