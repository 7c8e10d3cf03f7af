// Package notify surfaces unlocked achievements one at a time.
package notify

import (
	"time"

	"github.com/tahcohcat/meechain/internal/achievements"
	"github.com/tahcohcat/meechain/internal/models"
)

// Relay holds at most one current notification. When a single action unlocks
// several achievements only the first (catalog order) is shown; the rest are
// reported back as unseen rather than queued.
//
// Relay is not safe for concurrent use; its owner serialises access.
type Relay struct {
	current *models.Notification
}

func NewRelay() *Relay {
	return &Relay{}
}

// Notify replaces the current notification with the first of unlocked and
// returns the ids that were not shown. An empty list leaves the relay as is.
func (r *Relay) Notify(unlocked []achievements.Definition, at time.Time) (skipped []string) {
	if len(unlocked) == 0 {
		return nil
	}

	first := unlocked[0]
	r.current = &models.Notification{
		AchievementID: first.ID,
		Icon:          first.Icon,
		Title:         first.Name,
		Description:   first.Description,
		RaisedAt:      at,
	}

	for _, d := range unlocked[1:] {
		skipped = append(skipped, d.ID)
	}
	return skipped
}

// Restore puts back a notification that was pending when the player's state
// was last saved.
func (r *Relay) Restore(n models.Notification) {
	r.current = &n
}

// Current returns a copy of the pending notification.
func (r *Relay) Current() (models.Notification, bool) {
	if r.current == nil {
		return models.Notification{}, false
	}
	return *r.current, true
}

// Dismiss clears the current notification and reports whether there was one.
func (r *Relay) Dismiss() bool {
	had := r.current != nil
	r.current = nil
	return had
}
