package models

import "time"

// ProgressSnapshot holds the counters achievements are derived from. Every
// field only grows over the life of a player.
type ProgressSnapshot struct {
	BotsMinted        int `json:"bots_minted" db:"bots_minted"`
	ProposalsAnalyzed int `json:"proposals_analyzed" db:"proposals_analyzed"`
	PersonasCreated   int `json:"personas_created" db:"personas_created"`
	MiningLevel       int `json:"mining_level" db:"mining_level"`
}

// PlayerState is the persisted record of one player: one document per store.
type PlayerState struct {
	PlayerID     string                `json:"player_id"`
	Progress     ProgressSnapshot      `json:"progress"`
	Achievements []UnlockedAchievement `json:"achievements"`
	Timeline     []TimelineEvent       `json:"timeline"`
	Unseen       []string              `json:"unseen,omitempty"`
	Notification *Notification         `json:"notification,omitempty"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// Clone returns a copy that shares no slices with s.
func (s PlayerState) Clone() PlayerState {
	out := s
	out.Achievements = append([]UnlockedAchievement(nil), s.Achievements...)
	out.Timeline = append([]TimelineEvent(nil), s.Timeline...)
	out.Unseen = append([]string(nil), s.Unseen...)
	if s.Notification != nil {
		n := *s.Notification
		out.Notification = &n
	}
	return out
}

// ActionResult is what a progress-changing action hands back to its caller.
type ActionResult struct {
	Progress     ProgressSnapshot      `json:"progress"`
	Unlocked     []UnlockedAchievement `json:"unlocked"`
	Notification *Notification         `json:"notification,omitempty"`
	Events       []TimelineEvent       `json:"events"`
}
