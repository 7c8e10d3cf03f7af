package models

import (
	"time"
)

// UnlockedAchievement records that a player holds an achievement.
type UnlockedAchievement struct {
	AchievementID string    `json:"achievement_id" db:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at" db:"unlocked_at"`
}

// Notification is the single achievement awaiting acknowledgment.
type Notification struct {
	AchievementID string    `json:"achievement_id"`
	Icon          string    `json:"icon"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	RaisedAt      time.Time `json:"raised_at"`
}

type AchievementView struct {
	ID          string     `json:"id"`
	Icon        string     `json:"icon"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Position    int        `json:"position"`
	Progress    int        `json:"progress"`
	MaxProgress int        `json:"max_progress"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
}
