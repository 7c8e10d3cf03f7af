package models

import (
	"errors"
	"fmt"
)

var ErrUnknownEventType = errors.New("unknown timeline event type")

type EventType string

const (
	EventCreation          EventType = "creation"
	EventGift              EventType = "gift"
	EventAchievementUnlock EventType = "achievement-unlock"
	EventAnalysis          EventType = "analysis"
	EventEmotionChange     EventType = "emotion-change"
	EventMigration         EventType = "migration"
	EventMission           EventType = "mission"
	EventGiftSent          EventType = "gift-sent"
	EventChat              EventType = "chat"
)

var eventTypes = map[EventType]bool{
	EventCreation:          true,
	EventGift:              true,
	EventAchievementUnlock: true,
	EventAnalysis:          true,
	EventEmotionChange:     true,
	EventMigration:         true,
	EventMission:           true,
	EventGiftSent:          true,
	EventChat:              true,
}

// ParseEventType validates a wire value against the known kinds.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if !eventTypes[t] {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, s)
	}
	return t, nil
}

type EventStatus string

const (
	StatusStaged    EventStatus = "staged"
	StatusConfirmed EventStatus = "confirmed"
)

// TimelineEvent is one entry of a player's activity feed. Timestamp is
// milliseconds since the epoch and is fixed when the event is staged.
type TimelineEvent struct {
	ID        string      `json:"id" db:"id"`
	Type      EventType   `json:"type" db:"type"`
	Message   string      `json:"message" db:"message"`
	Timestamp int64       `json:"timestamp" db:"timestamp"`
	Status    EventStatus `json:"status" db:"status"`
	ChainTag  string      `json:"chain_tag,omitempty" db:"chain_tag"`
}
