package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tahcohcat/meechain/internal/database"
	"github.com/tahcohcat/meechain/internal/models"
)

type SQLiteStorage struct {
	db *database.DB
}

func NewSQLiteStorage(db *database.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

type progressRow struct {
	PlayerID          string    `db:"player_id"`
	BotsMinted        int       `db:"bots_minted"`
	ProposalsAnalyzed int       `db:"proposals_analyzed"`
	PersonasCreated   int       `db:"personas_created"`
	MiningLevel       int       `db:"mining_level"`
	Unseen            string    `db:"unseen"`
	Notification      string    `db:"notification"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (s *SQLiteStorage) Load(ctx context.Context, playerID string) (*models.PlayerState, error) {
	var row progressRow
	err := s.db.GetContext(ctx, &row, `
		SELECT player_id, bots_minted, proposals_analyzed, personas_created, mining_level, unseen, notification, updated_at
		FROM player_progress WHERE player_id = ?`, playerID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get player progress: %w", err)
	}

	st := &models.PlayerState{
		PlayerID: row.PlayerID,
		Progress: models.ProgressSnapshot{
			BotsMinted:        row.BotsMinted,
			ProposalsAnalyzed: row.ProposalsAnalyzed,
			PersonasCreated:   row.PersonasCreated,
			MiningLevel:       row.MiningLevel,
		},
		UpdatedAt: row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.Unseen), &st.Unseen); err != nil {
		return nil, fmt.Errorf("%w: unseen list: %v", ErrCorruptState, err)
	}
	if st.Notification, err = decodeNotification(row.Notification); err != nil {
		return nil, err
	}

	err = s.db.SelectContext(ctx, &st.Achievements, `
		SELECT achievement_id, unlocked_at FROM player_achievements
		WHERE player_id = ? ORDER BY position`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player achievements: %w", err)
	}

	err = s.db.SelectContext(ctx, &st.Timeline, `
		SELECT id, type, message, timestamp, status, chain_tag FROM timeline_events
		WHERE player_id = ? ORDER BY seq`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get timeline: %w", err)
	}

	return st, nil
}

func (s *SQLiteStorage) Save(ctx context.Context, state models.PlayerState) (err error) {
	unseen, err := json.Marshal(nonNil(state.Unseen))
	if err != nil {
		return fmt.Errorf("failed to encode unseen list: %w", err)
	}
	note, err := encodeNotification(state.Notification)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	p := state.Progress
	_, err = tx.ExecContext(ctx, `
		INSERT INTO player_progress (player_id, bots_minted, proposals_analyzed, personas_created, mining_level, unseen, notification, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(player_id) DO UPDATE SET
			bots_minted = excluded.bots_minted,
			proposals_analyzed = excluded.proposals_analyzed,
			personas_created = excluded.personas_created,
			mining_level = excluded.mining_level,
			unseen = excluded.unseen,
			notification = excluded.notification,
			updated_at = excluded.updated_at`,
		state.PlayerID, p.BotsMinted, p.ProposalsAnalyzed, p.PersonasCreated, p.MiningLevel, string(unseen), note, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save player progress: %w", err)
	}

	for i, a := range state.Achievements {
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO player_achievements (player_id, achievement_id, position, unlocked_at)
			VALUES (?, ?, ?, ?)`, state.PlayerID, a.AchievementID, i, a.UnlockedAt)
		if err != nil {
			return fmt.Errorf("failed to save achievement %s: %w", a.AchievementID, err)
		}
	}

	for i, ev := range state.Timeline {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO timeline_events (id, player_id, seq, type, message, timestamp, status, chain_tag)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET status = excluded.status`,
			ev.ID, state.PlayerID, i, ev.Type, ev.Message, ev.Timestamp, ev.Status, ev.ChainTag)
		if err != nil {
			return fmt.Errorf("failed to save timeline event %s: %w", ev.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit player state: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// The pending notification is kept as a JSON document; "" means none.
func encodeNotification(n *models.Notification) (string, error) {
	if n == nil {
		return "", nil
	}
	b, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("failed to encode notification: %w", err)
	}
	return string(b), nil
}

func decodeNotification(raw string) (*models.Notification, error) {
	if raw == "" {
		return nil, nil
	}
	var n models.Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return nil, fmt.Errorf("%w: notification: %v", ErrCorruptState, err)
	}
	return &n, nil
}

var _ Repository = (*SQLiteStorage)(nil)

