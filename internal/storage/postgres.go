package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tahcohcat/meechain/internal/logger"
	"github.com/tahcohcat/meechain/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS player_progress (
	player_id TEXT PRIMARY KEY,
	bots_minted INTEGER NOT NULL DEFAULT 0,
	proposals_analyzed INTEGER NOT NULL DEFAULT 0,
	personas_created INTEGER NOT NULL DEFAULT 0,
	mining_level INTEGER NOT NULL DEFAULT 0,
	unseen TEXT[] NOT NULL DEFAULT '{}',
	notification TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS player_achievements (
	player_id TEXT NOT NULL REFERENCES player_progress(player_id) ON DELETE CASCADE,
	achievement_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	unlocked_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (player_id, achievement_id)
);
CREATE TABLE IF NOT EXISTS timeline_events (
	id TEXT PRIMARY KEY,
	player_id TEXT NOT NULL REFERENCES player_progress(player_id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	type TEXT NOT NULL,
	message TEXT NOT NULL,
	timestamp BIGINT NOT NULL,
	status TEXT NOT NULL,
	chain_tag TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_timeline_player_seq ON timeline_events(player_id, seq);
ALTER TABLE player_progress ADD COLUMN IF NOT EXISTS notification TEXT NOT NULL DEFAULT '';
`

type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger *logger.Log
}

func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	log := logger.New().With("storage", "postgres")

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.WithError(err).Error("failed to connect to postgres")
		return nil, err
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresStorage{pool: pool, logger: log}, nil
}

func (p *PostgresStorage) Load(ctx context.Context, playerID string) (*models.PlayerState, error) {
	st := &models.PlayerState{PlayerID: playerID}
	pr := &st.Progress
	var note string

	row := p.pool.QueryRow(ctx, `
		SELECT bots_minted, proposals_analyzed, personas_created, mining_level, unseen, notification, updated_at
		FROM player_progress WHERE player_id = $1`, playerID)
	err := row.Scan(&pr.BotsMinted, &pr.ProposalsAnalyzed, &pr.PersonasCreated, &pr.MiningLevel, &st.Unseen, &note, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		p.logger.WithError(err).Error("failed to query player progress")
		return nil, err
	}
	if st.Notification, err = decodeNotification(note); err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT achievement_id, unlocked_at FROM player_achievements
		WHERE player_id = $1 ORDER BY position`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	for rows.Next() {
		var a models.UnlockedAchievement
		if err := rows.Scan(&a.AchievementID, &a.UnlockedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		st.Achievements = append(st.Achievements, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = p.pool.Query(ctx, `
		SELECT id, type, message, timestamp, status, chain_tag FROM timeline_events
		WHERE player_id = $1 ORDER BY seq`, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ev models.TimelineEvent
		var kind, status string
		if err := rows.Scan(&ev.ID, &kind, &ev.Message, &ev.Timestamp, &status, &ev.ChainTag); err != nil {
			return nil, fmt.Errorf("failed to scan timeline event: %w", err)
		}
		ev.Type = models.EventType(kind)
		ev.Status = models.EventStatus(status)
		st.Timeline = append(st.Timeline, ev)
	}
	return st, rows.Err()
}

func (p *PostgresStorage) Save(ctx context.Context, state models.PlayerState) error {
	note, err := encodeNotification(state.Notification)
	if err != nil {
		return err
	}

	pr := state.Progress
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO player_progress (player_id, bots_minted, proposals_analyzed, personas_created, mining_level, unseen, notification, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (player_id) DO UPDATE SET
			bots_minted = EXCLUDED.bots_minted,
			proposals_analyzed = EXCLUDED.proposals_analyzed,
			personas_created = EXCLUDED.personas_created,
			mining_level = EXCLUDED.mining_level,
			unseen = EXCLUDED.unseen,
			notification = EXCLUDED.notification,
			updated_at = EXCLUDED.updated_at`,
		state.PlayerID, pr.BotsMinted, pr.ProposalsAnalyzed, pr.PersonasCreated, pr.MiningLevel, nonNil(state.Unseen), note, state.UpdatedAt)

	for i, a := range state.Achievements {
		batch.Queue(`
			INSERT INTO player_achievements (player_id, achievement_id, position, unlocked_at)
			VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
			state.PlayerID, a.AchievementID, i, a.UnlockedAt)
	}
	for i, ev := range state.Timeline {
		batch.Queue(`
			INSERT INTO timeline_events (id, player_id, seq, type, message, timestamp, status, chain_tag)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status`,
			ev.ID, state.PlayerID, i, string(ev.Type), ev.Message, ev.Timestamp, string(ev.Status), ev.ChainTag)
	}

	err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		p.logger.WithError(err).Error("failed to save player state")
		return err
	}
	return nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

var _ Repository = (*PostgresStorage)(nil)
