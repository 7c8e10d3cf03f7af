package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tahcohcat/meechain/internal/logger"
)

type DB struct {
	*sqlx.DB
}

// NewDB opens the sqlite database at path and makes sure the schema exists.
func NewDB(path string) (*DB, error) {
	if path == "" {
		path = "meechain.db"
	}

	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// sqlite allows a single writer; keep one connection so in-memory
	// databases are shared and writers never contend.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dbWrapper := &DB{DB: db}

	if err := dbWrapper.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.New().With("path", path).Info("database connection established and tables initialized")
	return dbWrapper, nil
}

func (db *DB) createTables() error {
	progressTable := `
	CREATE TABLE IF NOT EXISTS player_progress (
		player_id TEXT PRIMARY KEY,
		bots_minted INTEGER NOT NULL DEFAULT 0,
		proposals_analyzed INTEGER NOT NULL DEFAULT 0,
		personas_created INTEGER NOT NULL DEFAULT 0,
		mining_level INTEGER NOT NULL DEFAULT 0,
		unseen TEXT NOT NULL DEFAULT '[]',
		notification TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	achievementsTable := `
	CREATE TABLE IF NOT EXISTS player_achievements (
		player_id TEXT NOT NULL,
		achievement_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		unlocked_at DATETIME NOT NULL,
		PRIMARY KEY (player_id, achievement_id),
		FOREIGN KEY (player_id) REFERENCES player_progress(player_id) ON DELETE CASCADE
	);`

	timelineTable := `
	CREATE TABLE IF NOT EXISTS timeline_events (
		id TEXT PRIMARY KEY,
		player_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		status TEXT NOT NULL,
		chain_tag TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (player_id) REFERENCES player_progress(player_id) ON DELETE CASCADE
	);`

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_achievements_player ON player_achievements(player_id);`,
		`CREATE INDEX IF NOT EXISTS idx_timeline_player_seq ON timeline_events(player_id, seq);`,
	}

	for _, query := range []string{progressTable, achievementsTable, timelineTable} {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Databases created before notifications were persisted.
	if err := db.addColumnIfMissing("player_progress", "notification", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return err
	}

	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func (db *DB) addColumnIfMissing(table, column, decl string) error {
	var n int
	err := db.Get(&n, `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)); err != nil {
		return fmt.Errorf("failed to add %s.%s: %w", table, column, err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
