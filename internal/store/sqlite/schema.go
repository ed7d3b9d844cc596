package sqlite

import (
	"context"
	"fmt"
	"strings"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS fragments (
		id                  TEXT PRIMARY KEY,
		title               TEXT NOT NULL DEFAULT '',
		content             TEXT NOT NULL,
		fragment_type       TEXT NOT NULL,
		choices             TEXT NOT NULL DEFAULT '[]',
		required_clues      TEXT NOT NULL DEFAULT '[]',
		tier                INTEGER NOT NULL DEFAULT 0,
		min_level           INTEGER NOT NULL DEFAULT 1,
		trigger_base_points INTEGER NOT NULL DEFAULT 0,
		trigger_unlocks     TEXT NOT NULL DEFAULT '[]',
		trigger_flags       TEXT NOT NULL DEFAULT '[]',
		allow_revisit       INTEGER NOT NULL DEFAULT 0,
		active              INTEGER NOT NULL DEFAULT 1,
		source_file         TEXT DEFAULT '',
		source_hash         TEXT DEFAULT '',
		last_ingested       TEXT DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS user_states (
		user_id             INTEGER PRIMARY KEY,
		level               INTEGER NOT NULL DEFAULT 1,
		vip_tier            INTEGER NOT NULL DEFAULT 0,
		points_total        INTEGER NOT NULL DEFAULT 0,
		unlocked_clues      TEXT NOT NULL DEFAULT '[]',
		visited_fragments   TEXT NOT NULL DEFAULT '[]',
		completed_fragments TEXT NOT NULL DEFAULT '[]',
		current_fragment_id TEXT NOT NULL DEFAULT '',
		version             INTEGER NOT NULL DEFAULT 0,
		updated_at          TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS decision_log (
		id              TEXT PRIMARY KEY,
		user_id         INTEGER NOT NULL,
		fragment_id     TEXT NOT NULL,
		choice_id       TEXT NOT NULL,
		points_awarded  INTEGER NOT NULL DEFAULT 0,
		clues_unlocked  TEXT NOT NULL DEFAULT '[]',
		narrative_flags TEXT NOT NULL DEFAULT '[]',
		made_at         TEXT NOT NULL,
		CONSTRAINT uq_decision UNIQUE (user_id, fragment_id)
	);

	CREATE TABLE IF NOT EXISTS archetype_signals (
		user_id    INTEGER PRIMARY KEY,
		multiplier REAL NOT NULL,
		updated_at TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_fragments_type ON fragments (fragment_type);
	CREATE INDEX IF NOT EXISTS idx_fragments_active ON fragments (active);
	CREATE INDEX IF NOT EXISTS idx_fragments_source_file ON fragments (source_file);
	CREATE INDEX IF NOT EXISTS idx_decision_log_user ON decision_log (user_id);
	`

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}

	return nil
}
