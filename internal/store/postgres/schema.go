package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS fragments (
    id                  TEXT PRIMARY KEY,
    title               TEXT NOT NULL DEFAULT '',
    content             TEXT NOT NULL,
    fragment_type       TEXT NOT NULL,
    choices             JSONB NOT NULL DEFAULT '[]',
    required_clues      JSONB NOT NULL DEFAULT '[]',
    tier                INTEGER NOT NULL DEFAULT 0,
    min_level           INTEGER NOT NULL DEFAULT 1,
    trigger_base_points INTEGER NOT NULL DEFAULT 0,
    trigger_unlocks     JSONB NOT NULL DEFAULT '[]',
    trigger_flags       JSONB NOT NULL DEFAULT '[]',
    allow_revisit       BOOLEAN NOT NULL DEFAULT FALSE,
    active              BOOLEAN NOT NULL DEFAULT TRUE,
    source_file         TEXT DEFAULT '',
    source_hash         TEXT DEFAULT '',
    last_ingested       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_states (
    user_id             BIGINT PRIMARY KEY,
    level               INTEGER NOT NULL DEFAULT 1,
    vip_tier            INTEGER NOT NULL DEFAULT 0,
    points_total        INTEGER NOT NULL DEFAULT 0,
    unlocked_clues      JSONB NOT NULL DEFAULT '[]',
    visited_fragments   JSONB NOT NULL DEFAULT '[]',
    completed_fragments JSONB NOT NULL DEFAULT '[]',
    current_fragment_id TEXT NOT NULL DEFAULT '',
    version             BIGINT NOT NULL DEFAULT 0,
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decision_log (
    id              TEXT PRIMARY KEY,
    user_id         BIGINT NOT NULL,
    fragment_id     TEXT NOT NULL,
    choice_id       TEXT NOT NULL,
    points_awarded  INTEGER NOT NULL DEFAULT 0,
    clues_unlocked  JSONB NOT NULL DEFAULT '[]',
    narrative_flags JSONB NOT NULL DEFAULT '[]',
    made_at         TIMESTAMPTZ NOT NULL,
    CONSTRAINT uq_decision UNIQUE (user_id, fragment_id)
);

CREATE TABLE IF NOT EXISTS archetype_signals (
    user_id    BIGINT PRIMARY KEY,
    multiplier DOUBLE PRECISION NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_fragments_type ON fragments (fragment_type);
CREATE INDEX IF NOT EXISTS idx_fragments_active ON fragments (active);
CREATE INDEX IF NOT EXISTS idx_fragments_source_file ON fragments (source_file);
CREATE INDEX IF NOT EXISTS idx_decision_log_user ON decision_log (user_id);
`

	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("executing DDL: %w", err)
	}
	return nil
}
