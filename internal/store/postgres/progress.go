package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"nocturne/internal/progress"
	"nocturne/internal/store"
	"nocturne/internal/story"
)

func (c *Client) LoadUserState(ctx context.Context, userID int64) (*progress.State, error) {
	query := `
SELECT user_id, level, vip_tier, points_total, unlocked_clues, visited_fragments,
    completed_fragments, current_fragment_id, version, updated_at
FROM user_states
WHERE user_id = $1
`

	var state progress.State
	var vipTier int
	var cluesBytes, visitedBytes, completedBytes []byte
	err := c.pool.QueryRow(ctx, query, userID).Scan(
		&state.UserID, &state.Level, &vipTier, &state.PointsTotal,
		&cluesBytes, &visitedBytes, &completedBytes,
		&state.CurrentFragmentID, &state.Version, &state.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading user state: %w", err)
	}

	state.VIPTier = story.Tier(vipTier)
	if state.UnlockedClues, err = store.DecodeStrings(cluesBytes); err != nil {
		return nil, err
	}
	if state.VisitedFragments, err = store.DecodeStrings(visitedBytes); err != nil {
		return nil, err
	}
	if state.CompletedFragments, err = store.DecodeStrings(completedBytes); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) SaveUserState(ctx context.Context, state *progress.State) error {
	return saveUserState(ctx, c.pool, state)
}

func (c *Client) FindDecisionRecord(ctx context.Context, userID int64, fragmentID string) (*progress.DecisionRecord, error) {
	query := `
SELECT id, user_id, fragment_id, choice_id, points_awarded, clues_unlocked, narrative_flags, made_at
FROM decision_log
WHERE user_id = $1 AND fragment_id = $2
`

	var record progress.DecisionRecord
	var cluesBytes, flagsBytes []byte
	err := c.pool.QueryRow(ctx, query, userID, fragmentID).Scan(
		&record.ID, &record.UserID, &record.FragmentID, &record.ChoiceID,
		&record.PointsAwarded, &cluesBytes, &flagsBytes, &record.MadeAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding decision record: %w", err)
	}

	if record.CluesUnlocked, err = store.DecodeStrings(cluesBytes); err != nil {
		return nil, err
	}
	if record.NarrativeFlags, err = store.DecodeStrings(flagsBytes); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) AppendDecisionRecord(ctx context.Context, record *progress.DecisionRecord) error {
	return appendDecisionRecord(ctx, c.pool, record)
}

func (c *Client) CommitDecision(ctx context.Context, state *progress.State, record *progress.DecisionRecord) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := appendDecisionRecord(ctx, tx, record); err != nil {
		return err
	}
	if err := saveUserState(ctx, tx, state); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing decision transaction: %w", err)
	}
	return nil
}

// execer covers *pgxpool.Pool and pgx.Tx for the shared write paths.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func saveUserState(ctx context.Context, db execer, state *progress.State) error {
	cluesJSON, err := store.EncodeStrings(state.UnlockedClues)
	if err != nil {
		return err
	}
	visitedJSON, err := store.EncodeStrings(state.VisitedFragments)
	if err != nil {
		return err
	}
	completedJSON, err := store.EncodeStrings(state.CompletedFragments)
	if err != nil {
		return err
	}

	if state.Version <= 1 {
		query := `
INSERT INTO user_states (user_id, level, vip_tier, points_total, unlocked_clues,
    visited_fragments, completed_fragments, current_fragment_id, version, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (user_id) DO NOTHING
`
		tag, err := db.Exec(ctx, query,
			state.UserID, state.Level, int(state.VIPTier), state.PointsTotal,
			cluesJSON, visitedJSON, completedJSON, state.CurrentFragmentID,
			state.Version, state.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting user state: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return store.ErrVersionConflict
		}
		return nil
	}

	query := `
UPDATE user_states SET
    level = $1, vip_tier = $2, points_total = $3, unlocked_clues = $4,
    visited_fragments = $5, completed_fragments = $6, current_fragment_id = $7,
    version = $8, updated_at = $9
WHERE user_id = $10 AND version = $11
`
	tag, err := db.Exec(ctx, query,
		state.Level, int(state.VIPTier), state.PointsTotal, cluesJSON,
		visitedJSON, completedJSON, state.CurrentFragmentID,
		state.Version, state.UpdatedAt,
		state.UserID, state.Version-1,
	)
	if err != nil {
		return fmt.Errorf("updating user state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrVersionConflict
	}
	return nil
}

func appendDecisionRecord(ctx context.Context, db execer, record *progress.DecisionRecord) error {
	cluesJSON, err := store.EncodeStrings(record.CluesUnlocked)
	if err != nil {
		return err
	}
	flagsJSON, err := store.EncodeStrings(record.NarrativeFlags)
	if err != nil {
		return err
	}

	query := `
INSERT INTO decision_log (id, user_id, fragment_id, choice_id, points_awarded, clues_unlocked, narrative_flags, made_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	_, err = db.Exec(ctx, query,
		record.ID, record.UserID, record.FragmentID, record.ChoiceID,
		record.PointsAwarded, cluesJSON, flagsJSON, record.MadeAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateDecision
		}
		return fmt.Errorf("appending decision record: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
