package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"nocturne/internal/progress"
	"nocturne/internal/store"
	"nocturne/internal/story"
)

func (c *Client) LoadUserState(ctx context.Context, userID int64) (*progress.State, error) {
	query := `
	SELECT user_id, level, vip_tier, points_total, unlocked_clues, visited_fragments,
		completed_fragments, current_fragment_id, version, updated_at
	FROM user_states
	WHERE user_id = ?
	`
	return scanUserState(c.db.QueryRowContext(ctx, query, userID))
}

// SaveUserState enforces copy-on-write versioning: version 1 inserts a new
// row, later versions update only when the stored version is exactly one
// behind. Anything else is a lost race.
func (c *Client) SaveUserState(ctx context.Context, state *progress.State) error {
	return saveUserState(ctx, c.db, state)
}

func (c *Client) FindDecisionRecord(ctx context.Context, userID int64, fragmentID string) (*progress.DecisionRecord, error) {
	query := `
	SELECT id, user_id, fragment_id, choice_id, points_awarded, clues_unlocked, narrative_flags, made_at
	FROM decision_log
	WHERE user_id = ? AND fragment_id = ?
	`
	return scanDecisionRecord(c.db.QueryRowContext(ctx, query, userID, fragmentID))
}

func (c *Client) AppendDecisionRecord(ctx context.Context, record *progress.DecisionRecord) error {
	return appendDecisionRecord(ctx, c.db, record)
}

func (c *Client) CommitDecision(ctx context.Context, state *progress.State, record *progress.DecisionRecord) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := appendDecisionRecord(ctx, tx, record); err != nil {
		return err
	}
	if err := saveUserState(ctx, tx, state); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing decision transaction: %w", err)
	}
	return nil
}

// execer covers *sql.DB and *sql.Tx for the shared write paths.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
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
	updatedAt := state.UpdatedAt.UTC().Format(time.RFC3339Nano)

	if state.Version <= 1 {
		query := `
		INSERT INTO user_states (user_id, level, vip_tier, points_total, unlocked_clues,
			visited_fragments, completed_fragments, current_fragment_id, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
		`
		result, err := db.ExecContext(ctx, query,
			state.UserID, state.Level, int(state.VIPTier), state.PointsTotal,
			cluesJSON, visitedJSON, completedJSON, state.CurrentFragmentID,
			state.Version, updatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting user state: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("getting rows affected: %w", err)
		}
		if affected == 0 {
			return store.ErrVersionConflict
		}
		return nil
	}

	query := `
	UPDATE user_states SET
		level = ?, vip_tier = ?, points_total = ?, unlocked_clues = ?,
		visited_fragments = ?, completed_fragments = ?, current_fragment_id = ?,
		version = ?, updated_at = ?
	WHERE user_id = ? AND version = ?
	`
	result, err := db.ExecContext(ctx, query,
		state.Level, int(state.VIPTier), state.PointsTotal, cluesJSON,
		visitedJSON, completedJSON, state.CurrentFragmentID,
		state.Version, updatedAt,
		state.UserID, state.Version-1,
	)
	if err != nil {
		return fmt.Errorf("updating user state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
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
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.ExecContext(ctx, query,
		record.ID, record.UserID, record.FragmentID, record.ChoiceID,
		record.PointsAwarded, cluesJSON, flagsJSON,
		record.MadeAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateDecision
		}
		return fmt.Errorf("appending decision record: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserState(row rowScanner) (*progress.State, error) {
	var state progress.State
	var vipTier int
	var cluesBytes, visitedBytes, completedBytes []byte
	var updatedAt string
	err := row.Scan(
		&state.UserID, &state.Level, &vipTier, &state.PointsTotal,
		&cluesBytes, &visitedBytes, &completedBytes,
		&state.CurrentFragmentID, &state.Version, &updatedAt,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user state: %w", err)
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
	if updatedAt != "" {
		if state.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
	}
	return &state, nil
}

func scanDecisionRecord(row rowScanner) (*progress.DecisionRecord, error) {
	var record progress.DecisionRecord
	var cluesBytes, flagsBytes []byte
	var madeAt string
	err := row.Scan(
		&record.ID, &record.UserID, &record.FragmentID, &record.ChoiceID,
		&record.PointsAwarded, &cluesBytes, &flagsBytes, &madeAt,
	)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning decision record: %w", err)
	}

	if record.CluesUnlocked, err = store.DecodeStrings(cluesBytes); err != nil {
		return nil, err
	}
	if record.NarrativeFlags, err = store.DecodeStrings(flagsBytes); err != nil {
		return nil, err
	}
	if record.MadeAt, err = time.Parse(time.RFC3339Nano, madeAt); err != nil {
		return nil, fmt.Errorf("parsing made_at: %w", err)
	}
	return &record, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
