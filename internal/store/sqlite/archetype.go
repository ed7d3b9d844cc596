package sqlite

import (
	"context"
	"fmt"
)

func (c *Client) GetArchetypeMultiplier(ctx context.Context, userID int64) (float64, bool, error) {
	var multiplier float64
	err := c.db.QueryRowContext(ctx,
		"SELECT multiplier FROM archetype_signals WHERE user_id = ?", userID,
	).Scan(&multiplier)
	if isNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("getting archetype multiplier: %w", err)
	}
	return multiplier, true, nil
}

func (c *Client) SetArchetypeMultiplier(ctx context.Context, userID int64, multiplier float64) error {
	query := `
	INSERT INTO archetype_signals (user_id, multiplier, updated_at)
	VALUES (?, ?, datetime('now'))
	ON CONFLICT (user_id) DO UPDATE SET
		multiplier = excluded.multiplier,
		updated_at = datetime('now')
	`
	if _, err := c.db.ExecContext(ctx, query, userID, multiplier); err != nil {
		return fmt.Errorf("setting archetype multiplier: %w", err)
	}
	return nil
}
