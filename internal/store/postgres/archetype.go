package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func (c *Client) GetArchetypeMultiplier(ctx context.Context, userID int64) (float64, bool, error) {
	var multiplier float64
	err := c.pool.QueryRow(ctx,
		"SELECT multiplier FROM archetype_signals WHERE user_id = $1", userID,
	).Scan(&multiplier)
	if errors.Is(err, pgx.ErrNoRows) {
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
VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE SET
    multiplier = EXCLUDED.multiplier,
    updated_at = now()
`
	if _, err := c.pool.Exec(ctx, query, userID, multiplier); err != nil {
		return fmt.Errorf("setting archetype multiplier: %w", err)
	}
	return nil
}
