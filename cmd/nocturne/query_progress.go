package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func queryProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress <user-id>",
		Short: "Show a user's progression state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return runQueryProgress(userID)
		},
	}
	return cmd
}

func runQueryProgress(userID int64) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	state, err := db.LoadUserState(ctx, userID)
	if err != nil {
		return err
	}
	if state == nil {
		fmt.Fprintf(os.Stdout, "No state found for user %d.\n", userID)
		return nil
	}

	fmt.Fprintf(os.Stdout, "User %d\n", state.UserID)
	fmt.Fprintf(os.Stdout, "  Level: %d  Tier: %s  Points: %d\n", state.Level, state.VIPTier, state.PointsTotal)
	fmt.Fprintf(os.Stdout, "  Visited: %d  Completed: %d\n", len(state.VisitedFragments), len(state.CompletedFragments))
	if state.CurrentFragmentID != "" {
		fmt.Fprintf(os.Stdout, "  Current fragment: %s\n", state.CurrentFragmentID)
	}
	if len(state.UnlockedClues) > 0 {
		fmt.Fprintf(os.Stdout, "  Clues: %s\n", strings.Join(state.UnlockedClues, ", "))
	}

	multiplier, found, err := db.GetArchetypeMultiplier(ctx, userID)
	if err != nil {
		return err
	}
	if found {
		fmt.Fprintf(os.Stdout, "  Reward multiplier: %.2f\n", multiplier)
	}
	return nil
}
