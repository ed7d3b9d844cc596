package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func queryFragmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fragment <id>",
		Short: "Show a fragment and its choices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryFragment(args[0])
		},
	}
	return cmd
}

func runQueryFragment(id string) error {
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

	fragment, err := db.GetFragment(ctx, id)
	if err != nil {
		return err
	}
	if fragment == nil {
		fmt.Fprintf(os.Stdout, "No fragment found with id %q.\n", id)
		return nil
	}

	fmt.Fprintf(os.Stdout, "%s: %s\n", fragment.ID, fragment.Title)
	fmt.Fprintf(os.Stdout, "  Type: %s  Tier: %s  MinLevel: %d  Active: %t\n", fragment.Type, fragment.Tier, fragment.MinLevel, fragment.Active)
	if len(fragment.RequiredClues) > 0 {
		fmt.Fprintf(os.Stdout, "  Requires: %s\n", strings.Join(fragment.RequiredClues, ", "))
	}
	if fragment.Trigger.BasePoints > 0 || len(fragment.Trigger.Unlocks) > 0 {
		fmt.Fprintf(os.Stdout, "  Trigger: %d points", fragment.Trigger.BasePoints)
		if len(fragment.Trigger.Unlocks) > 0 {
			fmt.Fprintf(os.Stdout, ", unlocks %s", strings.Join(fragment.Trigger.Unlocks, ", "))
		}
		fmt.Fprintln(os.Stdout, "")
	}
	if fragment.SourceFile != "" {
		fmt.Fprintf(os.Stdout, "  Source: %s\n", fragment.SourceFile)
	}
	if len(fragment.Choices) > 0 {
		fmt.Fprintln(os.Stdout, "  Choices:")
		for _, choice := range fragment.Choices {
			fmt.Fprintf(os.Stdout, "    %s: %s (+%d)", choice.ID, choice.Label, choice.PointsReward)
			if choice.DestinationID != "" {
				fmt.Fprintf(os.Stdout, " -> %s", choice.DestinationID)
			}
			fmt.Fprintln(os.Stdout, "")
		}
	}
	fmt.Fprintln(os.Stdout, "")
	fmt.Fprintln(os.Stdout, fragment.Content)
	return nil
}
