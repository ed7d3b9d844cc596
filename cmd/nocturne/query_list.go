package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nocturne/internal/store"
	"nocturne/internal/story"
)

func queryListCmd() *cobra.Command {
	var fragmentType string
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List fragments in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryList(fragmentType, activeOnly)
		},
	}
	cmd.Flags().StringVar(&fragmentType, "type", "", "Fragment type to filter (STORY, DECISION, INFO)")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active fragments")
	return cmd
}

func runQueryList(fragmentType string, activeOnly bool) error {
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

	filter := store.FragmentFilter{ActiveOnly: activeOnly}
	if fragmentType != "" {
		parsed, err := story.ParseFragmentType(fragmentType)
		if err != nil {
			return err
		}
		filter.Type = parsed
	}

	fragments, err := db.ListFragments(ctx, filter)
	if err != nil {
		return err
	}
	if len(fragments) == 0 {
		fmt.Fprintln(os.Stdout, "No fragments found.")
		return nil
	}

	for _, fragment := range fragments {
		status := ""
		if !fragment.Active {
			status = " (inactive)"
		}
		fmt.Fprintf(os.Stdout, "%s  %s [%s %s L%d]%s\n", fragment.ID, fragment.Title, fragment.Type, fragment.Tier, fragment.MinLevel, status)
	}
	return nil
}
