package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var projectName string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new nocturne project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(projectName)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	return cmd
}

const starterFragment = `---
id: opening
title: The Opening
type: STORY
tier: FREE
min_level: 1
trigger:
  base_points: 5
---
Something waits behind the first door... and it already knows your name.
Curious how far you are willing to follow?
`

func runInit(projectName string) error {
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists", configFile)
	}

	configContents := fmt.Sprintf(`project: %s
version: 1

database:
  driver: sqlite
  dsn: sqlite://%s.db

content:
  paths:
    - ./content/
  exclude:
    - ./drafts/

persona_file: persona.yaml

progression:
  level_thresholds: [100, 300, 600, 1000]

cache:
  max_entries: 512
  ttl_minutes: 5

log:
  mode: dev
`, projectName, projectName)
	if err := os.WriteFile(configFile, []byte(configContents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configFile, err)
	}

	if err := os.MkdirAll("content", 0o750); err != nil {
		return fmt.Errorf("creating content directory: %w", err)
	}
	fragmentPath := filepath.Join("content", "opening.md")
	if _, err := os.Stat(fragmentPath); os.IsNotExist(err) {
		if err := os.WriteFile(fragmentPath, []byte(starterFragment), 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", fragmentPath, err)
		}
	}

	return nil
}
