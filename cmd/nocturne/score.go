package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"nocturne/internal/persona"
	"nocturne/internal/validator"
)

func scoreCmd() *cobra.Command {
	var contextName string
	cmd := &cobra.Command{
		Use:   "score <text>",
		Short: "Score text against the persona profile",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(strings.Join(args, " "), contextName)
		},
	}
	cmd.Flags().StringVar(&contextName, "context", "fragment", "Validation context (fragment, menu, denial, error)")
	return cmd
}

func runScore(text, contextName string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	valid, _, err := buildValidator(cfg)
	if err != nil {
		return err
	}

	validationContext := validator.Context(contextName)
	switch validationContext {
	case validator.ContextFragment, validator.ContextMenu, validator.ContextDenial, validator.ContextError:
	default:
		return fmt.Errorf("unknown validation context: %q", contextName)
	}

	result := valid.Validate(text, validationContext)

	fmt.Fprintf(os.Stdout, "Overall: %.1f (threshold %.1f)\n", result.OverallScore, valid.Threshold(validationContext))
	for _, trait := range persona.Traits {
		fmt.Fprintf(os.Stdout, "  %-24s %.1f\n", trait, result.TraitScores[trait])
	}
	if len(result.ViolatedRules) > 0 {
		fmt.Fprintf(os.Stdout, "Violations: %s\n", strings.Join(result.ViolatedRules, ", "))
	}
	if result.Disqualified {
		fmt.Fprintln(os.Stdout, "Disqualified.")
	}
	if result.Pass {
		fmt.Fprintln(os.Stdout, "PASS")
		return nil
	}
	fmt.Fprintln(os.Stdout, "FAIL")
	return fmt.Errorf("text failed validation")
}
