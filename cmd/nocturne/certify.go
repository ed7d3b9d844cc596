package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nocturne/internal/validator"
)

func certifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certify",
		Short: "Verify that every fallback and denial template passes validation",
		RunE:  runCertify,
	}
	return cmd
}

func runCertify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	valid, synth, err := buildValidator(cfg)
	if err != nil {
		return err
	}

	if err := validator.Certify(valid, synth); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "All templates certified.")
	return nil
}
