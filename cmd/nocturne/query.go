package main

import "github.com/spf13/cobra"

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Inspect the fragment store from the CLI",
	}
	cmd.AddCommand(queryListCmd())
	cmd.AddCommand(queryFragmentCmd())
	cmd.AddCommand(queryProgressCmd())
	return cmd
}
