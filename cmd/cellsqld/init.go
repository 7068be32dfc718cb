package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docxology/cellsql/pkg/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively write a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.RunInitWizard(cmd.InOrStdin(), cmd.OutOrStdout(), configFile); err != nil {
				return fmt.Errorf("init failed: %w", err)
			}
			path := configFile
			if path == "" {
				path = config.ConfigPath()
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config written to", path)
			return nil
		},
	}
}
