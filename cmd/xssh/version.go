package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zx06/xssh/internal/app"
)

// NewVersionCommand creates the version command
func NewVersionCommand(a app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "xssh %s (commit %s, built %s)\n", a.Version, a.Commit, a.Date)
			return nil
		},
	}
}
