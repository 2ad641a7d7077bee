package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install <package>...",
		Short: "Build and install packages from source",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Install(cmd.Context(), args)
		},
	}
}
