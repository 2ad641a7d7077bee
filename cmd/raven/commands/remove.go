package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <package>...",
		Short: "Remove installed packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Remove(cmd.Context(), args)
		},
	}
}
