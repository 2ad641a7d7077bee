package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade all installed packages with newer recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Upgrade(cmd.Context())
		},
	}
}
