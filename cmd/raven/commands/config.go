package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newConfigCmd() *cobra.Command {
	var (
		setRepo string
		show    bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case setRepo != "":
				return c.app.SetRepoURL(setRepo)
			case show:
				cfg, err := c.app.ShowConfig()
				if err != nil {
					return err
				}
				cmd.Println("Current Configuration:")
				cmd.Println("   Repo URL: " + cfg.RepoURL)
				return nil
			default:
				cmd.Println("Use --show or --set-repo <URL>")
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&setRepo, "set-repo", "", "Set the recipe repository URL")
	cmd.Flags().BoolVar(&show, "show", false, "Print the current configuration")

	return cmd
}
