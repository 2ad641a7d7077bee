package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search available recipes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matches, err := c.app.Search(args[0])
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				cmd.Printf("No packages found matching %q\n", args[0])
				return nil
			}
			for _, recipe := range matches {
				cmd.Println(fmt.Sprintf("%s %s - %s", recipe.Name, recipe.Version, recipe.Description))
			}
			return nil
		},
	}
}
