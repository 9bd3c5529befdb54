package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove recorded build info, leaving task outputs in place",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			journal, _ := cmd.Flags().GetBool("journal")
			file, _ := cmd.Flags().GetString("file")

			return c.app.Clean(cmd.Context(), app.CleanOptions{
				ConfigPath: file,
				Journal:    journal,
			})
		},
	}

	cmd.Flags().BoolP("journal", "j", false, "Also remove the session history")

	return cmd
}
