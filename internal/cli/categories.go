package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCategoriesCommand(newApp AppFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the categories rows may be assigned to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			for _, c := range app.Categories.Resolve(commandContext(cmd)) {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}
