package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newImportCommand(newApp AppFactory) *cobra.Command {
	var (
		sets []string
		yes  bool
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Upload a CSV statement, apply edits and optionally commit it",
		Long: `Uploads the file to the expense tracker for parsing and prints the preview.

Rows are numbered as in the preview table. Each --set changes one field of one
row; fields are date (DD/MM/YYYY), vendor, description, category and
payment_method. Nothing is saved unless --yes is given.`,
		Example: `  importdesk-cli import march.csv
  importdesk-cli import march.csv --set 2:category=Groceries --set 2:vendor="Corner Shop" --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edits, err := parseEdits(sets)
			if err != nil {
				return err
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			sess := app.NewSession("cli")
			res, err := sess.Upload(ctx, filepath.Base(args[0]), f)
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			if res.Message != "" {
				fmt.Fprintln(out, successStyle.Render(res.Message))
			}

			if err := applyEdits(ctx, sess, edits); err != nil {
				renderPreview(out, sess.View())
				return err
			}
			renderPreview(out, sess.View())

			if !yes {
				fmt.Fprintln(out, faintStyle.Render("Not saved. Run again with --yes to commit."))
				return nil
			}

			outcome, err := sess.Confirm(ctx)
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render("Error saving transactions: "+err.Error()))
				return err
			}
			fmt.Fprintln(out, successStyle.Render(outcome.Result.Summary()))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "row edit as <row>:<field>=<value> (repeatable)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "commit the import after previewing")
	return cmd
}
