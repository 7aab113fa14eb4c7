package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"importdesk/internal/config"
	applog "importdesk/internal/log"
)

// AppFactory builds the App a command runs against.
type AppFactory func() (*App, error)

// NewRootCommand creates the importdesk-cli command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultApp)
}

func newRootCommand(newApp AppFactory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "importdesk-cli",
		Short: "Preview, edit and commit CSV statement imports",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newImportCommand(newApp),
		newCategoriesCommand(newApp),
		newWatchCommand(newApp),
	)
	return rootCmd
}

// defaultApp reads the environment. Logs go to stderr so they never mix
// with command output.
func defaultApp() (*App, error) {
	LoadEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := SetupLogger(cfg, applog.ComponentCLI, os.Stderr)
	return NewApp(cfg, logger)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
