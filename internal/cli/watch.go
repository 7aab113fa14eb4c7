package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"importdesk/internal/amqp"
	"importdesk/internal/core"
)

var ErrEventsDisabled = errors.New("import events are disabled: set AMQP_URL")

func newWatchCommand(newApp AppFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print import-confirmed events as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if app.Events == nil {
				return ErrEventsDisabled
			}

			out := cmd.OutOrStdout()
			err = app.Events.ConsumeImportConfirmed(commandContext(cmd), func(msg *amqp.ImportConfirmedMessage) error {
				printEvent(out, msg)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func printEvent(w io.Writer, msg *amqp.ImportConfirmedMessage) {
	summary := core.ConfirmResult{
		Message: msg.Message,
		Count:   msg.Count,
		Total:   core.NewAmount(msg.Total),
	}.Summary()
	fmt.Fprintf(w, "%s  %s\n", faintStyle.Render(msg.Timestamp.Local().Format("2006-01-02 15:04:05")), summary)
}
