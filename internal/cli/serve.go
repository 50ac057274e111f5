package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nkondo/timebridge/internal/app"
)

// newServeCommand creates the serve command.
func newServeCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the background sync sweeps",
		GroupID: groupSync,
		Long: `Run the periodic sweeps in the foreground until interrupted:
stale task refresh, failed sync drain and expired session reaping.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Sweeper running; press Ctrl-C to stop")
			c.NewSweeper().Run(ctx)
			return nil
		},
	}
	return cmd
}
