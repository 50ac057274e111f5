package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nkondo/timebridge/internal/app"
	"github.com/nkondo/timebridge/internal/domain"
)

// newSyncCommand creates the sync command.
func newSyncCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sync",
		Short:   "Refresh the task cache and push pending time entries",
		GroupID: groupSync,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()

			count, err := c.Coordinator.RefreshTasks(cmd.Context(), c.Config.User)
			if err != nil {
				if errors.Is(err, domain.ErrMissingCredentials) {
					return fmt.Errorf("%w: set %s and %s", err, app.EnvEmail, app.EnvPassword)
				}
				return err
			}
			_, _ = fmt.Fprintf(w, "Refreshed %d tasks\n", count)

			pushed, err := c.Coordinator.DrainFailedSyncs(cmd.Context(), 0)
			if pushed > 0 {
				_, _ = fmt.Fprintf(w, "Pushed %d pending time entries\n", pushed)
			}
			if err != nil {
				return fmt.Errorf("drain pending entries: %w", err)
			}
			return nil
		},
	}
	return cmd
}
