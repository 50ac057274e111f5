package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nkondo/timebridge/internal/app"
)

// newLogoutCommand creates the logout command.
func newLogoutCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "logout",
		Short:   "Invalidate the stored remote session",
		GroupID: groupSync,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.Sessions.Invalidate(c.Config.User); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out; the next sync will log in again")
			return nil
		},
	}
	return cmd
}
