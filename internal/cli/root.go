// Package cli provides the command-line interface for timebridge.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/nkondo/timebridge/internal/app"
)

// Command group IDs.
const (
	groupTasks = "tasks"
	groupTimer = "timer"
	groupSync  = "sync"
)

// NewRootCommand creates the root command for timebridge.
// It receives the container for dependency injection and version for display.
func NewRootCommand(c *app.Container, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "timebridge",
		Short: "Local mirror and timer sync for a remote CRM",
		Long: `timebridge keeps a local, queryable mirror of the tasks that live in a
remote session-authenticated CRM, tracks work timers locally, and pushes
timer events back to the remote system with retry when it is unreachable.

Local reads (task list, search, current timer) never hit the network;
'sync' and the background sweeps in 'serve' do.`,
		Version: version,
		// SilenceUsage prevents usage from being printed on errors
		SilenceUsage: true,
		// SilenceErrors prevents Cobra from printing errors (handled in main)
		SilenceErrors: true,
	}

	root.AddGroup(
		&cobra.Group{ID: groupTasks, Title: "Task Commands:"},
		&cobra.Group{ID: groupTimer, Title: "Timer Commands:"},
		&cobra.Group{ID: groupSync, Title: "Sync Commands:"},
	)

	root.AddCommand(
		newTasksCommand(c),
		newTimerCommand(c),
		newSyncCommand(c),
		newServeCommand(c),
		newLogoutCommand(c),
		newConfigCommand(c),
	)

	return root
}
