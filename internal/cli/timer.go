package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nkondo/timebridge/internal/app"
	"github.com/nkondo/timebridge/internal/domain"
	"github.com/nkondo/timebridge/internal/tui"
)

// newTimerCommand creates the timer command group.
func newTimerCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "timer",
		Short:   "Track work time",
		GroupID: groupTimer,
	}
	cmd.AddCommand(
		newTimerStartCommand(c),
		newTimerStopCommand(c),
		newTimerStatusCommand(c),
		newTimerLogCommand(c),
		newTimerStatsCommand(c),
		newTimerWatchCommand(c),
	)
	return cmd
}

// newTimerStartCommand creates the timer start command.
func newTimerStartCommand(c *app.Container) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "start <remote-task-id>",
		Short: "Start a timer on a task",
		Long: `Start a work timer on a cached task.

The timer starts locally first and is then pushed to the remote system.
If the push fails the timer keeps running; the push is retried by
'timebridge sync' or the background sweeps.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := c.Cache.GetByRemoteID(c.Config.User, args[0])
			if err != nil {
				return err
			}
			if task == nil {
				return fmt.Errorf("task %s: %w (run 'timebridge sync' first?)", args[0], domain.ErrTaskNotFound)
			}

			entry, err := c.Timers.Start(c.Config.User, task.ID, notes)
			if err != nil {
				if errors.Is(err, domain.ErrTimerAlreadyRunning) {
					return fmt.Errorf("%w; stop it with 'timebridge timer stop'", err)
				}
				return err
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "Timer started on #%s %q\n", task.RemoteTaskID, task.Title)

			// Local state is authoritative; a failed push only warns.
			if err := c.Coordinator.PushTimerStart(cmd.Context(), entry); err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: remote push failed (%v); will retry\n", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&notes, "message", "m", "", "Notes for this entry")
	return cmd
}

// newTimerStopCommand creates the timer stop command.
func newTimerStopCommand(c *app.Container) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running timer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entry, err := c.Timers.Running(c.Config.User)
			if err != nil {
				return err
			}
			if entry == nil {
				return domain.ErrTimerNotRunning
			}

			stopped, err := c.Timers.Stop(entry.ID, notes)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "Timer stopped: %s\n", domain.FormatDuration(stopped.DurationMinutes))

			if err := c.Coordinator.PushTimerStop(cmd.Context(), stopped); err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: remote push failed (%v); will retry\n", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&notes, "message", "m", "", "Notes for this entry")
	return cmd
}

// newTimerStatusCommand creates the timer status command.
func newTimerStatusCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running timer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entry, err := c.Timers.Running(c.Config.User)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if entry == nil {
				_, _ = fmt.Fprintln(w, "No timer running")
				return nil
			}

			_, _ = fmt.Fprintf(w, "Running on task %s for %s (started %s)\n",
				entry.RemoteTaskID,
				domain.FormatDuration(c.Timers.CurrentDuration(entry)),
				entry.StartTime.Format("15:04"),
			)
			if entry.SyncError != "" {
				_, _ = fmt.Fprintf(w, "Last sync error: %s\n", entry.SyncError)
			}
			return nil
		},
	}
	return cmd
}

// newTimerLogCommand creates the timer log command.
func newTimerLogCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Task     string
		Unsynced bool
		Limit    int
	}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List recent time entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := domain.EntryFilter{Limit: opts.Limit}
			if opts.Task != "" {
				task, err := c.Cache.GetByRemoteID(c.Config.User, opts.Task)
				if err != nil {
					return err
				}
				if task == nil {
					return domain.ErrTaskNotFound
				}
				filter.TaskID = task.ID
			}
			if opts.Unsynced {
				synced := false
				filter.IsSynced = &synced
			}

			entries, err := c.Timers.List(c.Config.User, filter)
			if err != nil {
				return err
			}

			printEntryList(cmd.OutOrStdout(), entries, c.Clock)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Task, "task", "", "Filter by remote task ID")
	cmd.Flags().BoolVar(&opts.Unsynced, "unsynced", false, "Show only unsynced entries")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum entries")
	return cmd
}

// newTimerStatsCommand creates the timer stats command.
func newTimerStatsCommand(c *app.Container) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize tracked time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := c.Timers.Stats(c.Config.User, nil, nil)
			if err != nil {
				return err
			}
			daily, err := c.Timers.DailyStats(c.Config.User, days)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "Entries: %d (%d synced)\n", stats.TotalEntries, stats.SyncedEntries)
			_, _ = fmt.Fprintf(w, "Total:   %s\n", domain.FormatDuration(stats.TotalMinutes))
			_, _ = fmt.Fprintf(w, "Average: %s\n", domain.FormatDuration(int(stats.AvgMinutes)))

			if len(daily) > 0 {
				_, _ = fmt.Fprintf(w, "\nLast %d days:\n", days)
				tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
				for _, d := range daily {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%d entries\n",
						d.Day, domain.FormatDuration(d.TotalMinutes), d.EntryCount)
				}
				_ = tw.Flush()
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Daily rollup window")
	return cmd
}

// newTimerWatchCommand creates the timer watch command.
func newTimerWatchCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the running timer live",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return tui.RunWatch(c.Timers, c.Cache, c.Config.User)
		},
	}
	return cmd
}

// printEntryList prints entries in TSV format.
func printEntryList(w io.Writer, entries []*domain.TimeEntry, clock domain.Clock) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	defer func() { _ = tw.Flush() }()

	_, _ = fmt.Fprintln(tw, "STARTED\tTASK\tDURATION\tSTATE\tNOTES")

	now := clock.Now()
	for _, e := range entries {
		notes := e.Notes
		if len(notes) > 40 {
			notes = notes[:40] + "..."
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.StartTime.Format("2006-01-02 15:04"),
			e.RemoteTaskID,
			domain.FormatDuration(e.CurrentDuration(now)),
			e.State(),
			notes,
		)
	}
}
