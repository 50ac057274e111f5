package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nkondo/timebridge/internal/app"
	"github.com/nkondo/timebridge/internal/domain"
)

// newTasksCommand creates the tasks command group.
func newTasksCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Short:   "Browse the local task mirror",
		GroupID: groupTasks,
	}
	cmd.AddCommand(newTasksListCommand(c), newTasksSearchCommand(c))
	return cmd
}

// newTasksListCommand creates the tasks list command.
func newTasksListCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Status   string
		Priority string
		Project  string
		Page     int
		Size     int
		All      bool
	}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached tasks",
		Long: `Display the cached task mirror. This never contacts the remote system;
run 'timebridge sync' first if the cache looks stale.

By default soft-deleted tasks are hidden; use --all to include them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := domain.TaskFilter{
				ProjectID:       opts.Project,
				IncludeInactive: opts.All,
			}
			if opts.Status != "" {
				status, err := domain.ParseStatus(opts.Status)
				if err != nil {
					return err
				}
				filter.Status = &status
			}
			if opts.Priority != "" {
				priority, err := domain.ParsePriority(opts.Priority)
				if err != nil {
					return err
				}
				filter.Priority = &priority
			}

			tasks, total, err := c.Cache.Find(c.Config.User, filter, domain.Page{
				Number: opts.Page,
				Size:   opts.Size,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			printTaskList(w, tasks, c.Clock)
			_, _ = fmt.Fprintf(w, "\n%d of %d task(s)\n", len(tasks), total)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "Filter by priority")
	cmd.Flags().StringVar(&opts.Project, "project", "", "Filter by project ID")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&opts.Size, "size", 0, "Page size (default from config)")
	cmd.Flags().BoolVarP(&opts.All, "all", "a", false, "Include soft-deleted tasks")

	return cmd
}

// newTasksSearchCommand creates the tasks search command.
func newTasksSearchCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search cached tasks",
		Long:  "Ranked full-text search over titles, descriptions and tags of the cached mirror.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := c.Cache.Search(c.Config.User, strings.Join(args, " "))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(tasks) == 0 {
				_, _ = fmt.Fprintln(w, "No matching tasks")
				return nil
			}
			printTaskList(w, tasks, c.Clock)
			return nil
		},
	}
	return cmd
}

// printTaskList prints tasks in TSV format.
func printTaskList(w io.Writer, tasks []*domain.Task, clock domain.Clock) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	defer func() { _ = tw.Flush() }()

	_, _ = fmt.Fprintln(tw, "ID\tSTATUS\tPRI\tDUE\tPROGRESS\tLOGGED\tTITLE")

	now := clock.Now()
	for _, task := range tasks {
		dueStr := "-"
		if task.DueDate != nil {
			dueStr = task.DueDate.Format("2006-01-02")
			if task.IsOverdue(now) {
				dueStr += " (overdue)"
			} else if days, ok := task.DaysUntilDue(now); ok {
				dueStr += fmt.Sprintf(" (%dd)", days)
			}
		}

		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d%%\t%s\t%s\n",
			task.RemoteTaskID,
			task.Status,
			task.Priority,
			dueStr,
			task.ProgressPercentage(),
			domain.FormatDuration(task.LoggedMinutes),
			task.Title,
		)
	}
}
