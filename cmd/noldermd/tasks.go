package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"noldermd/internal/notes"
	"noldermd/internal/tasks"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index every note and report tasks per file",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		out := cmd.OutOrStdout()
		total := 0
		for _, path := range app.Engine.Index().Files() {
			roots, _ := app.Engine.Index().File(path)
			n := len(tasks.Flatten(roots))
			total += n
			fmt.Fprintf(out, "%6d  %s\n", n, path)
		}
		fmt.Fprintf(out, "%6d  total\n", total)
		return nil
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks",
	Long: `List the tasks of every note, or of one note in display order.

Examples:
  noldermd tasks
  noldermd tasks --file Projects/launch.md
  noldermd tasks --status open`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		file, _ := cmd.Flags().GetString("file")
		status, _ := cmd.Flags().GetString("status")

		var roots []*tasks.Task
		if file != "" {
			if roots, err = app.Engine.OrderedRoots(context.Background(), notes.CleanPath(file)); err != nil {
				return err
			}
		} else {
			roots = app.Engine.Index().Roots()
		}
		printTasks(cmd.OutOrStdout(), roots, tasks.Status(status))
		return nil
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <task-id>...",
	Short: "Toggle tasks between open and completed in their notes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Engine.ToggleMany(context.Background(), args); err != nil {
			return err
		}
		for _, id := range args {
			task, err := app.Engine.Lookup(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", task.ID, task.Status)
		}
		return nil
	},
}

var rescheduleCmd = &cobra.Command{
	Use:   "reschedule <task-id> [YYYY-MM-DD]",
	Short: "Set or clear the date of a task",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		date := ""
		if len(args) == 2 {
			date = args[1]
		}
		task, err := app.Engine.Reschedule(context.Background(), args[0], date)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatTask(task))
		return nil
	},
}

func init() {
	tasksCmd.Flags().String("file", "", "only list the tasks of this note, in display order")
	tasksCmd.Flags().String("status", "", "only list tasks with this status")
	rootCmd.AddCommand(indexCmd, tasksCmd, toggleCmd, rescheduleCmd)
}

// printTasks writes one line per task, indented by depth. With a status
// filter the output is flat.
func printTasks(out io.Writer, roots []*tasks.Task, status tasks.Status) {
	tasks.Walk(roots, func(task *tasks.Task) bool {
		if status == "" {
			fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", task.Depth), formatTask(task))
			return true
		}
		if task.Status == status {
			fmt.Fprintln(out, formatTask(task))
		}
		return true
	})
}

func formatTask(task *tasks.Task) string {
	var b strings.Builder
	b.WriteString(checkbox(task.Status))
	b.WriteString(" ")
	b.WriteString(task.Text)
	if task.Date != "" {
		b.WriteString(" >" + task.Date)
	}
	tags := append([]string(nil), task.Tags...)
	sort.Strings(tags)
	for _, tag := range tags {
		b.WriteString(" #" + tag)
	}
	b.WriteString("  (" + task.ID + ")")
	return b.String()
}

func checkbox(status tasks.Status) string {
	switch status {
	case tasks.StatusCompleted:
		return "[x]"
	case tasks.StatusCancelled:
		return "[-]"
	case tasks.StatusScheduled:
		return "[>]"
	case tasks.StatusImportant:
		return "[!]"
	}
	return "[ ]"
}
