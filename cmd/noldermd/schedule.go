package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"noldermd/internal/tasks"
)

var timeNow = time.Now

var scheduleCmd = &cobra.Command{
	Use:   "schedule [YYYY-MM-DD]",
	Short: "Show the tasks time-blocked in a daily note",
	Long: `Show the tasks referenced from the time-block section of a daily
note, earliest first. The date defaults to today.

Examples:
  noldermd schedule
  noldermd schedule 2025-03-01
  noldermd schedule --done "Projects/launch.md-4"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := context.Background()
		date := timeNow().Format(tasks.DateLayout)
		if len(args) == 1 {
			date = args[0]
		}

		done, _ := cmd.Flags().GetStringSlice("done")
		undo, _ := cmd.Flags().GetStringSlice("undo")
		for _, id := range done {
			if err := app.Engine.SetDone(ctx, date, id, true); err != nil {
				return err
			}
		}
		for _, id := range undo {
			if err := app.Engine.SetDone(ctx, date, id, false); err != nil {
				return err
			}
		}

		instances, err := app.Engine.Schedule(ctx, date)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(instances) == 0 {
			fmt.Fprintf(out, "nothing scheduled for %s\n", date)
			return nil
		}
		for _, inst := range instances {
			slots := make([]string, len(inst.Slots))
			for i, slot := range inst.Slots {
				slots[i] = slot.Start + "-" + slot.End
			}
			mark := " "
			if inst.DoneToday {
				mark = "✓"
			}
			fmt.Fprintf(out, "%s %s  %s\n", mark, strings.Join(slots, ", "), formatTask(inst.Task))
		}
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringSlice("done", nil, "mark task ids done for the day before listing")
	scheduleCmd.Flags().StringSlice("undo", nil, "clear the done-for-the-day mark of task ids")
	rootCmd.AddCommand(scheduleCmd)
}
