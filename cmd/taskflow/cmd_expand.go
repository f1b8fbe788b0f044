package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskflow/internal/model"
	"taskflow/internal/recurrence"
)

var whenLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

// parseWhen reads a date with an optional time of day in loc.
func parseWhen(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD or \"YYYY-MM-DD HH:MM\"", raw)
}

func newExpandCmd(c *cli) *cobra.Command {
	var (
		due      string
		pattern  string
		interval int
		end      string
		maxCount int
	)

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Preview the occurrences a recurrence rule generates",
		Long: `Prints the instances that would be created for a recurring task
without storing anything. The anchor occurrence itself is not listed.

Example:
  taskflow expand --due 2024-06-15 --pattern weekly --interval 2 --end 2024-10-19`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := c.cfg.Location
			dueAt, err := parseWhen(due, loc)
			if err != nil {
				return err
			}
			p := model.Pattern(strings.ToLower(pattern))
			if !p.Valid() {
				return fmt.Errorf("unknown pattern %q, expected daily, weekly or monthly", pattern)
			}
			rule := &model.RecurrenceRule{Pattern: p, Interval: interval}
			if end != "" {
				endAt, err := parseWhen(end, loc)
				if err != nil {
					return err
				}
				rule.EndDate = &endAt
			}
			if !cmd.Flags().Changed("max") {
				maxCount = c.cfg.MaxInstances
			}

			anchor := model.Task{ID: "preview", Title: "preview", DueDate: &dueAt, Recurrence: rule}
			instances := recurrence.NewExpander().Expand(anchor, maxCount)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bound %s\n", recurrence.Bound(dueAt, *rule).In(loc).Format("2006-01-02 15:04"))
			for i, inst := range instances {
				fmt.Fprintf(out, "%3d  %s  %s\n", i+1, inst.DueDate.In(loc).Format("2006-01-02 15:04 Mon"), inst.ID)
			}
			fmt.Fprintf(out, "%d occurrence(s)\n", len(instances))
			return nil
		},
	}

	cmd.Flags().StringVar(&due, "due", "", "anchor due date (required)")
	cmd.Flags().StringVar(&pattern, "pattern", "weekly", "daily, weekly or monthly")
	cmd.Flags().IntVar(&interval, "interval", 1, "periods between occurrences")
	cmd.Flags().StringVar(&end, "end", "", "last day occurrences may fall on")
	cmd.Flags().IntVar(&maxCount, "max", recurrence.DefaultMaxInstances, "maximum number of occurrences")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}
