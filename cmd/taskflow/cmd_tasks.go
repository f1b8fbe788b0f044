package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"taskflow/internal/model"
	"taskflow/internal/service"
)

func newTasksCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List, inspect and edit tasks",
	}
	cmd.AddCommand(
		newTasksListCmd(c),
		newTasksShowCmd(c),
		newTasksAddCmd(c),
		newTasksEditCmd(c),
		newTasksDoneCmd(c),
		newTasksRmCmd(c),
	)
	return cmd
}

func newTasksListCmd(c *cli) *cobra.Command {
	var category, query, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.open(cmd)
			if err != nil {
				return err
			}
			filter := service.Filter{Query: query}
			switch strings.ToLower(status) {
			case "", "all":
				filter.Status = service.StatusAll
			case "pending", "open":
				filter.Status = service.StatusPending
			case "completed", "done":
				filter.Status = service.StatusCompleted
			default:
				return fmt.Errorf("unknown status %q", status)
			}
			if category != "" && category != service.CategoryAll {
				cat, err := app.categorySvc.Resolve(cmd.Context(), category)
				if err != nil {
					return err
				}
				filter.CategoryID = cat.ID
			}

			tasks, err := app.taskSvc.ListTasks(cmd.Context(), filter)
			if err != nil {
				return err
			}
			names, err := categoryNames(cmd, app)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, task := range tasks {
				writeTaskLine(out, task, names, c)
			}
			fmt.Fprintf(out, "%d task(s)\n", len(tasks))
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "category id or name")
	cmd.Flags().StringVarP(&query, "query", "q", "", "search title and description")
	cmd.Flags().StringVar(&status, "status", "all", "all, pending or completed")
	return cmd
}

func newTasksShowCmd(c *cli) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task with its notes rendered as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.open(cmd)
			if err != nil {
				return err
			}
			task, err := app.taskSvc.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			names, err := categoryNames(cmd, app)
			if err != nil {
				return err
			}
			var instances []model.Task
			if task.IsRecurring() {
				if instances, err = app.taskSvc.ListInstances(cmd.Context(), task.ID); err != nil {
					return err
				}
			}

			md := taskMarkdown(*task, names[task.CategoryID], instances, c)
			if raw {
				_, err = io.WriteString(cmd.OutOrStdout(), md)
				return err
			}
			renderer, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(80),
			)
			if err != nil {
				return fmt.Errorf("markdown renderer: %w", err)
			}
			rendered, err := renderer.Render(md)
			if err != nil {
				return fmt.Errorf("render task: %w", err)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), rendered)
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without rendering")
	return cmd
}

func newTasksAddCmd(c *cli) *cobra.Command {
	var (
		in       service.TaskInput
		category string
		priority string
		due      string
		pattern  string
		interval int
		end      string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task, expanding it when it repeats",
		Long: `Creates a task. With --pattern the task repeats and its upcoming
occurrences are stored right away.

Example:
  taskflow tasks add "Water plants" -c personal --due 2024-06-01 --pattern weekly`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			loc := c.cfg.Location

			cat, err := app.categorySvc.Resolve(ctx, category)
			if err != nil {
				return err
			}
			in.Title = strings.Join(args, " ")
			in.CategoryID = cat.ID
			in.Priority = model.Priority(strings.ToLower(priority))
			if due != "" {
				dueAt, err := parseWhen(due, loc)
				if err != nil {
					return err
				}
				in.DueDate = &dueAt
			}
			if pattern != "" {
				in.Recurrence = &service.RecurrenceInput{Pattern: model.Pattern(strings.ToLower(pattern)), Interval: interval}
				if end != "" {
					endAt, err := parseWhen(end, loc)
					if err != nil {
						return err
					}
					in.Recurrence.EndDate = &endAt
				}
			}

			res, err := app.taskSvc.CreateTask(ctx, in)
			if err != nil {
				if res != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "stored %d task(s) before failing\n", res.Total())
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d task(s), id %s\n", res.Total(), res.Task.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "category id or name (required)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "medium", "low, medium or high")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "short description")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "markdown notes")
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD or \"YYYY-MM-DD HH:MM\"")
	cmd.Flags().StringVar(&pattern, "pattern", "", "repeat daily, weekly or monthly")
	cmd.Flags().IntVar(&interval, "interval", 1, "periods between occurrences")
	cmd.Flags().StringVar(&end, "end", "", "last day occurrences may fall on")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newTasksEditCmd(c *cli) *cobra.Command {
	var (
		title, description, notes string
		category, priority        string
		due, pattern, end         string
		interval                  int
		clearDue, noRepeat        bool
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of an existing task",
		Long: `Changes only the fields whose flags are given. Editing the repeat
rule of a task does not touch occurrences that were already stored.

Example:
  taskflow tasks edit 3f2c9a1e-... --priority high --due "2024-06-02 09:00"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearDue && cmd.Flags().Changed("due") {
				return fmt.Errorf("--due and --clear-due cannot be combined")
			}
			if noRepeat && (cmd.Flags().Changed("pattern") || cmd.Flags().Changed("interval") || cmd.Flags().Changed("end")) {
				return fmt.Errorf("--no-repeat cannot be combined with repeat flags")
			}
			app, err := c.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			loc := c.cfg.Location
			flags := cmd.Flags()

			current, err := app.taskSvc.GetTask(ctx, args[0])
			if err != nil {
				return err
			}

			update := service.TaskUpdate{ClearDueDate: clearDue, ClearRecurrence: noRepeat}
			if flags.Changed("title") {
				update.Title = &title
			}
			if flags.Changed("description") {
				update.Description = &description
			}
			if flags.Changed("notes") {
				update.Notes = &notes
			}
			if flags.Changed("priority") {
				p := model.Priority(strings.ToLower(priority))
				update.Priority = &p
			}
			if flags.Changed("category") {
				cat, err := app.categorySvc.Resolve(ctx, category)
				if err != nil {
					return err
				}
				update.CategoryID = &cat.ID
			}
			if flags.Changed("due") {
				dueAt, err := parseWhen(due, loc)
				if err != nil {
					return err
				}
				update.DueDate = &dueAt
			}
			if flags.Changed("pattern") || flags.Changed("interval") || flags.Changed("end") {
				rule := service.RecurrenceInput{Interval: 1}
				if current.Recurrence != nil {
					rule = service.RecurrenceInput{
						Pattern:  current.Recurrence.Pattern,
						Interval: current.Recurrence.Interval,
						EndDate:  current.Recurrence.EndDate,
					}
				}
				if flags.Changed("pattern") {
					rule.Pattern = model.Pattern(strings.ToLower(pattern))
				}
				if flags.Changed("interval") {
					rule.Interval = interval
				}
				if flags.Changed("end") {
					rule.EndDate = nil
					if end != "" {
						endAt, err := parseWhen(end, loc)
						if err != nil {
							return err
						}
						rule.EndDate = &endAt
					}
				}
				update.Recurrence = &rule
			}

			task, err := app.taskSvc.UpdateTask(ctx, current.ID, update)
			if err != nil {
				return err
			}
			names, err := categoryNames(cmd, app)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), "updated ")
			writeTaskLine(cmd.OutOrStdout(), *task, names, c)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "short description")
	cmd.Flags().StringVar(&notes, "notes", "", "markdown notes")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low, medium or high")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category id or name")
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD or \"YYYY-MM-DD HH:MM\"")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.Flags().StringVar(&pattern, "pattern", "", "repeat daily, weekly or monthly")
	cmd.Flags().IntVar(&interval, "interval", 1, "periods between occurrences")
	cmd.Flags().StringVar(&end, "end", "", "last day occurrences may fall on, empty to drop it")
	cmd.Flags().BoolVar(&noRepeat, "no-repeat", false, "stop the task from repeating")
	return cmd
}

func newTasksDoneCmd(c *cli) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.open(cmd)
			if err != nil {
				return err
			}
			completed := !undo
			task, err := app.taskSvc.UpdateTask(cmd.Context(), args[0], service.TaskUpdate{Completed: &completed})
			if err != nil {
				return err
			}
			state := "completed"
			if !task.Completed {
				state = "reopened"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", state, task.Title)
			return nil
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "reopen the task instead")
	return cmd
}

func newTasksRmCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task; generated occurrences are kept",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.open(cmd)
			if err != nil {
				return err
			}
			if err := app.taskSvc.DeleteTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func categoryNames(cmd *cobra.Command, app *application) (map[string]string, error) {
	categories, err := app.categorySvc.List(cmd.Context())
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}
	return names, nil
}

func writeTaskLine(out io.Writer, task model.Task, names map[string]string, c *cli) {
	mark := " "
	if task.Completed {
		mark = "x"
	}
	due := "-"
	if task.DueDate != nil {
		due = task.DueDate.In(c.cfg.Location).Format("2006-01-02 15:04")
	}
	var flags string
	switch {
	case task.IsRecurring():
		flags = " ↻"
	case task.IsInstance():
		flags = " ↳"
	}
	fmt.Fprintf(out, "[%s] %-40s %-6s %-16s %s (%s)%s\n", mark, task.ID, task.Priority, due, task.Title, names[task.CategoryID], flags)
}

func taskMarkdown(task model.Task, category string, instances []model.Task, c *cli) string {
	var b strings.Builder
	title := task.Title
	if task.Completed {
		title = "~~" + title + "~~"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- **ID:** `%s`\n", task.ID)
	if category != "" {
		fmt.Fprintf(&b, "- **Category:** %s\n", category)
	}
	fmt.Fprintf(&b, "- **Priority:** %s\n", task.Priority)
	if task.DueDate != nil {
		fmt.Fprintf(&b, "- **Due:** %s\n", task.DueDate.In(c.cfg.Location).Format("Mon, 02 Jan 2006 15:04"))
	}
	if task.CompletedAt != nil {
		fmt.Fprintf(&b, "- **Completed:** %s\n", task.CompletedAt.In(c.cfg.Location).Format("2006-01-02 15:04"))
	}
	if rule := task.Recurrence; rule != nil {
		fmt.Fprintf(&b, "- **Repeats:** %s every %d", rule.Pattern, rule.Interval)
		if rule.EndDate != nil {
			fmt.Fprintf(&b, " until %s", rule.EndDate.In(c.cfg.Location).Format("2006-01-02"))
		}
		b.WriteString("\n")
	}
	if task.IsInstance() {
		fmt.Fprintf(&b, "- **Occurrence of:** `%s`\n", task.ParentID)
	}
	if task.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", task.Description)
	}
	if task.Notes != "" {
		fmt.Fprintf(&b, "\n## Notes\n\n%s\n", task.Notes)
	}
	if len(instances) > 0 {
		b.WriteString("\n## Occurrences\n\n")
		for _, inst := range instances {
			mark := " "
			if inst.Completed {
				mark = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s `%s`\n", mark, inst.DueDate.In(c.cfg.Location).Format("2006-01-02"), inst.ID)
		}
	}
	return b.String()
}
