package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskflow/internal/service"
)

func newCategoriesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cat"},
		Short:   "List categories with their progress",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.open(cmd)
			if err != nil {
				return err
			}
			categories, err := app.categorySvc.List(cmd.Context())
			if err != nil {
				return err
			}
			sum, err := app.categorySvc.Summary(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-38s %-8s %-20s %d/%d\n", service.CategoryAll, "", "All tasks", sum.Completed, sum.Total)
			for _, cat := range categories {
				fmt.Fprintf(out, "%-38s %-8s %-20s %d/%d\n", cat.ID, cat.Color, cat.Name, cat.CompletedCount, cat.TaskCount)
			}
			return nil
		},
	}
	cmd.AddCommand(newCategoriesAddCmd(c), newCategoriesEditCmd(c), newCategoriesRmCmd(c))
	return cmd
}

func newCategoriesAddCmd(c *cli) *cobra.Command {
	var color string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.open(cmd)
			if err != nil {
				return err
			}
			cat, err := app.categorySvc.Create(cmd.Context(), service.CategoryInput{Name: args[0], Color: color})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created category %s (%s)\n", cat.Name, cat.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&color, "color", "", "hex color, e.g. #0EA5E9")
	return cmd
}

func newCategoriesEditCmd(c *cli) *cobra.Command {
	var name, color string

	cmd := &cobra.Command{
		Use:   "edit <id|name>",
		Short: "Rename a category or change its color",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			current, err := app.categorySvc.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			input := service.CategoryInput{Name: current.Name, Color: color}
			if cmd.Flags().Changed("name") {
				input.Name = name
			}
			cat, err := app.categorySvc.Update(ctx, current.ID, input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated category %s (%s) %s\n", cat.Name, cat.ID, cat.Color)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&color, "color", "", "hex color, e.g. #0EA5E9")
	return cmd
}

func newCategoriesRmCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a category that has no tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.open(cmd)
			if err != nil {
				return err
			}
			if err := app.categorySvc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted category %s\n", args[0])
			return nil
		},
	}
}
