package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTasksCmd(o *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage tasks directly in the store",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all tasks",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := o.open(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()
				all, err := a.tasks.List(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tDONE\tTITLE")
				for _, t := range all {
					mark := " "
					if t.Done {
						mark = "x"
					}
					fmt.Fprintf(w, "%d\t[%s]\t%s\n", t.ID, mark, t.Title)
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "add <title>",
			Short: "Create a task",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := o.open(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()
				t, err := a.tasks.Create(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created task %d\n", t.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "done <id>",
			Short: "Mark a task as done",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				a, err := o.open(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()
				if _, err := a.tasks.MarkDone(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "task %d done\n", id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "undone <id>",
			Short: "Clear the done flag of a task",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				a, err := o.open(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()
				if err := a.tasks.ClearDone(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "task %d undone\n", id)
				return nil
			},
		},
	)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}
