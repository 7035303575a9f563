package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"task-api/internal/result"
)

func newExportCmd(o *rootOpts) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a task report as json, csv or pdf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			b, err := result.NewExporter(a.tasks).Export(cmd.Context(), format)
			if err != nil {
				return err
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			if err := os.WriteFile(out, b, 0644); err != nil {
				return fmt.Errorf("write: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported -> %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json|csv|pdf")
	cmd.Flags().StringVar(&out, "out", "tasks.json", "output path, - for stdout")
	return cmd
}
