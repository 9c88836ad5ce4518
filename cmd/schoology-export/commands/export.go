package commands

import (
	"context"
	"log/slog"
	"schoology-export/pkg/serviceutil"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Save every assignment without an output file, consumes the student's attempt.",
	Run: func(cmd *cobra.Command, args []string) {
		err := export(cmd.Context())
		if err != nil {
			serviceutil.Fatal("export failed", err)
		}
	},
}

func export(ctx context.Context) error {
	err := resolved.validate(needApi | needInstructor | needStudent)
	if err != nil {
		return err
	}

	shutdown := setupTelemetry(ctx)
	defer shutdown()

	h, b, err := newHarvester(resolved)
	if err != nil {
		return err
	}
	defer b.Close()

	report, err := h.Run(ctx)
	slog.Info(
		"export finished",
		"total", report.Total,
		"skipped", report.Skipped,
		"harvested", report.Harvested,
	)
	return err
}
