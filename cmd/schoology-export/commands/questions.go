package commands

import (
	"context"
	"log/slog"
	"schoology-export/pkg/serviceutil"

	"github.com/spf13/cobra"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Save the edit page of every question in every random question set, needs only the instructor.",
	Run: func(cmd *cobra.Command, args []string) {
		err := exportQuestions(cmd.Context())
		if err != nil {
			serviceutil.Fatal("question export failed", err)
		}
	},
}

func exportQuestions(ctx context.Context) error {
	err := resolved.validate(needApi | needInstructor)
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

	report, err := h.RunQuestions(ctx)
	slog.Info(
		"question export finished",
		"questions", report.Total,
		"skipped", report.Skipped,
		"saved", report.Harvested,
	)
	return err
}
