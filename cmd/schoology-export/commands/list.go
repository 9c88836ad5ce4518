package commands

import (
	"context"
	"os"
	"schoology-export/internal/schoologyapi"
	"schoology-export/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the assignments that would be exported.",
	Run: func(cmd *cobra.Command, args []string) {
		err := list(cmd.Context())
		if err != nil {
			serviceutil.Fatal("list failed", err)
		}
	},
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func list(ctx context.Context) error {
	err := resolved.validate(needApi)
	if err != nil {
		return err
	}

	client, err := newApiClient(resolved)
	if err != nil {
		return err
	}
	assignments, err := client.ListAssignments(ctx)
	if err != nil {
		return err
	}
	assignments = schoologyapi.FilterByTitle(assignments, resolved.Match, resolved.MatchThreshold)

	t := newTable()
	t.AppendHeader(table.Row{"ID", "Title", "Type", "Section"})
	for _, a := range assignments {
		t.AppendRow(table.Row{a.ID, a.Title, a.Type, a.SectionID})
	}
	t.AppendFooter(table.Row{"", "Total", len(assignments), ""})
	t.Render()
	return nil
}
