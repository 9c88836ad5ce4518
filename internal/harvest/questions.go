package harvest

import (
	"context"
	"fmt"
	"schoology-export/internal/browser"

	"go.opentelemetry.io/otel/attribute"
)

const (
	report_workflow_question_links  = "workflow.question-links"
	report_workflow_render_question = "workflow.render-question"
)

// QuestionLinks returns the edit page url of every question in every random question
// set of an assignment, grouped by set in page order. Collapsed sets are expanded first.
func (w *Workflow) QuestionLinks(ctx context.Context, page browser.Page, assignmentId string) ([][]string, error) {
	ctx, span := tracer.Start(ctx, "QuestionLinks")
	defer span.End()
	span.SetAttributes(attribute.String("assignment_id", assignmentId))

	sets, err := w.scanQuestionSets(ctx, page, assignmentId)
	if err != nil {
		w.tel.ReportBroken(report_workflow_question_links, err, assignmentId)
		return nil, fail(span, fmt.Errorf("question links: %w", err))
	}

	var links [][]string
	for _, set := range sets {
		if !set.Random {
			continue
		}
		if len(set.Questions) == 0 {
			set, err = w.expandSet(ctx, page, set)
			if err != nil {
				w.tel.ReportBroken(report_workflow_question_links, err, assignmentId)
				return nil, fail(span, fmt.Errorf("question links: set %s: %w", set.RowId, err))
			}
		}
		links = append(links, set.Questions)
	}
	return links, nil
}

func (w *Workflow) expandSet(ctx context.Context, page browser.Page, set questionSet) (questionSet, error) {
	err := page.Click(ctx, inRow(set.RowId, selectSetExpander))
	if err != nil {
		return set, err
	}

	expanded := set
	err = w.waitUntil(ctx, fmt.Sprintf("question set %s to list its questions", set.RowId), func(ctx context.Context) (bool, error) {
		doc, err := w.snapshot(ctx, page)
		if err != nil {
			return false, err
		}
		current, ok := findSet(w.parseQuestionSets(doc), set.RowId)
		if !ok || len(current.Questions) == 0 {
			return false, nil
		}
		expanded = current
		return true, nil
	})
	return expanded, err
}

// RenderQuestion prints a single question's edit page to pdf.
func (w *Workflow) RenderQuestion(ctx context.Context, page browser.Page, href string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "RenderQuestion")
	defer span.End()
	span.SetAttributes(attribute.String("href", href))

	err := page.Navigate(ctx, href)
	if err != nil {
		w.tel.ReportBroken(report_workflow_render_question, err, href)
		return nil, fail(span, fmt.Errorf("render question: %w", err))
	}
	pdf, err := page.PDF(ctx)
	if err != nil {
		w.tel.ReportBroken(report_workflow_render_question, err, href)
		return nil, fail(span, fmt.Errorf("render question: %w", err))
	}
	return pdf, nil
}
