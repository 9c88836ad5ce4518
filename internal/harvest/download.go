package harvest

import (
	"context"
	"fmt"
	"schoology-export/internal/browser"
	"schoology-export/internal/schoologyapi"

	"go.opentelemetry.io/otel/attribute"
)

const (
	report_workflow_download = "workflow.download"
)

func (w *Workflow) clickStart(ctx context.Context, page browser.Page) error {
	for i, selector := range startSelectors {
		if i < len(startSelectors)-1 {
			found, err := page.Has(ctx, selector)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
		}
		return page.Click(ctx, selector)
	}
	return nil
}

func (w *Workflow) render(ctx context.Context, page browser.Page) ([]byte, error) {
	if w.opts.Format == FormatHTML {
		html, err := page.HTML(ctx)
		if err != nil {
			return nil, err
		}
		return []byte(html), nil
	}
	return page.PDF(ctx)
}

// Download takes the assessment as the student and renders the submitted result.
//
// This consumes the student's attempt, it must only be called once per assignment.
func (w *Workflow) Download(ctx context.Context, page browser.Page, assignment schoologyapi.Assignment) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "Download")
	defer span.End()
	span.SetAttributes(attribute.String("assignment_id", string(assignment.ID)))

	data, err := w.takeAssessment(ctx, page, string(assignment.ID))
	if err != nil {
		w.tel.ReportBroken(report_workflow_download, err, assignment.ID)
		return nil, fail(span, fmt.Errorf("download: %w", err))
	}
	return data, nil
}

func (w *Workflow) takeAssessment(ctx context.Context, page browser.Page, assignmentId string) ([]byte, error) {
	err := page.Navigate(ctx, w.urls.assessment(assignmentId))
	if err != nil {
		return nil, err
	}
	err = w.clickStart(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	// the first submit opens the review, the second submits the attempt
	err = page.Click(ctx, selectFormSubmit)
	if err != nil {
		return nil, fmt.Errorf("review: %w", err)
	}
	err = page.Click(ctx, selectFormSubmit)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	err = page.Click(ctx, selectConfirmSubmission)
	if err != nil {
		return nil, fmt.Errorf("confirm: %w", err)
	}
	err = w.waitUntil(ctx, "submission to be confirmed", func(ctx context.Context) (bool, error) {
		shown, err := page.Has(ctx, selectConfirmSubmission)
		return !shown, err
	})
	if err != nil {
		return nil, err
	}
	return w.render(ctx, page)
}
