package harvest

import (
	"context"
	"fmt"
	"schoology-export/internal/browser"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

const (
	report_workflow_normalize_settings = "workflow.normalize-settings"
)

type setting struct {
	name     string
	selector string
	desired  string
}

// the values every assessment should be left with before it is downloaded
var desiredSettings = []setting{
	// questions in a fixed order
	{name: "randomize", selector: selectSettingRandomize, desired: "0"},
	// 0 is the single attempt sentinel
	{name: "max attempts", selector: selectSettingAttempts, desired: "0"},
	// restricted student view
	{name: "student view", selector: selectSettingView, desired: "0"},
	// all questions on a single page
	{name: "paging", selector: selectSettingPaging, desired: "0"},
	// time restricted availability
	{name: "availability", selector: selectSettingAvailable, desired: "1"},
}

// randomize only registers a change when it is toggled away from its value and back
const randomizeToggle = "1"

// selectedValue returns the value of the option a <select> currently shows, which is
// the first option when none is marked selected.
func selectedValue(doc *goquery.Document, selector string) (string, error) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	option := sel.Find("option[selected]").First()
	if option.Length() == 0 {
		option = sel.Find("option").First()
	}
	value, ok := option.Attr("value")
	if !ok {
		return "", fmt.Errorf("%s has no selected option", selector)
	}
	return value, nil
}

// readSettings returns the names of the settings that differ from their desired value.
func readSettings(doc *goquery.Document) ([]string, error) {
	var differing []string
	for _, s := range desiredSettings {
		value, err := selectedValue(doc, s.selector)
		if err != nil {
			return nil, err
		}
		if value != s.desired {
			differing = append(differing, s.name)
		}
	}
	return differing, nil
}

func (w *Workflow) scanSettings(ctx context.Context, page browser.Page, assignmentId string) ([]string, error) {
	err := page.Navigate(ctx, w.urls.settings(assignmentId))
	if err != nil {
		return nil, err
	}
	doc, err := w.snapshot(ctx, page)
	if err != nil {
		return nil, err
	}
	return readSettings(doc)
}

// NormalizeSettings brings an assessment's settings to desiredSettings. Nothing is
// submitted when they already match.
func (w *Workflow) NormalizeSettings(ctx context.Context, page browser.Page, assignmentId string) error {
	ctx, span := tracer.Start(ctx, "NormalizeSettings")
	defer span.End()
	span.SetAttributes(attribute.String("assignment_id", assignmentId))

	differing, err := w.scanSettings(ctx, page, assignmentId)
	if err != nil {
		w.tel.ReportBroken(report_workflow_normalize_settings, err, assignmentId)
		return fail(span, fmt.Errorf("normalize settings: %w", err))
	}
	if len(differing) == 0 {
		return nil
	}
	w.tel.ReportDebug("normalizing settings", assignmentId, differing)

	err = w.submitSettings(ctx, page, assignmentId)
	if err != nil {
		w.tel.ReportBroken(report_workflow_normalize_settings, err, assignmentId)
		return fail(span, fmt.Errorf("normalize settings: %w", err))
	}
	return nil
}

func (w *Workflow) submitSettings(ctx context.Context, page browser.Page, assignmentId string) error {
	err := page.Select(ctx, selectSettingRandomize, randomizeToggle)
	if err != nil {
		return err
	}
	for _, s := range desiredSettings {
		err = page.Select(ctx, s.selector, s.desired)
		if err != nil {
			return err
		}
	}
	err = page.Click(ctx, selectFormSubmit)
	if err != nil {
		return err
	}

	return w.waitUntil(ctx, "settings to be saved", func(ctx context.Context) (bool, error) {
		differing, err := w.scanSettings(ctx, page, assignmentId)
		if err != nil {
			return false, err
		}
		return len(differing) == 0, nil
	})
}
