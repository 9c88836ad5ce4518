package harvest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"schoology-export/internal/browser"
	"schoology-export/pkg/htmlutil"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

const (
	report_workflow_expand_banks = "workflow.expand-banks"
)

// ErrStaleQuestionSet is returned when a question set still does not include all of its
// questions after its count was already submitted once.
var ErrStaleQuestionSet = errors.New("question set did not update")

var setLabelRegex = regexp.MustCompile(`(\d+)\s+of\s+(\d+)\s+questions?`)

type questionSet struct {
	RowId string
	// Labeled is false for sets without an "X of Y questions" label, those are not
	// random banks.
	Labeled  bool
	Included int
	Total    int
	// Random is true when the set can be expanded to list its questions.
	Random bool
	// Questions holds the edit page urls of the questions listed under an expanded set.
	Questions []string
}

func (q questionSet) complete() bool {
	return !q.Labeled || q.Included == q.Total
}

func (w *Workflow) snapshot(ctx context.Context, page browser.Page) (*goquery.Document, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (w *Workflow) parseQuestionSets(doc *goquery.Document) []questionSet {
	var sets []questionSet
	doc.Find(selectQuestionSetCell).Each(func(_ int, cell *goquery.Selection) {
		rowId, ok := cell.Closest("tr[id]").Attr("id")
		if !ok || rowId == "" {
			return
		}
		set := questionSet{
			RowId:  rowId,
			Random: cell.Find(selectSetExpander).Length() > 0,
		}

		match := setLabelRegex.FindStringSubmatch(htmlutil.SelectionText(cell))
		if match != nil {
			// the regex only matches digits
			set.Included, _ = strconv.Atoi(match[1])
			set.Total, _ = strconv.Atoi(match[2])
			set.Labeled = true
		}

		for _, a := range htmlutil.GetAnchors(w.siteUrl, cell.Find(selectSetQuestionRow).Find(selectSetQuestionEdit)) {
			set.Questions = append(set.Questions, a.Href)
		}

		sets = append(sets, set)
	})
	return sets
}

func (w *Workflow) scanQuestionSets(ctx context.Context, page browser.Page, assignmentId string) ([]questionSet, error) {
	err := page.Navigate(ctx, w.urls.questions(assignmentId))
	if err != nil {
		return nil, err
	}
	doc, err := w.snapshot(ctx, page)
	if err != nil {
		return nil, err
	}
	return w.parseQuestionSets(doc), nil
}

func findSet(sets []questionSet, rowId string) (questionSet, bool) {
	for _, s := range sets {
		if s.RowId == rowId {
			return s, true
		}
	}
	return questionSet{}, false
}

// ExpandBanks makes every random question set of an assignment include all of the
// questions in its bank. The page is rescanned after every change, sets that already
// include everything are never touched.
func (w *Workflow) ExpandBanks(ctx context.Context, page browser.Page, assignmentId string) error {
	ctx, span := tracer.Start(ctx, "ExpandBanks")
	defer span.End()
	span.SetAttributes(attribute.String("assignment_id", assignmentId))

	submitted := map[string]struct{}{}
	for {
		sets, err := w.scanQuestionSets(ctx, page, assignmentId)
		if err != nil {
			w.tel.ReportBroken(report_workflow_expand_banks, err, assignmentId)
			return fail(span, fmt.Errorf("expand banks: %w", err))
		}

		var target *questionSet
		for i := range sets {
			if !sets[i].complete() {
				target = &sets[i]
				break
			}
		}
		if target == nil {
			return nil
		}

		if _, ok := submitted[target.RowId]; ok {
			err := fmt.Errorf(
				"%w: set %s shows %d of %d questions",
				ErrStaleQuestionSet, target.RowId, target.Included, target.Total,
			)
			w.tel.ReportBroken(report_workflow_expand_banks, err, assignmentId)
			return fail(span, fmt.Errorf("expand banks: %w", err))
		}
		submitted[target.RowId] = struct{}{}

		w.tel.ReportDebug(
			"expanding question set",
			assignmentId, target.RowId, target.Included, target.Total,
		)
		err = w.submitQuestionCount(ctx, page, assignmentId, *target)
		if err != nil {
			w.tel.ReportBroken(report_workflow_expand_banks, err, assignmentId)
			return fail(span, fmt.Errorf("expand banks: set %s: %w", target.RowId, err))
		}
	}
}

func (w *Workflow) submitQuestionCount(ctx context.Context, page browser.Page, assignmentId string, set questionSet) error {
	err := page.Click(ctx, inRow(set.RowId, selectSetMenu))
	if err != nil {
		return err
	}
	err = page.Click(ctx, inRow(set.RowId, selectSetEdit))
	if err != nil {
		return err
	}
	err = page.Input(ctx, selectQuestionCount, strconv.Itoa(set.Total))
	if err != nil {
		return err
	}
	err = page.Click(ctx, selectFormSubmit)
	if err != nil {
		return err
	}

	return w.waitUntil(
		ctx,
		fmt.Sprintf("question set %s to include %d questions", set.RowId, set.Total),
		func(ctx context.Context) (bool, error) {
			sets, err := w.scanQuestionSets(ctx, page, assignmentId)
			if err != nil {
				return false, err
			}
			updated, ok := findSet(sets, set.RowId)
			return ok && updated.complete(), nil
		},
	)
}
