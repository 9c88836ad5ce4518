package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"schoology-export/internal/browser"
	"schoology-export/internal/components/assert"
	"schoology-export/internal/components/telemetry"
	"schoology-export/internal/schoologyapi"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("schoology-export/internal/harvest")

var harvestedCounter, _ = meter.Int64Counter("harvest.harvested")
var skippedCounter, _ = meter.Int64Counter("harvest.skipped")

const (
	report_harvester_open_session  = "harvester.open-session"
	report_harvester_close_session = "harvester.close-session"
)

type Lister interface {
	ListAssignments(ctx context.Context) ([]schoologyapi.Assignment, error)
}

// Steps are the per assignment operations the harvester drives, *Workflow implements
// them against the real site.
type Steps interface {
	Login(ctx context.Context, page browser.Page, creds Credentials) error
	ExpandBanks(ctx context.Context, page browser.Page, assignmentId string) error
	NormalizeSettings(ctx context.Context, page browser.Page, assignmentId string) error
	Download(ctx context.Context, page browser.Page, assignment schoologyapi.Assignment) ([]byte, error)
	QuestionLinks(ctx context.Context, page browser.Page, assignmentId string) ([][]string, error)
	RenderQuestion(ctx context.Context, page browser.Page, href string) ([]byte, error)
}

// SessionOpener opens a page that shares no cookies with any other page it opened.
type SessionOpener func(ctx context.Context) (browser.Page, error)

type Options struct {
	Instructor Credentials
	Student    Credentials
	// only assignments with a title matching this are harvested, empty means all
	Match          string
	MatchThreshold float64
	Output         OutputStore
}

// Report counts assignments for Run and question files for RunQuestions.
type Report struct {
	Total     int
	Skipped   int
	Harvested int
}

type Harvester struct {
	lister Lister
	steps  Steps
	open   SessionOpener
	opts   Options
	tel    telemetry.API
}

func NewHarvester(lister Lister, steps Steps, open SessionOpener, opts Options, tel telemetry.API) *Harvester {
	assert.NotNil(lister)
	assert.NotNil(steps)
	assert.NotNil(open)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Output.Dir)

	return &Harvester{
		lister: lister,
		steps:  steps,
		open:   open,
		opts:   opts,
		tel:    telemetry.NewScopedAPI("harvest", tel),
	}
}

func (h *Harvester) list(ctx context.Context) ([]schoologyapi.Assignment, error) {
	assignments, err := h.lister.ListAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	filtered := schoologyapi.FilterByTitle(assignments, h.opts.Match, h.opts.MatchThreshold)
	if len(filtered) != len(assignments) {
		h.tel.ReportDebug("filtered assignments by title", h.opts.Match, len(assignments), len(filtered))
	}
	return filtered, nil
}

func (h *Harvester) openSession(ctx context.Context, role string, creds Credentials) (browser.Page, error) {
	page, err := h.open(ctx)
	if err != nil {
		h.tel.ReportBroken(report_harvester_open_session, err, role)
		return nil, fmt.Errorf("open %s session: %w", role, err)
	}
	err = h.steps.Login(ctx, page, creds)
	if err != nil {
		h.closeSession(page, role)
		return nil, fmt.Errorf("open %s session: %w", role, err)
	}
	return page, nil
}

func (h *Harvester) closeSession(page browser.Page, role string) {
	err := page.Close()
	if err != nil {
		h.tel.ReportWarning(report_harvester_close_session, err, role)
	}
}

// Run downloads every assignment that has no output file yet. Each one has its banks
// expanded and settings normalized by the instructor before the student takes and
// renders it. The first error stops the run.
func (h *Harvester) Run(ctx context.Context) (Report, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	assignments, err := h.list(ctx)
	if err != nil {
		return Report{}, fail(span, err)
	}
	report := Report{Total: len(assignments)}

	err = h.opts.Output.Init()
	if err != nil {
		return report, fail(span, fmt.Errorf("create output directory: %w", err))
	}

	instructor, err := h.openSession(ctx, "instructor", h.opts.Instructor)
	if err != nil {
		return report, fail(span, err)
	}
	defer h.closeSession(instructor, "instructor")
	student, err := h.openSession(ctx, "student", h.opts.Student)
	if err != nil {
		return report, fail(span, err)
	}
	defer h.closeSession(student, "student")

	for i, a := range assignments {
		if ctx.Err() != nil {
			return report, fail(span, ctx.Err())
		}

		done, err := h.opts.Output.Exists(a)
		if err != nil {
			return report, fail(span, fmt.Errorf("harvest: assignment %s: %w", a.ID, err))
		}
		if done {
			slog.InfoContext(ctx, "skipping assignment", "position", i+1, "count", len(assignments), "id", a.ID, "title", a.Title)
			report.Skipped++
			skippedCounter.Add(ctx, 1)
			continue
		}

		slog.InfoContext(ctx, "harvesting assignment", "position", i+1, "count", len(assignments), "id", a.ID, "title", a.Title)
		err = h.harvest(ctx, instructor, student, a)
		if err != nil {
			return report, fail(span, fmt.Errorf("harvest: assignment %s: %w", a.ID, err))
		}
		report.Harvested++
		harvestedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("format", string(h.opts.Output.Format))))
	}

	return report, nil
}

func (h *Harvester) harvest(ctx context.Context, instructor, student browser.Page, a schoologyapi.Assignment) error {
	err := h.steps.ExpandBanks(ctx, instructor, string(a.ID))
	if err != nil {
		return err
	}
	err = h.steps.NormalizeSettings(ctx, instructor, string(a.ID))
	if err != nil {
		return err
	}
	data, err := h.steps.Download(ctx, student, a)
	if err != nil {
		return err
	}
	err = h.opts.Output.Write(a, data)
	if err != nil {
		return fmt.Errorf("write %s: %w", h.opts.Output.Path(a), err)
	}
	return nil
}

// RunQuestions prints the edit page of every question in every random question set
// to its own file, using the instructor session only. No attempt is consumed.
func (h *Harvester) RunQuestions(ctx context.Context) (Report, error) {
	ctx, span := tracer.Start(ctx, "RunQuestions")
	defer span.End()

	assignments, err := h.list(ctx)
	if err != nil {
		return Report{}, fail(span, err)
	}

	err = h.opts.Output.Init()
	if err != nil {
		return Report{}, fail(span, fmt.Errorf("create output directory: %w", err))
	}

	instructor, err := h.openSession(ctx, "instructor", h.opts.Instructor)
	if err != nil {
		return Report{}, fail(span, err)
	}
	defer h.closeSession(instructor, "instructor")

	var report Report
	for i, a := range assignments {
		if ctx.Err() != nil {
			return report, fail(span, ctx.Err())
		}

		sets, err := h.steps.QuestionLinks(ctx, instructor, string(a.ID))
		if err != nil {
			return report, fail(span, fmt.Errorf("questions: assignment %s: %w", a.ID, err))
		}
		total := 0
		for _, set := range sets {
			total += len(set)
		}
		slog.InfoContext(ctx, "exporting questions", "position", i+1, "count", len(assignments), "id", a.ID, "title", a.Title, "questions", total)
		report.Total += total

		for si, set := range sets {
			for qi, href := range set {
				path := h.opts.Output.QuestionPath(a, si+1, qi+1)
				done, err := exists(path)
				if err != nil {
					return report, fail(span, fmt.Errorf("questions: assignment %s: %w", a.ID, err))
				}
				if done {
					report.Skipped++
					skippedCounter.Add(ctx, 1)
					continue
				}

				pdf, err := h.steps.RenderQuestion(ctx, instructor, href)
				if err != nil {
					return report, fail(span, fmt.Errorf("questions: assignment %s: %w", a.ID, err))
				}
				err = writeAtomic(path, pdf)
				if err != nil {
					return report, fail(span, fmt.Errorf("questions: write %s: %w", path, err))
				}
				report.Harvested++
				harvestedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("format", string(FormatPDF))))
			}
		}
	}

	return report, nil
}
