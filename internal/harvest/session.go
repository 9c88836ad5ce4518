package harvest

import (
	"context"
	"fmt"
	"net/url"
	"schoology-export/internal/browser"
	"schoology-export/internal/components/assert"
	"schoology-export/internal/components/telemetry"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("schoology-export/internal/harvest")

const (
	report_session_login = "session.login"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case FormatPDF, FormatHTML:
		return Format(value), nil
	default:
		return "", fmt.Errorf("unknown format %q, expected %q or %q", value, FormatPDF, FormatHTML)
	}
}

type Credentials struct {
	Email    string
	Password string
}

type WorkflowOptions struct {
	// defaults to DefaultSite
	Site string
	// how long to poll for a page to reflect a submitted change, defaults to 30 seconds
	WaitTimeout time.Duration
	// defaults to 500 milliseconds
	PollInterval time.Duration
	// defaults to FormatPDF
	Format Format
}

// Workflow holds the individual steps applied to an assignment, every step receives
// the page (session) it should act on explicitly.
type Workflow struct {
	urls    siteUrls
	siteUrl *url.URL
	opts    WorkflowOptions
	tel     telemetry.API
}

func NewWorkflow(opts WorkflowOptions, tel telemetry.API) (*Workflow, error) {
	assert.NotNil(tel)

	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 30 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.Format == "" {
		opts.Format = FormatPDF
	}

	urls := newSiteUrls(opts.Site)
	siteUrl, err := url.Parse(urls.base)
	if err != nil {
		return nil, fmt.Errorf("parse site url: %w", err)
	}

	return &Workflow{
		urls:    urls,
		siteUrl: siteUrl,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("workflow", tel),
	}, nil
}

func (w *Workflow) waitUntil(ctx context.Context, description string, cond func(ctx context.Context) (bool, error)) error {
	return browser.WaitUntil(ctx, w.opts.WaitTimeout, w.opts.PollInterval, description, cond)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Login signs into the web ui through the login form. Success is not verified, when
// the form is still shown afterwards a warning is reported and the caller carries on.
func (w *Workflow) Login(ctx context.Context, page browser.Page, creds Credentials) error {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	err := page.Navigate(ctx, w.urls.login())
	if err != nil {
		return fail(span, fmt.Errorf("login: %w", err))
	}
	err = page.Input(ctx, selectLoginEmail, creds.Email)
	if err != nil {
		return fail(span, fmt.Errorf("login: %w", err))
	}
	err = page.Input(ctx, selectLoginPassword, creds.Password)
	if err != nil {
		return fail(span, fmt.Errorf("login: %w", err))
	}
	err = page.Click(ctx, selectLoginSubmit)
	if err != nil {
		return fail(span, fmt.Errorf("login: %w", err))
	}

	stillShown, err := page.Has(ctx, selectLoginPassword)
	if err != nil {
		return fail(span, fmt.Errorf("login: %w", err))
	}
	if stillShown {
		w.tel.ReportWarning(report_session_login, "login form is still shown after submitting", creds.Email)
	}
	return nil
}
