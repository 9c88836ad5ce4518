package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"schoology-export/internal/components/telemetry"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

const (
	report_browser_launch = "browser.launch"
	report_browser_close  = "browser.close"
	report_page_settle    = "page.settle"
)

type Options struct {
	// Headless is ignored when RemoteURL is set.
	Headless bool
	// Bin is the path of the chrome binary to launch, empty means rod picks (and
	// downloads if needed) one.
	Bin string
	// RemoteURL connects to an already running browser instead of launching one,
	// ex. "127.0.0.1:9222" or "ws://127.0.0.1:9222/devtools/browser/...".
	RemoteURL string
	// ImplicitWait is how long element lookups wait for the element to appear,
	// defaults to 10 seconds.
	ImplicitWait time.Duration
	// Settle is the longest a page is given to become stable after a click,
	// defaults to 3 seconds.
	Settle time.Duration
}

// Browser is a running chrome instance, every page it opens gets its own incognito
// context so sessions never share cookies.
type Browser struct {
	rod      *rod.Browser
	launcher *launcher.Launcher
	opts     Options
	tel      telemetry.API
}

func Launch(ctx context.Context, opts Options, tel telemetry.API) (*Browser, error) {
	tel = telemetry.NewScopedAPI("browser", tel)

	if opts.ImplicitWait <= 0 {
		opts.ImplicitWait = 10 * time.Second
	}
	if opts.Settle <= 0 {
		opts.Settle = 3 * time.Second
	}

	var controlUrl string
	var l *launcher.Launcher
	var err error
	if opts.RemoteURL != "" {
		controlUrl, err = launcher.ResolveURL(opts.RemoteURL)
		if err != nil {
			tel.ReportBroken(report_browser_launch, fmt.Errorf("resolve remote: %w", err), opts.RemoteURL)
			return nil, fmt.Errorf("resolve browser url: %w", err)
		}
	} else {
		l = launcher.New().
			Context(ctx).
			Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		controlUrl, err = l.Launch()
		if err != nil {
			tel.ReportBroken(report_browser_launch, err)
			return nil, fmt.Errorf("launch browser: %w", err)
		}
	}

	b := rod.New().ControlURL(controlUrl)
	err = b.Connect()
	if err != nil {
		if l != nil {
			l.Kill()
		}
		tel.ReportBroken(report_browser_launch, fmt.Errorf("connect: %w", err), controlUrl)
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	tel.ReportDebug("connected to browser", controlUrl)

	return &Browser{
		rod:      b,
		launcher: l,
		opts:     opts,
		tel:      tel,
	}, nil
}

// NewSession opens a tab in a fresh incognito context.
func (b *Browser) NewSession(ctx context.Context) (Page, error) {
	incognito, err := b.rod.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("create incognito context: %w", err)
	}
	page, err := stealth.Page(incognito)
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &rodPage{
		page:      page,
		incognito: incognito,
		opts:      b.opts,
		tel:       b.tel,
	}, nil
}

func (b *Browser) Close() error {
	err := b.rod.Close()
	if err != nil {
		b.tel.ReportWarning(report_browser_close, err)
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
	return err
}

type rodPage struct {
	page      *rod.Page
	incognito *rod.Browser
	opts      Options
	tel       telemetry.API
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	err := page.Navigate(url)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	err = page.WaitLoad()
	if err != nil {
		return fmt.Errorf("wait for %s to load: %w", url, err)
	}
	return nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("get html: %w", err)
	}
	return html, nil
}

func (p *rodPage) Has(ctx context.Context, selector string) (bool, error) {
	found, _, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return false, fmt.Errorf("query %s: %w", selector, err)
	}
	return found, nil
}

func (p *rodPage) element(ctx context.Context, selector string) (*rod.Element, error) {
	timed := p.page.Context(ctx).Timeout(p.opts.ImplicitWait)
	el, err := timed.Element(selector)
	timed.CancelTimeout()
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
		}
		return nil, fmt.Errorf("find %s: %w", selector, err)
	}
	// the element inherits the lookup's timeout, rebind it to the caller's context
	return el.Context(ctx), nil
}

func (p *rodPage) Input(ctx context.Context, selector, text string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	_, err = el.Eval(`() => { this.value = "" }`)
	if err != nil {
		return fmt.Errorf("clear %s: %w", selector, err)
	}
	err = el.Input(text)
	if err != nil {
		return fmt.Errorf("input into %s: %w", selector, err)
	}
	return nil
}

func (p *rodPage) Select(ctx context.Context, selector, value string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	err = el.Select([]string{fmt.Sprintf(`[value="%s"]`, value)}, true, rod.SelectorTypeCSSSector)
	if err != nil {
		return fmt.Errorf("select %s in %s: %w", value, selector, err)
	}
	return nil
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	err = el.Click(proto.InputMouseButtonLeft, 1)
	if err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}

	// clicks frequently trigger navigation or xhr, give the page a moment to settle,
	// callers that need a specific state still poll for it
	settle := p.page.Context(ctx).Timeout(p.opts.Settle)
	err = settle.WaitStable(300 * time.Millisecond)
	settle.CancelTimeout()
	if err != nil && ctx.Err() == nil && !errors.Is(err, context.DeadlineExceeded) {
		p.tel.ReportWarning(report_page_settle, err, selector)
	}
	return nil
}

func (p *rodPage) PDF(ctx context.Context) ([]byte, error) {
	stream, err := p.page.Context(ctx).PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
	})
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	pdf, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return pdf, nil
}

func (p *rodPage) Close() error {
	err := p.page.Close()
	if err != nil {
		p.tel.ReportWarning(report_browser_close, err)
	}
	return p.incognito.Close()
}
