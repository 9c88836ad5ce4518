package commands

import (
	"context"
	"schoology-export/internal/browser"
	"schoology-export/internal/components/chrono"
	"schoology-export/internal/components/telemetry"
	"schoology-export/internal/harvest"
	"schoology-export/internal/schoologyapi"
)

// lazyBrowser only starts chrome once the first session is needed, so a failing
// assignment listing never launches it.
type lazyBrowser struct {
	opts    browser.Options
	tel     telemetry.API
	browser *browser.Browser
}

func (l *lazyBrowser) open(ctx context.Context) (browser.Page, error) {
	if l.browser == nil {
		b, err := browser.Launch(ctx, l.opts, l.tel)
		if err != nil {
			return nil, err
		}
		l.browser = b
	}
	return l.browser.NewSession(ctx)
}

func (l *lazyBrowser) Close() {
	if l.browser != nil {
		_ = l.browser.Close()
	}
}

func newApiClient(s settings) (*schoologyapi.Client, error) {
	return schoologyapi.NewClient(
		schoologyapi.ClientOptions{
			BaseUrl:        s.ApiBaseUrl,
			ConsumerKey:    s.Key,
			ConsumerSecret: s.Secret,
		},
		chrono.StandardImpl{},
		telemetry.SlogAPI{},
	)
}

// newHarvester wires the api client, workflow and browser together, the returned
// lazyBrowser must be closed once the harvester is done.
func newHarvester(s settings) (*harvest.Harvester, *lazyBrowser, error) {
	tel := telemetry.SlogAPI{}

	client, err := newApiClient(s)
	if err != nil {
		return nil, nil, err
	}
	workflow, err := harvest.NewWorkflow(harvest.WorkflowOptions{
		Site:        s.Site,
		WaitTimeout: s.WaitTimeout,
		Format:      s.Format,
	}, tel)
	if err != nil {
		return nil, nil, err
	}

	b := &lazyBrowser{opts: s.Browser, tel: tel}
	h := harvest.NewHarvester(client, workflow, b.open, harvest.Options{
		Instructor:     s.Instructor,
		Student:        s.Student,
		Match:          s.Match,
		MatchThreshold: s.MatchThreshold,
		Output: harvest.OutputStore{
			Dir:    s.OutputDir,
			Format: s.Format,
		},
	}, tel)
	return h, b, nil
}
