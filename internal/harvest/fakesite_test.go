package harvest

import (
	"context"
	"fmt"
	"regexp"
	"schoology-export/internal/browser"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

const testSite = "https://school.test"

type fakeSet struct {
	RowId    string
	Included int
	// zero means the set has no "X of Y questions" label
	Total     int
	Random    bool
	Questions []string
	// when set, a submitted count never reaches the page
	IgnoreSubmit bool
	// when set, a submitted count shows up in a single render and is then lost
	RevertAfterRender bool

	revertTo int
}

type fakeAssessment struct {
	// the begin control schoology shows, "#edit-start-test" or "#edit-resume-test"
	StartSelector string
	Attempts      int
}

// fakeSite is an in memory schoology web ui, every fakePage opened on it is its own
// session.
type fakeSite struct {
	mutex sync.Mutex

	passwords   map[string]string
	banks       map[string][]*fakeSet
	settings    map[string]map[string]string
	assessments map[string]*fakeAssessment

	pages []*fakePage
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		passwords:   map[string]string{},
		banks:       map[string][]*fakeSet{},
		settings:    map[string]map[string]string{},
		assessments: map[string]*fakeAssessment{},
	}
}

func desiredSettingValues() map[string]string {
	values := map[string]string{}
	for _, s := range desiredSettings {
		values[s.selector] = s.desired
	}
	return values
}

// addAssignment registers an assignment that is already configured as desired.
func (s *fakeSite) addAssignment(id string) {
	s.banks[id] = []*fakeSet{}
	s.settings[id] = desiredSettingValues()
	s.assessments[id] = &fakeAssessment{StartSelector: selectStartTest}
}

func (s *fakeSite) open(ctx context.Context) (browser.Page, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	page := &fakePage{
		site:     s,
		inputs:   map[string]string{},
		form:     map[string]string{},
		expanded: map[string]bool{},
	}
	s.pages = append(s.pages, page)
	return page, nil
}

var assignmentRouteRegex = regexp.MustCompile(`^/assignment/([^/]+)/(assessment_questions|assessment/settings|assessment)$`)
var rowSelectorRegex = regexp.MustCompile(`^tr\[id="([^"]+)"\] (.+)$`)

type fakePage struct {
	site *fakeSite

	current  string
	loggedIn string
	actions  []string
	closed   bool

	inputs   map[string]string
	form     map[string]string
	editing  string
	expanded map[string]bool
	step     int
}

func (p *fakePage) route() (kind, assignmentId string) {
	path := strings.TrimPrefix(p.current, testSite)
	if path == "/login" || path == "/home" {
		return path, ""
	}
	if strings.HasPrefix(path, "/question/") {
		return "/question", path
	}
	match := assignmentRouteRegex.FindStringSubmatch(path)
	if match == nil {
		return "", ""
	}
	return match[2], match[1]
}

func (p *fakePage) render() string {
	kind, id := p.route()
	if kind != "/login" && p.loggedIn == "" {
		return `<html><body><p>Access denied</p></body></html>`
	}

	var b strings.Builder
	b.WriteString("<html><body>")
	switch kind {
	case "/login":
		b.WriteString(`<form><input id="edit-mail"><input id="edit-pass" type="password"><input id="edit-submit" type="submit"></form>`)
	case "/home":
		b.WriteString(`<h1>Home</h1>`)
	case "/question":
		fmt.Fprintf(&b, `<h1>%s</h1>`, id)
	case "assessment_questions":
		p.renderQuestions(&b, id)
	case "assessment/settings":
		p.renderSettings(&b, id)
	case "assessment":
		p.renderAssessment(&b, id)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func (p *fakePage) renderQuestions(b *strings.Builder, id string) {
	b.WriteString(`<table>`)
	for _, set := range p.site.banks[id] {
		fmt.Fprintf(b, `<tr id="%s"><td class="component-main-cell"><div class="title">Set %s</div>`, set.RowId, set.RowId)
		if set.Total > 0 {
			fmt.Fprintf(b, "<span class=\"count\">%d of\n %d questions</span>", set.Included, set.Total)
		}
		b.WriteString(`<span class="action-links-unfold-text">Actions</span><a class="action-edit" href="#">Edit</a>`)
		if set.Random {
			b.WriteString(`<a class="random-qset-expander">Show questions</a>`)
			if p.expanded[set.RowId] {
				for _, q := range set.Questions {
					fmt.Fprintf(b, `<div class="random-qset-questions-list-row"><a class="action-edit-child" href="%s">Edit</a></div>`, q)
				}
			}
		}
		b.WriteString(`</td></tr>`)

		if set.revertTo >= 0 && set.RevertAfterRender && set.Included == set.Total {
			set.Included = set.revertTo
			set.revertTo = -1
		}
	}
	b.WriteString(`</table>`)
	if p.editing != "" {
		b.WriteString(`<form id="question-set-form"><input id="edit-question-count"><input id="edit-submit" type="submit"></form>`)
	}
}

func (p *fakePage) renderSettings(b *strings.Builder, id string) {
	b.WriteString(`<form>`)
	for _, s := range desiredSettings {
		value, ok := p.site.settings[id][s.selector]
		if !ok {
			continue
		}
		fmt.Fprintf(b, `<select id="%s">`, strings.TrimPrefix(s.selector, "#"))
		for _, option := range []string{"0", "1", "2"} {
			selected := ""
			if option == value {
				selected = " selected"
			}
			fmt.Fprintf(b, `<option value="%s"%s>%s</option>`, option, selected, option)
		}
		b.WriteString(`</select>`)
	}
	b.WriteString(`<input id="edit-submit" type="submit"></form>`)
}

func (p *fakePage) renderAssessment(b *strings.Builder, id string) {
	assessment := p.site.assessments[id]
	switch p.step {
	case 0:
		fmt.Fprintf(b, `<input id="%s" type="submit">`, strings.TrimPrefix(assessment.StartSelector, "#"))
	case 1:
		b.WriteString(`<div class="question">What is 2 + 2?</div><input id="edit-submit" type="submit" value="Review">`)
	case 2:
		b.WriteString(`<div class="review">1 question answered</div><input id="edit-submit" type="submit" value="Submit">`)
	case 3:
		b.WriteString(`<div class="popup"><button id="popup_confirm">Confirm</button></div>`)
	default:
		fmt.Fprintf(b, `<h1>Results for %s</h1>`, id)
	}
}

func (p *fakePage) doc() *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.render()))
	if err != nil {
		panic(err)
	}
	return doc
}

func (p *fakePage) require(selector string) error {
	if p.doc().Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	return nil
}

func (p *fakePage) record(action string) {
	p.actions = append(p.actions, action)
}

// mutations returns every recorded action that is not a read.
func (p *fakePage) mutations() []string {
	var out []string
	for _, a := range p.actions {
		if strings.HasPrefix(a, "navigate ") || strings.HasPrefix(a, "pdf") {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.site.mutex.Lock()
	defer p.site.mutex.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !strings.HasPrefix(url, testSite) {
		return fmt.Errorf("navigate to %s: unknown host", url)
	}
	p.record("navigate " + strings.TrimPrefix(url, testSite))
	p.current = url
	p.editing = ""
	p.form = map[string]string{}
	p.expanded = map[string]bool{}
	p.step = 0
	return nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	p.site.mutex.Lock()
	defer p.site.mutex.Unlock()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return p.render(), nil
}

func (p *fakePage) Has(ctx context.Context, selector string) (bool, error) {
	p.site.mutex.Lock()
	defer p.site.mutex.Unlock()
	return p.doc().Find(selector).Length() > 0, nil
}

func (p *fakePage) Input(ctx context.Context, selector, text string) error {
	p.site.mutex.Lock()
	defer p.site.mutex.Unlock()
	err := p.require(selector)
	if err != nil {
		return err
	}
	p.record(fmt.Sprintf("input %s %s", selector, text))
	p.inputs[selector] = text
	return nil
}

func (p *fakePage) Select(ctx context.Context, selector, value string) error {
	p.site.mutex.Lock()
	defer p.site.mutex.Unlock()
	err := p.require(selector)
	if err != nil {
		return err
	}
	p.record(fmt.Sprintf("select %s %s", selector, value))
	p.form[selector] = value
	return nil
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	p.site.mutex.Lock()
	defer p.site.mutex.Unlock()
	err := p.require(selector)
	if err != nil {
		return err
	}
	p.record("click " + selector)

	kind, id := p.route()
	switch kind {
	case "/login":
		email := p.inputs[selectLoginEmail]
		password, ok := p.site.passwords[email]
		if ok && password == p.inputs[selectLoginPassword] {
			p.loggedIn = email
			p.current = testSite + "/home"
		}
	case "assessment_questions":
		p.clickQuestions(selector, id)
	case "assessment/settings":
		if selector == selectFormSubmit {
			for k, v := range p.form {
				p.site.settings[id][k] = v
			}
			p.form = map[string]string{}
		}
	case "assessment":
		if p.step == 0 {
			p.site.assessments[id].Attempts++
		}
		p.step++
	}
	return nil
}

func (p *fakePage) clickQuestions(selector, id string) {
	if selector == selectFormSubmit && p.editing != "" {
		for _, set := range p.site.banks[id] {
			if set.RowId != p.editing || set.IgnoreSubmit {
				continue
			}
			count, err := strconv.Atoi(p.inputs[selectQuestionCount])
			if err != nil {
				panic(err)
			}
			set.revertTo = set.Included
			set.Included = count
		}
		p.editing = ""
		return
	}

	match := rowSelectorRegex.FindStringSubmatch(selector)
	if match == nil {
		return
	}
	switch match[2] {
	case selectSetEdit:
		p.editing = match[1]
	case selectSetExpander:
		p.expanded[match[1]] = true
	}
}

func (p *fakePage) PDF(ctx context.Context) ([]byte, error) {
	p.site.mutex.Lock()
	defer p.site.mutex.Unlock()
	p.record("pdf")
	return []byte("%PDF-1.4 " + strings.TrimPrefix(p.current, testSite)), nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}
