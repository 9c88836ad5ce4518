package harvest

import (
	"fmt"
	"strings"
)

// element ids and url templates of the schoology web ui, everything that breaks when
// schoology changes its markup lives here.

const DefaultSite = "https://app.schoology.com"

const (
	selectLoginEmail    = "#edit-mail"
	selectLoginPassword = "#edit-pass"
	selectLoginSubmit   = "#edit-submit"

	selectQuestionSetCell   = "tr[id] .component-main-cell"
	selectSetMenu           = ".action-links-unfold-text"
	selectSetEdit           = ".action-edit"
	selectQuestionCount     = "#edit-question-count"
	selectSetExpander       = ".random-qset-expander"
	selectSetQuestionRow    = ".random-qset-questions-list-row"
	selectSetQuestionEdit   = ".action-edit-child"
	selectFormSubmit        = "#edit-submit"
	selectSettingRandomize  = "#edit-randomize"
	selectSettingAttempts   = "#edit-max-attempts"
	selectSettingView       = "#edit-student-view"
	selectSettingPaging     = "#edit-paging"
	selectSettingAvailable  = "#edit-availability"
	selectStartTest         = "#edit-start-test"
	selectResumeTest        = "#edit-resume-test"
	selectConfirmSubmission = "#popup_confirm"
)

// the begin control is tried in this order
var startSelectors = []string{selectStartTest, selectResumeTest}

type siteUrls struct {
	base string
}

func newSiteUrls(site string) siteUrls {
	if site == "" {
		site = DefaultSite
	}
	return siteUrls{base: strings.TrimSuffix(site, "/")}
}

func (s siteUrls) login() string {
	return s.base + "/login"
}

func (s siteUrls) questions(assignmentId string) string {
	return fmt.Sprintf("%s/assignment/%s/assessment_questions", s.base, assignmentId)
}

func (s siteUrls) settings(assignmentId string) string {
	return fmt.Sprintf("%s/assignment/%s/assessment/settings", s.base, assignmentId)
}

func (s siteUrls) assessment(assignmentId string) string {
	return fmt.Sprintf("%s/assignment/%s/assessment", s.base, assignmentId)
}

// inRow scopes a selector to the question set row with the given id.
func inRow(rowId, selector string) string {
	return fmt.Sprintf(`tr[id="%s"] %s`, rowId, selector)
}
