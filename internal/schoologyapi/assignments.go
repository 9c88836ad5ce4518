package schoologyapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	report_client_get_me          = "client.get-me"
	report_client_get_sections    = "client.get-sections"
	report_client_get_assignments = "client.get-assignments"
)

const pageLimit = 200

func (c *Client) getJSON(ctx context.Context, report, endpoint string, query map[string]string, out any) error {
	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(endpoint)
	if err != nil {
		c.tel.ReportBroken(report, fmt.Errorf("fetch: %w", err), endpoint)
		return fmt.Errorf("schoology api: %s: %w", endpoint, err)
	}
	err = checkStatus(res)
	if err != nil {
		c.tel.ReportBroken(report, err, endpoint)
		return fmt.Errorf("schoology api: %w", err)
	}
	err = json.Unmarshal(res.Body(), out)
	if err != nil {
		c.tel.ReportBroken(report, fmt.Errorf("unmarshal json: %w", err), endpoint)
		return fmt.Errorf("schoology api: %s: %w", endpoint, err)
	}
	return nil
}

func pageQuery(start int) map[string]string {
	return map[string]string{
		"start": strconv.Itoa(start),
		"limit": strconv.Itoa(pageLimit),
	}
}

// lastPage reports whether paging is done after a page of pageSize items brought the
// running count to seen. Responses without a total keep paging until a short page.
func lastPage(seen, pageSize int, total count) bool {
	if pageSize == 0 {
		return true
	}
	if total > 0 {
		return seen >= int(total)
	}
	return pageSize < pageLimit
}

// Me returns the user the consumer key belongs to.
func (c *Client) Me(ctx context.Context) (User, error) {
	var user User
	err := c.getJSON(ctx, report_client_get_me, "/users/me", nil, &user)
	if err != nil {
		return User{}, err
	}
	if user.UID == "" {
		err := fmt.Errorf("schoology api: /users/me: response has no uid")
		c.tel.ReportBroken(report_client_get_me, err)
		return User{}, err
	}
	return user, nil
}

// Sections returns every course section the user is enrolled in.
func (c *Client) Sections(ctx context.Context, uid ID) ([]Section, error) {
	endpoint := fmt.Sprintf("/users/%s/sections", uid)

	var sections []Section
	for {
		var page sectionsResponse
		err := c.getJSON(ctx, report_client_get_sections, endpoint, pageQuery(len(sections)), &page)
		if err != nil {
			return nil, err
		}
		sections = append(sections, page.Section...)
		if lastPage(len(sections), len(page.Section), page.Total) {
			break
		}
	}

	c.tel.ReportDebug(report_client_get_sections, uid, len(sections))
	return sections, nil
}

// Assignments returns every assignment of a section.
func (c *Client) Assignments(ctx context.Context, sectionId ID) ([]Assignment, error) {
	endpoint := fmt.Sprintf("/sections/%s/assignments", sectionId)

	var assignments []Assignment
	for {
		var page assignmentsResponse
		err := c.getJSON(ctx, report_client_get_assignments, endpoint, pageQuery(len(assignments)), &page)
		if err != nil {
			return nil, err
		}
		for _, a := range page.Assignment {
			a.SectionID = sectionId
			assignments = append(assignments, a)
		}
		if lastPage(len(assignments), len(page.Assignment), page.Total) {
			break
		}
	}

	c.tel.ReportDebug(report_client_get_assignments, sectionId, len(assignments))
	return assignments, nil
}

// ListAssignments resolves the current user, then lists the assignments of every section
// they belong to. An assignment shared by several sections is returned once, in the
// position it was first seen.
func (c *Client) ListAssignments(ctx context.Context) ([]Assignment, error) {
	me, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}
	sections, err := c.Sections(ctx, me.UID)
	if err != nil {
		return nil, err
	}

	var all []Assignment
	for _, section := range sections {
		assignments, err := c.Assignments(ctx, section.ID)
		if err != nil {
			return nil, err
		}
		all = append(all, assignments...)
	}

	unique := Dedupe(all)
	c.tel.ReportCount("assignments", int64(len(unique)))
	return unique, nil
}

// Dedupe removes assignments with an id that was already seen, keeping order.
func Dedupe(assignments []Assignment) []Assignment {
	seen := make(map[ID]struct{}, len(assignments))
	out := make([]Assignment, 0, len(assignments))
	for _, a := range assignments {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}
