package schoologyapi

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

const DefaultMatchThreshold = 0.85

var whitespaceRegex = regexp.MustCompile(`\s+`)

func normalizeTitle(title string) string {
	title = strings.ToLower(title)
	title = strings.TrimSpace(title)
	return whitespaceRegex.ReplaceAllString(title, " ")
}

// FilterByTitle keeps the assignments whose title contains query or is similar enough
// to it (jaro-winkler >= threshold). An empty query keeps everything.
func FilterByTitle(assignments []Assignment, query string, threshold float64) []Assignment {
	query = normalizeTitle(query)
	if query == "" {
		return assignments
	}
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}

	var out []Assignment
	for _, a := range assignments {
		title := normalizeTitle(a.Title)
		if strings.Contains(title, query) ||
			matchr.JaroWinkler(title, query, false) >= threshold {
			out = append(out, a)
		}
	}
	return out
}
