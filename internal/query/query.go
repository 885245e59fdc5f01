// Package query turns filter criteria into a user search query.
package query

import (
	"fmt"
	"strings"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
)

// Search ordering used by the scanner
const (
	SortByFollowers = "followers"
	OrderDesc       = "desc"
)

// Build returns the search query for the criteria.
//
// The search grammar ANDs every term, so only the first required language is
// included. Organizations are always excluded.
func Build(criteria domain.FilterCriteria) string {
	terms := make([]string, 0, 3)

	if lang := firstLanguage(criteria.Languages); lang != "" {
		terms = append(terms, "language:"+quote(lang))
	}

	terms = append(terms, "type:user")

	if criteria.MinFollowers > 0 {
		terms = append(terms, fmt.Sprintf("followers:>=%d", criteria.MinFollowers))
	}

	return strings.Join(terms, " ")
}

func firstLanguage(languages []string) string {
	for _, l := range languages {
		if l = strings.TrimSpace(l); l != "" {
			return strings.ToLower(l)
		}
	}
	return ""
}

func quote(v string) string {
	if strings.ContainsAny(v, " \t") {
		return `"` + v + `"`
	}
	return v
}
