package analyzer

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
)

var genericRepoKeywords = []string{
	"todo", "calculator", "weather", "clone", "tutorial", "test", "demo", "sample",
	"example", "hello", "app-example", "hello-world", "learning", "practice", "course",
}

var appStoreKeywords = []string{
	"play.google.com", "apps.apple.com", "play store", "app store", "google play", "itunes", "appstore",
}

var appStoreURL = regexp.MustCompile(`https?://(play\.google\.com|apps\.apple\.com)[^\s)"\]>]*`)

// IsGenericName reports whether a repository name looks like tutorial material
func IsGenericName(name string) bool {
	name = strings.ToLower(name)
	for _, k := range genericRepoKeywords {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}

// IsBootcampProfile reports whether the repositories are dominated by
// forked, generically named tutorial projects.
func IsBootcampProfile(repos []*domain.Repository) bool {
	if len(repos) < 5 {
		return false
	}

	var forks, generic int
	for _, r := range repos {
		if r.Fork {
			forks++
		}
		if IsGenericName(r.Name) {
			generic++
		}
	}
	total := float64(len(repos))
	return float64(forks)/total > 0.8 && float64(generic)/total > 0.5
}

// OriginalityRatio is the percentage of repositories that are not forks; 0 for none
func OriginalityRatio(repos []*domain.Repository) float64 {
	if len(repos) == 0 {
		return 0
	}
	var originals int
	for _, r := range repos {
		if !r.Fork {
			originals++
		}
	}
	return float64(originals) / float64(len(repos)) * 100
}

// DetectAppStore looks for a store link or store mention in text. A mention
// without a link is still a signal, with an empty URL.
func DetectAppStore(text string) (found bool, url string) {
	if m := appStoreURL.FindString(text); m != "" {
		return true, m
	}
	lower := strings.ToLower(text)
	for _, k := range appStoreKeywords {
		if strings.Contains(lower, k) {
			return true, ""
		}
	}
	return false, ""
}

// DetectLanguages ranks the languages of the original repositories by
// frequency, falling back to all repositories when none are original.
func DetectLanguages(repos []*domain.Repository) []string {
	counts := make(map[string]int)
	for _, r := range repos {
		if !r.Fork && r.Language != "" {
			counts[r.Language]++
		}
	}
	if len(counts) == 0 {
		for _, r := range repos {
			if r.Language != "" {
				counts[r.Language]++
			}
		}
	}

	langs := make([]string, 0, len(counts))
	for l := range counts {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool {
		if counts[langs[i]] != counts[langs[j]] {
			return counts[langs[i]] > counts[langs[j]]
		}
		return langs[i] < langs[j]
	})
	return langs
}

// MatchesLanguages reports whether any detected language satisfies a
// required one. A required value like "flutter/dart" matches each of its
// words. No requirement matches everything.
func MatchesLanguages(required, detected []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, req := range required {
		req = strings.ToLower(strings.TrimSpace(req))
		if req == "" {
			continue
		}
		words := strings.FieldsFunc(req, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#' && r != '-'
		})
		for _, d := range detected {
			d = strings.ToLower(d)
			if d == req {
				return true
			}
			for _, w := range words {
				if w == d {
					return true
				}
			}
		}
	}
	return false
}
