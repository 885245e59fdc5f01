package contact

import (
	"regexp"
	"slices"
	"strings"
)

var (
	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	validEmail      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	linkedinPattern = regexp.MustCompile(`(?i)linkedin\.com/in/([a-zA-Z0-9_-]+)`)
	twitterPattern  = regexp.MustCompile(`(?i)(?:^|[^a-z0-9.])(?:www\.)?(?:twitter|x)\.com/([A-Za-z0-9_]{1,15})\b`)
)

// addresses that are never a person's inbox
var denyFragments = []string{
	"noreply",
	"no-reply",
	"donotreply",
	"do-not-reply",
	"localhost",
	"example.com",
	"example.org",
	"example.net",
	"dummy",
	"fake",
	"@github.com",
	"@gitlab.com",
	"@bitbucket.org",
	"users.noreply.github.com",
}

var imageSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico"}

var reservedSocialPaths = map[string]bool{
	"intent": true, "share": true, "home": true, "search": true, "hashtag": true, "i": true,
}

// IsValidEmail checks the address format and rejects placeholder, noreply
// and platform-internal addresses.
func IsValidEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validEmail.MatchString(email) {
		return false
	}
	for _, f := range denyFragments {
		if strings.Contains(email, f) {
			return false
		}
	}
	for _, s := range imageSuffixes {
		if strings.HasSuffix(email, s) {
			return false
		}
	}

	local, domain, _ := strings.Cut(email, "@")
	if local == "test" || strings.HasPrefix(domain, "test.") {
		return false
	}
	return true
}

// ExtractEmails returns the valid addresses in text, lower-cased, in order of appearance
func ExtractEmails(text string) []string {
	var out []string
	for _, m := range emailPattern.FindAllString(text, -1) {
		m = strings.ToLower(strings.Trim(m, "."))
		if IsValidEmail(m) && !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}

// ExtractContactURLs returns canonical professional-profile URLs found in text
func ExtractContactURLs(text string) []string {
	var out []string
	for _, m := range linkedinPattern.FindAllStringSubmatch(text, -1) {
		u := ContactURL(m[1])
		if !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	return out
}

// ContactURL builds the canonical professional-profile URL for a handle
func ContactURL(handle string) string {
	return "https://www.linkedin.com/in/" + strings.ToLower(strings.Trim(handle, "-"))
}

// ExtractSocialHandle returns the first social handle linked from text
func ExtractSocialHandle(text string) string {
	for _, m := range twitterPattern.FindAllStringSubmatch(text, -1) {
		if !reservedSocialPaths[strings.ToLower(m[1])] {
			return m[1]
		}
	}
	return ""
}

// NormalizeWebsite turns a profile blog value into an absolute URL, or ""
// when it only points at a social or professional profile.
func NormalizeWebsite(blog string) string {
	blog = strings.TrimSpace(blog)
	if blog == "" {
		return ""
	}
	lower := strings.ToLower(blog)
	if linkedinPattern.MatchString(lower) || twitterPattern.MatchString(" "+lower) {
		return ""
	}
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		blog = "https://" + blog
	}
	return blog
}
