package contact

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

const maxPageBytes = 1 << 20

var websitePaths = []string{"", "/about", "/contact", "/resume", "/cv", "/pages/contact", "/pages/about"}

// Page is the contact data found on one web page
type Page struct {
	URL          string
	Emails       []string
	ContactURLs  []string
	SocialHandle string
}

// Fetcher loads and parses a web page
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Page, error)
}

// NopFetcher never finds anything
type NopFetcher struct{}

// Fetch implements Fetcher
func (NopFetcher) Fetch(context.Context, string) (*Page, error) { return &Page{}, nil }

// HTTPFetcher fetches pages over HTTP
type HTTPFetcher struct {
	client *http.Client
	policy *bluemonday.Policy
}

// NewHTTPFetcher returns a fetcher with a per-request timeout
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		policy: bluemonday.StrictPolicy(),
	}
}

// Fetch implements Fetcher
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "talentscope/1.0 (+contact research)")
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}
	return ParsePage(pageURL, body, f.policy)
}

// ParsePage extracts mailto links, profile links and emails in visible text
func ParsePage(pageURL string, body []byte, policy *bluemonday.Policy) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	page := &Page{URL: pageURL}
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if addr, ok := strings.CutPrefix(strings.ToLower(href), "mailto:"); ok {
			addr, _, _ = strings.Cut(addr, "?")
			if unescaped, err := url.PathUnescape(addr); err == nil {
				addr = unescaped
			}
			if IsValidEmail(addr) && !slices.Contains(page.Emails, addr) {
				page.Emails = append(page.Emails, addr)
			}
			return
		}
		hrefs = append(hrefs, href)
	})

	links := strings.Join(hrefs, " ")
	page.ContactURLs = ExtractContactURLs(links)
	page.SocialHandle = ExtractSocialHandle(links)

	if policy == nil {
		policy = bluemonday.StrictPolicy()
	}
	text := html.UnescapeString(string(policy.SanitizeBytes(body)))
	for _, e := range ExtractEmails(text) {
		if !slices.Contains(page.Emails, e) {
			page.Emails = append(page.Emails, e)
		}
	}
	return page, nil
}

// websiteStrategy scans the personal website linked from the profile
type websiteStrategy struct {
	fetcher Fetcher
	budget  time.Duration
}

func (s *websiteStrategy) Name() string { return SourceWebsite }

func (s *websiteStrategy) Attempt(ctx context.Context, subj *Subject) (*Partial, error) {
	if subj.Profile == nil || s.fetcher == nil {
		return &Partial{}, nil
	}
	base := strings.TrimRight(NormalizeWebsite(subj.Profile.Blog), "/")
	if base == "" {
		return &Partial{}, nil
	}

	parent := ctx
	if s.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.budget)
		defer cancel()
	}

	p := &Partial{}
	var attempted, failed int
	var lastErr error
	for _, path := range websitePaths {
		if ctx.Err() != nil {
			break
		}
		attempted++
		page, err := s.fetcher.Fetch(ctx, base+path)
		if err != nil {
			failed++
			lastErr = err
			continue
		}
		p.Emails = append(p.Emails, page.Emails...)
		p.ContactURLs = append(p.ContactURLs, page.ContactURLs...)
		if p.SocialHandle == "" {
			p.SocialHandle = page.SocialHandle
		}
		if len(p.Emails) > 0 {
			break
		}
	}

	if err := parent.Err(); err != nil {
		return p, err
	}
	if failed > 0 && failed == attempted {
		// budget expiry is a strategy failure, not a caller cancellation
		return p, fmt.Errorf("%d of %d pages failed: %v", failed, attempted, lastErr)
	}
	return p, nil
}
