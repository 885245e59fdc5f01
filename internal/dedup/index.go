// Package dedup holds the campaign-scoped identity index used to skip
// candidates that were already seen.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
)

// Loader reads the stored identity sets of a campaign
type Loader interface {
	LoadDeduplicationSets(ctx context.Context, campaign domain.Campaign) (*domain.DedupSets, error)
}

// Index is the set of normalized identities known in one campaign
type Index struct {
	mu          sync.RWMutex
	usernames   map[string]struct{}
	emails      map[string]struct{}
	contactURLs map[string]struct{}
}

// New returns an empty index
func New() *Index {
	return &Index{
		usernames:   make(map[string]struct{}),
		emails:      make(map[string]struct{}),
		contactURLs: make(map[string]struct{}),
	}
}

// Load builds an index from the campaign's stored identities
func Load(ctx context.Context, loader Loader, campaign domain.Campaign) (*Index, error) {
	idx := New()
	sets, err := loader.LoadDeduplicationSets(ctx, campaign)
	if err != nil {
		return idx, fmt.Errorf("failed to load dedup sets for campaign %s: %w", campaign.ID, err)
	}
	if sets == nil {
		return idx, nil
	}

	for _, u := range sets.Usernames {
		idx.add(idx.usernames, NormalizeUsername(u))
	}
	for _, e := range sets.Emails {
		idx.add(idx.emails, NormalizeEmail(e))
	}
	for _, u := range sets.ContactURLs {
		idx.add(idx.contactURLs, NormalizeURL(u))
	}
	return idx, nil
}

// IsKnownUsername is the cheap pre-check done before any analysis
func (i *Index) IsKnownUsername(username string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return contains(i.usernames, NormalizeUsername(username))
}

// IsKnown reports whether any field of the identity is already in the index
func (i *Index) IsKnown(id domain.CandidateIdentity) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return contains(i.usernames, NormalizeUsername(id.Username)) ||
		contains(i.emails, NormalizeEmail(id.Email)) ||
		contains(i.contactURLs, NormalizeURL(id.ContactURL))
}

// Record inserts every non-empty field of the identity
func (i *Index) Record(id domain.CandidateIdentity) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.add(i.usernames, NormalizeUsername(id.Username))
	i.add(i.emails, NormalizeEmail(id.Email))
	i.add(i.contactURLs, NormalizeURL(id.ContactURL))
}

// Len returns the number of known usernames
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.usernames)
}

func (i *Index) add(set map[string]struct{}, key string) {
	if key != "" {
		set[key] = struct{}{}
	}
}

func contains(set map[string]struct{}, key string) bool {
	if key == "" {
		return false
	}
	_, ok := set[key]
	return ok
}

// NormalizeUsername lower-cases and trims a username
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeURL lower-cases a profile URL and strips protocol, www and trailing slashes
func NormalizeURL(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimRight(s, "/")
}
