package domain

import (
	"strings"
	"time"
)

// Account is a code-hosting account profile
type Account struct {
	ID              int64
	Login           string
	Type            string // "User", "Organization" or "Bot"
	Name            string
	Company         string
	Blog            string
	Location        string
	Email           string
	Bio             string
	TwitterUsername string
	HTMLURL         string
	Hireable        bool
	Followers       int
	Following       int
	PublicRepos     int
	PublicGists     int
}

// IsIndividual reports whether the account belongs to a person
func (a *Account) IsIndividual() bool {
	return a.Type == "" || strings.EqualFold(a.Type, "User")
}

// Repository represents a repository owned by a candidate
type Repository struct {
	Owner       string
	Name        string
	FullName    string
	Description string
	Fork        bool
	Stars       int
	Forks       int
	Language    string
	PushedAt    time.Time
}

// SearchPage is one page of user search results
type SearchPage struct {
	Total    int
	Accounts []*Account
}
