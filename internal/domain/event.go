package domain

import "time"

// Commit is a commit authored in a repository
type Commit struct {
	SHA         string
	Repo        string
	AuthorLogin string
	AuthorName  string
	AuthorEmail string
	Message     string
	Date        time.Time
}

// Gist is a public gist with its file contents
type Gist struct {
	ID          string
	Description string
	Files       []GistFile
}

// GistFile is one file of a gist
type GistFile struct {
	Filename string
	Content  string
}

// PushCommit is a commit carried by a public push event
type PushCommit struct {
	Repo        string
	AuthorName  string
	AuthorEmail string
	Message     string
}

// PullRequest is a pull request opened against a repository
type PullRequest struct {
	Repo        string
	Number      int
	AuthorLogin string
	Title       string
	Body        string
	State       string // open, closed
}
