// Package source defines the search source boundary and ships the three
// reference collaborators: the local SQLite post store, the authenticated
// remote search API client, and the public profile directory client.
package source

import (
	"context"
	"errors"
	"time"
)

// Origin identifies which collaborator produced a candidate.
type Origin string

const (
	OriginLocal   Origin = "local"
	OriginRemote  Origin = "remote"
	OriginProfile Origin = "profile"
)

// ErrUnauthenticated is returned by the remote source when the session is
// missing or rejected. Distinct from zero results: the caller decides
// whether to skip silently or surface a status.
var ErrUnauthenticated = errors.New("source: unauthenticated")

// Candidate is one post (or profile rendered as a post) returned by a
// source. CanonicalID is stable across sources for the same underlying
// post and drives merge deduplication.
type Candidate struct {
	CanonicalID string
	Text        string
	Author      string
	CreatedAt   time.Time
	Likes       int64
	Reposts     int64
	Replies     int64
	Origin      Origin
}

// Query is one sub-query dispatched to a source.
type Query struct {
	// Term is the search text.
	Term string
	// Limit caps how many candidates the source returns.
	Limit int
	// Author restricts results to posts by this handle (hard filter).
	Author string
	// Cursor resumes pagination for sources that support it.
	Cursor string
}

// Result is a source's response to one Query.
type Result struct {
	Candidates []Candidate
	// NextCursor is non-empty when more pages exist.
	NextCursor string
}

// Searcher is the contract every search source implements.
type Searcher interface {
	// Origin identifies the source in per-source status reporting.
	Origin() Origin
	// Search returns candidates for the query. Implementations honor
	// ctx cancellation and never treat zero matches as an error.
	Search(ctx context.Context, q Query) (Result, error)
}

// Session carries the authenticated identity for the remote source.
type Session struct {
	// Handle is the authenticated account handle.
	Handle string
	// AccessToken is the bearer token presented to the remote API.
	AccessToken string
}

// Valid reports whether the session can authenticate requests.
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != ""
}
