// Package search implements the query engine: query decomposition, fuzzy
// scoring, multi-source fan-out with merge and deduplication, and the
// composite ranking that produces the final ordered result list.
package search

import (
	"github.com/skysift/skysift/internal/source"
)

// Options controls one Search call.
type Options struct {
	// DesiredCount is the requested number of results. Zero means the
	// configured default. It is a target, not a hard page size; the
	// engine follows remote pagination cursors to approach it.
	DesiredCount int

	// AccountScope restricts results to posts by this handle, in
	// addition to any from:/to: filters in the query itself.
	AccountScope string

	// Cursor resumes remote pagination from a prior call.
	Cursor string
}

// ScoredResult is one ranked candidate with its score breakdown.
type ScoredResult struct {
	Candidate    source.Candidate
	FuzzyScore   float64
	EmbedScore   float64
	PatternBonus float64
	Composite    float64
}

// Results is the ordered outcome of one Search call.
type Results struct {
	Items []ScoredResult

	// NextCursor is non-empty when the remote source has more pages.
	NextCursor string
}

// SourceState classifies how a source fared during one call.
type SourceState string

const (
	SourceOK      SourceState = "ok"
	SourceError   SourceState = "error"
	SourceSkipped SourceState = "skipped"
)

// SourceStatus records the per-call outcome for one source.
type SourceStatus struct {
	State SourceState
	// Err holds the failure detail when State is SourceError.
	Err error
	// Candidates is how many candidates the source contributed
	// before merging.
	Candidates int
}

// PerSourceStatus maps each consulted source to its outcome. Sources that
// were silently skipped (an unauthenticated remote) appear as
// SourceSkipped, never as errors.
type PerSourceStatus map[source.Origin]SourceStatus

// Failed reports whether every non-skipped source errored. Zero results
// from healthy sources is not a failure.
func (s PerSourceStatus) Failed() bool {
	sawActive := false
	for _, st := range s {
		switch st.State {
		case SourceOK:
			return false
		case SourceError:
			sawActive = true
		}
	}
	return sawActive
}
