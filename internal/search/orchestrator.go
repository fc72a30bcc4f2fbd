package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skysift/skysift/internal/source"
)

// maxRemotePages caps cursor-following per call so a generous desired
// count cannot turn into an unbounded crawl.
const maxRemotePages = 5

// authAware is implemented by sources that require a session. A source
// reporting false is skipped silently; the skip is not a failure.
type authAware interface {
	Authenticated() bool
}

// Orchestrator fans the query plan out to every relevant source, bounds
// each call with a timeout, and merges candidates by canonical id.
type Orchestrator struct {
	sources       []source.Searcher
	sourceTimeout time.Duration
	log           *slog.Logger
}

// NewOrchestrator wires the orchestrator over the given sources. Each
// (source, sub-query) call is independently bounded by sourceTimeout.
func NewOrchestrator(sources []source.Searcher, sourceTimeout time.Duration, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		sources:       sources,
		sourceTimeout: sourceTimeout,
		log:           log,
	}
}

// sourceOutcome collects one source's aggregate result across its
// sub-query calls.
type sourceOutcome struct {
	candidates []source.Candidate
	nextCursor string
	errs       []error
	calls      int
}

// Dispatch runs the fan-out and returns the merged candidate set, the
// per-source status map, and the remote continuation cursor. Soft
// failures never propagate as errors; the caller inspects the status map
// to detect total failure.
func (o *Orchestrator) Dispatch(ctx context.Context, plan *QueryPlan, opts Options) ([]source.Candidate, PerSourceStatus, string) {
	queries := o.buildQueries(plan, opts)
	status := make(PerSourceStatus, len(o.sources))
	outcomes := make(map[source.Origin]*sourceOutcome, len(o.sources))

	var mu sync.Mutex
	var g errgroup.Group

	for _, src := range o.sources {
		if aa, ok := src.(authAware); ok && !aa.Authenticated() {
			status[src.Origin()] = SourceStatus{State: SourceSkipped}
			continue
		}
		out := &sourceOutcome{}
		outcomes[src.Origin()] = out

		for _, q := range queries {
			if src.Origin() == source.OriginProfile && !profileRelevant(plan, q.Term) {
				continue
			}
			g.Go(func() error {
				o.runQuery(ctx, src, q, &mu, out)
				return nil
			})
		}
	}
	_ = g.Wait()

	merged := make(map[string]source.Candidate)
	var nextCursor string
	for origin, out := range outcomes {
		st := SourceStatus{State: SourceOK, Candidates: len(out.candidates)}
		if out.calls > 0 && len(out.errs) == out.calls {
			st = SourceStatus{State: SourceError, Err: out.errs[0]}
		}
		if out.calls == 0 {
			// Nothing was relevant to send; the source is healthy.
			st = SourceStatus{State: SourceOK}
		}
		status[origin] = st

		for _, c := range out.candidates {
			mergeCandidate(merged, c)
		}
		if out.nextCursor != "" {
			nextCursor = out.nextCursor
		}
	}

	flat := make([]source.Candidate, 0, len(merged))
	for _, c := range merged {
		flat = append(flat, c)
	}
	return flat, status, nextCursor
}

// runQuery executes one (source, sub-query) call. The remote source
// follows its pagination cursor toward the desired count.
func (o *Orchestrator) runQuery(ctx context.Context, src source.Searcher, q source.Query, mu *sync.Mutex, out *sourceOutcome) {
	mu.Lock()
	out.calls++
	mu.Unlock()

	var collected []source.Candidate
	var cursor string
	var lastErr error

	pages := 1
	if src.Origin() == source.OriginRemote {
		pages = maxRemotePages
	}

	for page := 0; page < pages; page++ {
		callCtx, cancel := context.WithTimeout(ctx, o.sourceTimeout)
		res, err := src.Search(callCtx, q)
		cancel()
		if err != nil {
			lastErr = err
			o.log.Debug("source call failed",
				"source", string(src.Origin()),
				"term", q.Term,
				"error", err)
			break
		}
		collected = append(collected, res.Candidates...)
		cursor = res.NextCursor
		if cursor == "" || len(collected) >= q.Limit {
			break
		}
		q.Cursor = cursor
	}

	mu.Lock()
	defer mu.Unlock()
	if lastErr != nil && len(collected) == 0 {
		out.errs = append(out.errs, lastErr)
		return
	}
	out.candidates = append(out.candidates, collected...)
	if cursor != "" {
		out.nextCursor = cursor
	}
}

// buildQueries derives the per-source sub-queries: the whole phrase plus
// each word and quoted sub-term. A plan that is only a hard filter still
// yields one empty-term query to enumerate the author's posts.
func (o *Orchestrator) buildQueries(plan *QueryPlan, opts Options) []source.Query {
	author := plan.FromAuthor
	if author == "" {
		author = opts.AccountScope
	}

	seen := make(map[string]struct{})
	var queries []source.Query
	add := func(term, cursor string) {
		key := strings.ToLower(term)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		queries = append(queries, source.Query{
			Term:   term,
			Limit:  opts.DesiredCount,
			Author: author,
			Cursor: cursor,
		})
	}

	// The whole phrase carries the continuation cursor: it is the one
	// stable sub-query across calls.
	if plan.WholePhrase != "" {
		add(plan.WholePhrase, opts.Cursor)
	}
	for _, t := range plan.SubTerms {
		if t.Kind == TermPattern {
			continue
		}
		add(t.Text, "")
	}
	if len(queries) == 0 && (plan.HasHardFilter() || author != "") {
		add("", opts.Cursor)
	}
	return queries
}

// profileRelevant reports whether a sub-term looks account or feed
// shaped: a leading @, a dotted handle, or any author filter in play.
func profileRelevant(plan *QueryPlan, term string) bool {
	if plan.HasHardFilter() {
		return true
	}
	if strings.HasPrefix(term, "@") {
		return true
	}
	return !strings.ContainsAny(term, " \t") && strings.Contains(term, ".")
}

// originRank orders sources for metadata precedence during merge.
func originRank(o source.Origin) int {
	switch o {
	case source.OriginRemote:
		return 2
	case source.OriginLocal:
		return 1
	default:
		return 0
	}
}

// mergeCandidate folds one candidate into the dedup map. When two
// sources return the same canonical id, the authoritative source's
// engagement metadata wins and the most complete text is kept.
func mergeCandidate(merged map[string]source.Candidate, c source.Candidate) {
	prev, ok := merged[c.CanonicalID]
	if !ok {
		merged[c.CanonicalID] = c
		return
	}

	hi, lo := prev, c
	if originRank(c.Origin) > originRank(prev.Origin) {
		hi, lo = c, prev
	}
	if len(lo.Text) > len(hi.Text) {
		hi.Text = lo.Text
	}
	if hi.Author == "" {
		hi.Author = lo.Author
	}
	if hi.CreatedAt.IsZero() {
		hi.CreatedAt = lo.CreatedAt
	}
	merged[c.CanonicalID] = hi
}
