package search

import (
	"cmp"
	"runtime"
	"slices"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/skysift/skysift/internal/embed"
	skyerrors "github.com/skysift/skysift/internal/errors"
	"github.com/skysift/skysift/internal/source"
	"github.com/skysift/skysift/internal/token"
)

// Ranker computes composite scores and produces the final ordered result
// list. Candidate embeddings run on a shared worker pool; the model state
// underneath is immutable, so scoring is safely parallel.
type Ranker struct {
	tokenizer *token.Tokenizer
	embedder  *embed.Embedder
	cache     *embed.Cache
	pool      *ants.Pool

	wFuzzy       float64
	wEmbed       float64
	patternBonus float64
}

// NewRanker builds a ranker with the given scoring weights. workers <= 0
// sizes the pool to the number of CPUs.
func NewRanker(tok *token.Tokenizer, emb *embed.Embedder, cache *embed.Cache, wFuzzy, wEmbed, patternBonus float64, workers int) (*Ranker, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, skyerrors.Wrap(err, skyerrors.ErrCodeInternal, "creating ranking worker pool")
	}
	return &Ranker{
		tokenizer:    tok,
		embedder:     emb,
		cache:        cache,
		pool:         pool,
		wFuzzy:       wFuzzy,
		wEmbed:       wEmbed,
		patternBonus: patternBonus,
	}, nil
}

// Close releases the worker pool.
func (r *Ranker) Close() {
	r.pool.Release()
}

// EmbedQuery embeds the plan's whole phrase once per call.
func (r *Ranker) EmbedQuery(plan *QueryPlan) []float32 {
	return r.embedder.Embed(r.tokenizer.Tokenize(plan.WholePhrase))
}

// Rank scores every admitted candidate, sorts descending by composite
// score with recency then canonical id breaking ties, and truncates to
// limit.
func (r *Ranker) Rank(scorer *Scorer, queryVec []float32, candidates []source.Candidate, limit int) []ScoredResult {
	admitted := candidates[:0:0]
	for _, c := range candidates {
		if scorer.Admit(c) {
			admitted = append(admitted, c)
		}
	}

	results := make([]ScoredResult, len(admitted))
	var wg sync.WaitGroup
	for i, c := range admitted {
		wg.Add(1)
		score := func() {
			defer wg.Done()
			results[i] = r.scoreOne(scorer, queryVec, c)
		}
		if err := r.pool.Submit(score); err != nil {
			// Pool unavailable; score inline.
			score()
		}
	}
	wg.Wait()

	slices.SortFunc(results, compareScored)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (r *Ranker) scoreOne(scorer *Scorer, queryVec []float32, c source.Candidate) ScoredResult {
	fuzzy, hits := scorer.Score(c)
	sim := float64(embed.Similarity(queryVec, r.candidateVector(c)))
	bonus := hits * r.patternBonus
	return ScoredResult{
		Candidate:    c,
		FuzzyScore:   fuzzy,
		EmbedScore:   sim,
		PatternBonus: bonus,
		Composite:    r.wFuzzy*fuzzy + r.wEmbed*sim + bonus,
	}
}

// candidateVector embeds the candidate text, memoized by canonical id.
func (r *Ranker) candidateVector(c source.Candidate) []float32 {
	if vec, ok := r.cache.Get(c.CanonicalID); ok {
		return vec
	}
	vec := r.embedder.Embed(r.tokenizer.Tokenize(c.Text))
	r.cache.Add(c.CanonicalID, vec)
	return vec
}

// compareScored orders by composite descending, then newer first, then
// canonical id ascending so equal inputs always produce equal output.
func compareScored(a, b ScoredResult) int {
	if c := cmp.Compare(b.Composite, a.Composite); c != 0 {
		return c
	}
	if !a.Candidate.CreatedAt.Equal(b.Candidate.CreatedAt) {
		if a.Candidate.CreatedAt.After(b.Candidate.CreatedAt) {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.Candidate.CanonicalID, b.Candidate.CanonicalID)
}
