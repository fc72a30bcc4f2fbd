package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/skysift/skysift/internal/config"
	"github.com/skysift/skysift/internal/embed"
	skyerrors "github.com/skysift/skysift/internal/errors"
	"github.com/skysift/skysift/internal/model"
	"github.com/skysift/skysift/internal/source"
	"github.com/skysift/skysift/internal/token"
)

// Engine is the top-level search surface. The model artifacts are loaded
// once at construction and shared read-only by every call; a malformed
// artifact refuses to start rather than serve degraded results.
type Engine struct {
	cfg   *config.Config
	log   *slog.Logger
	table *embed.Table

	ranker       *Ranker
	orchestrator *Orchestrator
}

// NewEngine loads the vocabulary, normalization rules, and embedding
// table named in the config and wires the pipeline over the given
// sources. Any artifact failure is fatal.
func NewEngine(cfg *config.Config, log *slog.Logger, sources []source.Searcher) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}

	vocab, err := model.LoadVocabulary(cfg.Artifacts.VocabPath)
	if err != nil {
		return nil, err
	}
	rules, err := token.LoadRules(cfg.Artifacts.RulesPath)
	if err != nil {
		return nil, err
	}
	table, err := embed.OpenTable(cfg.Artifacts.EmbeddingPath)
	if err != nil {
		return nil, err
	}

	eng, err := assemble(cfg, log, vocab, rules, table, sources)
	if err != nil {
		_ = table.Close()
		return nil, err
	}
	return eng, nil
}

// assemble wires the pipeline from already-loaded artifacts. Split out so
// tests can build an engine over in-memory artifacts.
func assemble(cfg *config.Config, log *slog.Logger, vocab *model.Vocabulary, rules *token.RuleTable, table *embed.Table, sources []source.Searcher) (*Engine, error) {
	embedder, err := embed.NewEmbedder(table, vocab.Size())
	if err != nil {
		return nil, err
	}
	cache, err := embed.NewCache(cfg.Search.EmbedCacheSize)
	if err != nil {
		return nil, err
	}

	tok := token.NewTokenizer(vocab, token.NewNormalizer(rules))
	ranker, err := NewRanker(tok, embedder, cache,
		cfg.Scoring.FuzzyWeight, cfg.Scoring.EmbedWeight, cfg.Scoring.PatternBonus,
		cfg.Search.RankWorkers)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:          cfg,
		log:          log,
		table:        table,
		ranker:       ranker,
		orchestrator: NewOrchestrator(sources, cfg.Search.SourceTimeout.Std(), log),
	}, nil
}

// Close releases the worker pool and the embedding mapping.
func (e *Engine) Close() error {
	e.ranker.Close()
	return e.table.Close()
}

// Search decomposes the query, fans out to the sources under the overall
// deadline, and returns the ranked, deduplicated results together with
// the per-source status map. An empty query yields an empty, well-formed
// result set. The call errors only when every source failed.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (Results, PerSourceStatus, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Results{}, PerSourceStatus{}, nil
	}

	count := opts.DesiredCount
	if count <= 0 {
		count = e.cfg.Search.DefaultCount
	}
	if count > e.cfg.Search.MaxCount {
		count = e.cfg.Search.MaxCount
	}
	opts.DesiredCount = count

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Search.OverallTimeout.Std())
	defer cancel()

	plan := BuildPlan(query, e.cfg.Search.Stoplist)
	plan.ScopeAuthor = opts.AccountScope
	scorer := NewScorer(plan)
	queryVec := e.ranker.EmbedQuery(plan)

	candidates, status, nextCursor := e.orchestrator.Dispatch(ctx, plan, opts)
	if status.Failed() {
		return Results{}, status, skyerrors.New(skyerrors.ErrCodeSearchUnavailable,
			"search unavailable: every source failed")
	}

	items := e.ranker.Rank(scorer, queryVec, candidates, count)
	e.log.Debug("search complete",
		"query", query,
		"candidates", len(candidates),
		"results", len(items))

	return Results{Items: items, NextCursor: nextCursor}, status, nil
}
