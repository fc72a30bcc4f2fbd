package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/skysift/skysift/internal/config"
	"github.com/skysift/skysift/internal/search"
	"github.com/skysift/skysift/internal/source"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	from   string
	cursor string
	format string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search posts and profiles",
		Long: `Search the local store and configured remote sources.

Queries support quoted phrases, /regex/ patterns, date literals and
ranges (2026-03-01..2026-03-04), and from:/to: author filters.

Examples:
  skysift search "rising seas"
  skysift search 'from:alice.example climate' --limit 5
  skysift search '/cli(mate)?/ 2026-03-01..' --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 uses the configured default)")
	cmd.Flags().StringVar(&opts.from, "from", "", "Restrict to posts by this handle")
	cmd.Flags().StringVar(&opts.cursor, "cursor", "", "Resume remote pagination from a prior call")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	sources, closeSources, err := buildSources(cfg)
	if err != nil {
		return err
	}
	defer closeSources()

	eng, err := search.NewEngine(cfg, slog.Default(), sources)
	if err != nil {
		return err
	}
	defer eng.Close()

	slog.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))
	res, status, err := eng.Search(ctx, query, search.Options{
		DesiredCount: opts.limit,
		AccountScope: opts.from,
		Cursor:       opts.cursor,
	})
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.Int("results", len(res.Items)))

	if opts.format == "json" {
		return renderJSON(cmd, res, status)
	}
	renderText(cmd, res, status)
	return nil
}

// buildSources wires the configured collaborators. The local store always
// runs; remote and profile sources require an endpoint. The remote
// session comes from the environment so credentials never live in config
// files.
func buildSources(cfg *config.Config) ([]source.Searcher, func(), error) {
	var sources []source.Searcher
	var closers []func()

	local, err := source.OpenLocal(cfg.Sources.Local.DBPath)
	if err != nil {
		return nil, nil, err
	}
	sources = append(sources, local)
	closers = append(closers, func() { _ = local.Close() })

	if cfg.Sources.Remote.Endpoint != "" {
		session := sessionFromEnv()
		sources = append(sources, source.NewRemoteSearch(
			cfg.Sources.Remote.Endpoint, session,
			source.WithRateLimit(cfg.Sources.Remote.RatePerSec, cfg.Sources.Remote.Burst)))
	}
	if cfg.Sources.Profile.Endpoint != "" {
		sources = append(sources, source.NewProfileSearch(cfg.Sources.Profile.Endpoint, nil))
	}

	return sources, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

// sessionFromEnv reads the remote credentials. Missing credentials mean
// the remote source is skipped silently, not an error.
func sessionFromEnv() *source.Session {
	tok := os.Getenv("SKYSIFT_ACCESS_TOKEN")
	if tok == "" {
		return nil
	}
	return &source.Session{
		Handle:      os.Getenv("SKYSIFT_HANDLE"),
		AccessToken: tok,
	}
}

// searchStyles is the text renderer's palette. Plain styles when stdout
// is not a terminal.
type searchStyles struct {
	header lipgloss.Style
	author lipgloss.Style
	meta   lipgloss.Style
	warn   lipgloss.Style
}

func newSearchStyles() searchStyles {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return searchStyles{}
	}
	return searchStyles{
		header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		author: lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		meta:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
	}
}

func renderText(cmd *cobra.Command, res search.Results, status search.PerSourceStatus) {
	st := newSearchStyles()
	out := cmd.OutOrStdout()

	if len(res.Items) == 0 {
		fmt.Fprintln(out, "No results.")
	}
	for i, item := range res.Items {
		c := item.Candidate
		fmt.Fprintf(out, "%s %s\n",
			st.header.Render(fmt.Sprintf("%2d.", i+1)),
			c.Text)
		fmt.Fprintf(out, "    %s %s\n",
			st.author.Render("@"+c.Author),
			st.meta.Render(fmt.Sprintf("%s · score %.3f · %s",
				c.CreatedAt.Format(time.DateTime), item.Composite, c.Origin)))
	}

	for origin, s := range status {
		if s.State == search.SourceError {
			fmt.Fprintln(out, st.warn.Render(
				fmt.Sprintf("warning: %s source failed: %v", origin, s.Err)))
		}
	}
	if res.NextCursor != "" {
		fmt.Fprintf(out, "%s\n", st.meta.Render("more available: --cursor "+res.NextCursor))
	}
}

// jsonResult is the machine-readable shape of one result.
type jsonResult struct {
	CanonicalID string    `json:"canonical_id"`
	Text        string    `json:"text"`
	Author      string    `json:"author"`
	CreatedAt   time.Time `json:"created_at"`
	Origin      string    `json:"origin"`
	Fuzzy       float64   `json:"fuzzy_score"`
	Embed       float64   `json:"embed_score"`
	Bonus       float64   `json:"pattern_bonus"`
	Composite   float64   `json:"composite_score"`
}

type jsonOutput struct {
	Results    []jsonResult      `json:"results"`
	Sources    map[string]string `json:"sources"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

func renderJSON(cmd *cobra.Command, res search.Results, status search.PerSourceStatus) error {
	out := jsonOutput{
		Results:    make([]jsonResult, 0, len(res.Items)),
		Sources:    make(map[string]string, len(status)),
		NextCursor: res.NextCursor,
	}
	for _, item := range res.Items {
		c := item.Candidate
		out.Results = append(out.Results, jsonResult{
			CanonicalID: c.CanonicalID,
			Text:        c.Text,
			Author:      c.Author,
			CreatedAt:   c.CreatedAt,
			Origin:      string(c.Origin),
			Fuzzy:       item.FuzzyScore,
			Embed:       item.EmbedScore,
			Bonus:       item.PatternBonus,
			Composite:   item.Composite,
		})
	}
	for origin, s := range status {
		out.Sources[string(origin)] = string(s.State)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
