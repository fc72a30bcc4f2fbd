package search

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// TermKind classifies a sub-term for scoring precedence.
type TermKind int

const (
	// TermWord is a plain word outside quotes.
	TermWord TermKind = iota
	// TermQuoted originated from a quoted query span and is matched as
	// an atomic literal phrase.
	TermQuoted
	// TermPattern is the textual residue of a special pattern, matched
	// as a low-weight fuzzy fallback alongside its structural match.
	TermPattern
)

// SubTerm is one unit of the query plan consumed by the fuzzy scorer and
// dispatched to sources.
type SubTerm struct {
	Text string
	Kind TermKind
}

// DateRange is a detected date or datetime constraint. A bare literal
// covers the whole day it names.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// QueryPlan is the decomposed form of one query string. Built once per
// call, immutable afterwards.
type QueryPlan struct {
	// Raw is the original query text.
	Raw string

	// WholePhrase is the query with hard filters and special patterns
	// removed, used as one sub-query and as the embedding input.
	WholePhrase string

	// SubTerms are the fuzzy-scored units: the whole phrase, quoted
	// spans kept atomic, significant words, and pattern fallbacks.
	SubTerms []SubTerm

	// Regexes are the compiled /.../ patterns.
	Regexes []*regexp.Regexp

	// DateRanges are the detected date literals and ranges.
	DateRanges []DateRange

	// FromAuthor and ToAuthor are hard author filters. Candidates not
	// matching are excluded, never merely down-ranked.
	FromAuthor string
	ToAuthor   string

	// ScopeAuthor is the caller's account scope, enforced exactly like
	// FromAuthor. Set from the search options, not the query text, so
	// it holds even against sources that ignore the author hint.
	ScopeAuthor string
}

// HasHardFilter reports whether the plan carries an author hard filter.
func (p *QueryPlan) HasHardFilter() bool {
	return p.FromAuthor != "" || p.ToAuthor != "" || p.ScopeAuthor != ""
}

// segment is one whitespace-or-quote delimited piece of the raw query.
type segment struct {
	text   string
	quoted bool
}

// BuildPlan decomposes a query string. Stoplist entries are lowercase;
// matching against them is case-insensitive. An empty query yields a plan
// with no sub-terms.
func BuildPlan(query string, stoplist []string) *QueryPlan {
	plan := &QueryPlan{Raw: query}

	stop := make(map[string]struct{}, len(stoplist))
	for _, w := range stoplist {
		stop[w] = struct{}{}
	}

	var phraseParts []string
	seen := make(map[string]struct{})
	addTerm := func(text string, kind TermKind) {
		if text == "" {
			return
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		plan.SubTerms = append(plan.SubTerms, SubTerm{Text: text, Kind: kind})
	}

	for _, seg := range splitSegments(query) {
		if seg.quoted {
			addTerm(seg.text, TermQuoted)
			phraseParts = append(phraseParts, seg.text)
			continue
		}

		switch {
		case parseAuthorFilter(seg.text, "from:", &plan.FromAuthor),
			parseAuthorFilter(seg.text, "to:", &plan.ToAuthor):
			// Hard filter, not a scored term.
		case parseRegex(seg.text, plan):
			addTerm(strings.Trim(seg.text, "/"), TermPattern)
		case parseDate(seg.text, plan):
			addTerm(seg.text, TermPattern)
		default:
			if _, stopped := stop[strings.ToLower(seg.text)]; !stopped {
				addTerm(seg.text, TermWord)
			}
			phraseParts = append(phraseParts, seg.text)
		}
	}

	plan.WholePhrase = strings.Join(phraseParts, " ")
	if len(phraseParts) > 1 {
		// Prepend so the whole phrase is scored ahead of its words.
		whole := SubTerm{Text: plan.WholePhrase, Kind: TermWord}
		if _, dup := seen[strings.ToLower(whole.Text)]; !dup {
			plan.SubTerms = append([]SubTerm{whole}, plan.SubTerms...)
		}
	}
	return plan
}

// splitSegments breaks the query on whitespace while keeping quoted spans
// atomic. Both double and single quotes delimit a phrase, but a quote
// opens one only at a word boundary, so apostrophes inside words stay
// literal. An unclosed quote is a literal character, not a syntax error.
func splitSegments(query string) []segment {
	var segs []segment
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			segs = append(segs, segment{text: cur.String()})
			cur.Reset()
		}
	}

	runes := []rune(query)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if (r == '"' || r == '\'') && cur.Len() == 0 {
			if end := closingQuote(runes, i, r); end > i {
				segs = append(segs, segment{text: string(runes[i+1 : end]), quoted: true})
				i = end
				continue
			}
			// No closing quote: fall through as a literal.
			cur.WriteRune(r)
			continue
		}
		if unicode.IsSpace(r) {
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	flush()
	return segs
}

// closingQuote returns the index of the matching closing quote after
// start, or -1 when unclosed.
func closingQuote(runes []rune, start int, quote rune) int {
	for i := start + 1; i < len(runes); i++ {
		if runes[i] == quote {
			return i
		}
	}
	return -1
}

// parseAuthorFilter extracts a from:/to: handle into dst. A bare prefix
// with no handle is left alone and treated as a plain word.
func parseAuthorFilter(text, prefix string, dst *string) bool {
	if len(text) <= len(prefix) {
		return false
	}
	if !strings.EqualFold(text[:len(prefix)], prefix) {
		return false
	}
	handle := strings.TrimPrefix(text[len(prefix):], "@")
	if handle == "" {
		return false
	}
	*dst = handle
	return true
}

// parseRegex compiles a /.../ term. A pattern that fails to compile is
// not a regex; it stays a plain word.
func parseRegex(text string, plan *QueryPlan) bool {
	if len(text) < 3 || text[0] != '/' || text[len(text)-1] != '/' {
		return false
	}
	re, err := regexp.Compile(text[1 : len(text)-1])
	if err != nil {
		return false
	}
	plan.Regexes = append(plan.Regexes, re)
	return true
}

// parseDate recognizes date literals, RFC3339 datetimes, and .. ranges.
func parseDate(text string, plan *QueryPlan) bool {
	if from, to, ok := strings.Cut(text, ".."); ok {
		lo, okFrom := parseDatePoint(from)
		hi, okTo := parseDatePoint(to)
		if !okFrom && !okTo {
			return false
		}
		r := DateRange{From: lo.start, To: hi.end}
		if !okFrom {
			r.From = time.Time{}
		}
		if !okTo {
			r.To = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
		}
		plan.DateRanges = append(plan.DateRanges, r)
		return true
	}

	p, ok := parseDatePoint(text)
	if !ok {
		return false
	}
	plan.DateRanges = append(plan.DateRanges, DateRange{From: p.start, To: p.end})
	return true
}

// datePoint is one parsed date or datetime with the span it covers: a
// bare date covers its whole day, a datetime covers the single instant.
type datePoint struct {
	start time.Time
	end   time.Time
}

func parseDatePoint(text string) (datePoint, bool) {
	if text == "" {
		return datePoint{}, false
	}
	if t, err := time.Parse("2006-01-02", text); err == nil {
		return datePoint{start: t, end: t.AddDate(0, 0, 1)}, true
	}
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		t = t.UTC()
		return datePoint{start: t, end: t.Add(time.Second)}, true
	}
	return datePoint{}, false
}
