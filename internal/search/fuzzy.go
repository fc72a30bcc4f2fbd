package search

import (
	"strings"

	"github.com/skysift/skysift/internal/source"
)

// Score classes. Quoted-literal hits strictly dominate every generic
// class; within generic matching, a full word beats a word prefix, which
// beats an interior match, which beats a tail-anchored match. The folded
// pass is discounted so an exact-Unicode match wins when both succeed.
const (
	quotedLiteralScore = 1.2
	fullWordScore      = 1.0
	phraseSubstring    = 0.95
	prefixClass        = 0.8
	interiorClass      = 0.45
	tailClass          = 0.4

	foldDiscount    = 0.9
	quotedFallback  = 0.5
	phraseFallback  = 0.6
	patternFallback = 0.3
	coverageBase    = 0.8
	coverageSpan    = 0.2
)

// termForms caches the normalized shapes of one sub-term.
type termForms struct {
	kind        TermKind
	exact       string
	folded      string
	exactWords  []string
	foldedWords []string
}

// Scorer evaluates candidates against one query plan. Immutable after
// construction; safe for concurrent use.
type Scorer struct {
	plan  *QueryPlan
	terms []termForms
}

// NewScorer precomputes term forms for the plan.
func NewScorer(plan *QueryPlan) *Scorer {
	s := &Scorer{plan: plan}
	for _, t := range plan.SubTerms {
		exact := strings.ToLower(t.Text)
		folded := fold(t.Text)
		s.terms = append(s.terms, termForms{
			kind:        t.Kind,
			exact:       exact,
			folded:      folded,
			exactWords:  splitWords(exact),
			foldedWords: splitWords(folded),
		})
	}
	return s
}

// Admit applies the plan's hard filters. A from: filter or account scope
// requires the candidate's author; a to: filter requires the candidate to
// mention or be authored by the handle. Non-admitted candidates are
// excluded from the result set entirely.
func (s *Scorer) Admit(c source.Candidate) bool {
	if s.plan.ScopeAuthor != "" && !handleMatches(c.Author, s.plan.ScopeAuthor) {
		return false
	}
	if s.plan.FromAuthor != "" && !handleMatches(c.Author, s.plan.FromAuthor) {
		return false
	}
	if s.plan.ToAuthor != "" {
		mentioned := strings.Contains(strings.ToLower(c.Text), "@"+strings.ToLower(s.plan.ToAuthor))
		if !mentioned && !handleMatches(c.Author, s.plan.ToAuthor) {
			return false
		}
	}
	return true
}

// Score returns the candidate's fuzzy score (maximum over sub-terms) and
// the number of structural pattern hits. Pattern hits are scaled by the
// configured bonus weight at ranking time.
func (s *Scorer) Score(c source.Candidate) (fuzzy float64, patternHits float64) {
	textExact := strings.ToLower(c.Text)
	textFolded := fold(c.Text)
	wordsExact := splitWords(textExact)
	wordsFolded := splitWords(textFolded)

	for _, t := range s.terms {
		v := scoreTerm(t, textExact, textFolded, wordsExact, wordsFolded)
		if v > fuzzy {
			fuzzy = v
		}
	}

	for _, re := range s.plan.Regexes {
		if re.MatchString(c.Text) {
			patternHits++
		}
	}
	for _, r := range s.plan.DateRanges {
		if !c.CreatedAt.IsZero() && r.Contains(c.CreatedAt) {
			patternHits++
		}
	}
	return fuzzy, patternHits
}

// scoreTerm runs the exact-Unicode pass and the folded pass and keeps
// the better, with the folded pass discounted.
func scoreTerm(t termForms, textExact, textFolded string, wordsExact, wordsFolded []string) float64 {
	switch t.kind {
	case TermQuoted:
		if strings.Contains(textExact, t.exact) {
			return quotedLiteralScore
		}
		if strings.Contains(textFolded, t.folded) {
			return quotedLiteralScore * foldDiscount
		}
		// A missed quoted span forfeits only the literal bonus.
		return genericScore(t, textExact, textFolded, wordsExact, wordsFolded) * quotedFallback
	case TermPattern:
		return genericScore(t, textExact, textFolded, wordsExact, wordsFolded) * patternFallback
	default:
		return genericScore(t, textExact, textFolded, wordsExact, wordsFolded)
	}
}

func genericScore(t termForms, textExact, textFolded string, wordsExact, wordsFolded []string) float64 {
	exact := genericPass(t.exact, t.exactWords, textExact, wordsExact)
	folded := genericPass(t.folded, t.foldedWords, textFolded, wordsFolded)
	return max(exact, folded*foldDiscount)
}

// genericPass scores one term against one rendering of the candidate. A
// multi-word term prefers a whole-substring hit and otherwise averages
// its words' best scores at a discount.
func genericPass(term string, termWords []string, text string, textWords []string) float64 {
	if len(termWords) == 0 {
		return 0
	}
	if len(termWords) > 1 {
		if strings.Contains(text, term) {
			return phraseSubstring
		}
		var sum float64
		for _, tw := range termWords {
			sum += bestWordScore(tw, textWords)
		}
		return sum / float64(len(termWords)) * phraseFallback
	}
	return bestWordScore(termWords[0], textWords)
}

// bestWordScore compares one stripped term word against every candidate
// word. Full word beats prefix beats interior beats tail; inside a
// partial class, coverage of the candidate word breaks ties.
func bestWordScore(term string, words []string) float64 {
	var best float64
	for _, w := range words {
		var v float64
		switch {
		case w == term:
			v = fullWordScore
		case strings.HasPrefix(w, term):
			v = prefixClass * coverage(term, w)
		case strings.HasSuffix(w, term):
			v = tailClass * coverage(term, w)
		case strings.Contains(w, term):
			v = interiorClass * coverage(term, w)
		}
		if v > best {
			best = v
		}
	}
	return best
}

// coverage maps matched/word length into [coverageBase, 1].
func coverage(term, word string) float64 {
	return coverageBase + coverageSpan*float64(len(term))/float64(len(word))
}

// handleMatches compares an author handle against a filter handle,
// ignoring case and a leading @.
func handleMatches(author, handle string) bool {
	return strings.EqualFold(strings.TrimPrefix(author, "@"), strings.TrimPrefix(handle, "@"))
}
