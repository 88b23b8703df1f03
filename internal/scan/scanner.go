// Package scan implements the denylist keyword scanner and the redaction
// helper used when matched terms are logged or persisted.
package scan

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/patou-app/moderation-cli/internal/model"
)

// Scan finds every denylist term present in text and returns one match per
// term with all non-overlapping occurrence start offsets in runes. Matching is
// case-insensitive substring search; terms with zero occurrences are
// omitted. Matches come back in denylist iteration order, not position
// order, so two scans over the same inputs are byte-identical.
//
// Known limitation: without wordBoundary a term embedded inside a longer
// word still matches ("class" contains "ass"). The flag restricts
// occurrences to those delimited by non-letter/digit runes.
func Scan(text string, terms []model.DenylistTerm, wordBoundary bool) []model.KeywordMatch {
	lowered := strings.ToLower(text)

	var matches []model.KeywordMatch
	for _, t := range terms {
		term := strings.ToLower(t.Term)
		if term == "" {
			continue
		}

		positions := occurrences(lowered, term, wordBoundary)
		if len(positions) == 0 {
			continue
		}

		matches = append(matches, model.KeywordMatch{
			Term:      t.Term,
			Category:  t.Category,
			Severity:  t.Severity,
			Positions: positions,
		})
	}
	return matches
}

// occurrences returns the start offsets, in runes, of all non-overlapping
// occurrences of term in text, via repeated scan-from-last-index. The scan
// itself works on byte indexes; offsets are converted so accented text
// reports the same positions a character-wise reader would count.
func occurrences(text, term string, wordBoundary bool) []int {
	var positions []int
	from := 0
	for {
		idx := strings.Index(text[from:], term)
		if idx < 0 {
			break
		}
		pos := from + idx
		if !wordBoundary || isBounded(text, pos, len(term)) {
			positions = append(positions, utf8.RuneCountInString(text[:pos]))
		}
		from = pos + len(term)
	}
	return positions
}

// isBounded reports whether the occurrence at [pos, pos+length) is
// delimited by non-letter/digit runes on both sides.
func isBounded(text string, pos, length int) bool {
	if pos > 0 {
		before := []rune(text[:pos])
		r := before[len(before)-1]
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if pos+length < len(text) {
		after := []rune(text[pos+length:])
		r := after[0]
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Summarize converts matches into their compact persistable form, with
// terms redacted via Mask.
func Summarize(matches []model.KeywordMatch) []model.KeywordMatchSummary {
	if len(matches) == 0 {
		return nil
	}
	summaries := make([]model.KeywordMatchSummary, 0, len(matches))
	for _, m := range matches {
		summaries = append(summaries, model.KeywordMatchSummary{
			Term:        Mask(m.Term),
			Category:    m.Category,
			Severity:    m.Severity,
			Occurrences: len(m.Positions),
		})
	}
	return summaries
}

// MaxSeverity returns the highest severity present among matches and
// whether any match exists at all.
func MaxSeverity(matches []model.KeywordMatch) (model.Severity, bool) {
	if len(matches) == 0 {
		return "", false
	}
	max := model.SeverityLow
	for _, m := range matches {
		switch m.Severity {
		case model.SeverityHigh:
			return model.SeverityHigh, true
		case model.SeverityMedium:
			max = model.SeverityMedium
		}
	}
	return max, true
}
