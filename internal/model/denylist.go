package model

// Severity grades a denylist term.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DenylistTerm is one administrator-maintained banned term. Immutable from
// the engine's perspective; loaded fresh per evaluation.
type DenylistTerm struct {
	ID       string   `json:"id" yaml:"-"`
	Term     string   `json:"term" yaml:"term"`
	Category string   `json:"category" yaml:"category"`
	Severity Severity `json:"severity" yaml:"severity"`
}

// KeywordMatch is one term found in the scanned text, with every
// non-overlapping occurrence start offset in runes. Ephemeral: only its
// summary is persisted.
type KeywordMatch struct {
	Term      string   `json:"term"`
	Category  string   `json:"category"`
	Severity  Severity `json:"severity"`
	Positions []int    `json:"positions"`
}

// KeywordMatchSummary is the compact, persistable form of a match. Term is
// stored redacted so slurs never land verbatim in the audit log.
type KeywordMatchSummary struct {
	Term        string   `json:"term"`
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Occurrences int      `json:"occurrences"`
}
