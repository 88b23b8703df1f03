package model

import "sort"

// ModerationScoreSet is the classifier's verdict over a block of text.
// Treated as opaque evidence: the engine never second-guesses individual
// categories, it only applies thresholds.
type ModerationScoreSet struct {
	Flagged    bool               `json:"flagged"`
	Categories map[string]bool    `json:"categories"`
	Scores     map[string]float64 `json:"scores"`
}

// FlaggedCategories returns the names of categories the classifier
// flagged, sorted for deterministic rule strings.
func (m ModerationScoreSet) FlaggedCategories() []string {
	var cats []string
	for name, flagged := range m.Categories {
		if flagged {
			cats = append(cats, name)
		}
	}
	sort.Strings(cats)
	return cats
}

// CategoriesAbove returns the names of categories whose score exceeds the
// threshold, sorted for deterministic rule strings.
func (m ModerationScoreSet) CategoriesAbove(threshold float64) []string {
	var cats []string
	for name, score := range m.Scores {
		if score > threshold {
			cats = append(cats, name)
		}
	}
	sort.Strings(cats)
	return cats
}
