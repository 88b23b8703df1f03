package model

import "time"

// ModerationEvent is the append-only audit record of one evaluation
// attempt, successful or failed. Never mutated or deleted by the engine.
type ModerationEvent struct {
	ID             string                `json:"id"`
	TrackID        string                `json:"track_id"`
	ProfileID      string                `json:"profile_id,omitempty"`
	Source         string                `json:"source"`
	Decision       Decision              `json:"decision"`
	RulesFired     []string              `json:"rules_fired"`
	Scores         map[string]float64    `json:"scores,omitempty"`
	TrackMetadata  *TrackInfo            `json:"track_metadata,omitempty"`
	LyricsFound    bool                  `json:"lyrics_found"`
	KeywordMatches []KeywordMatchSummary `json:"keyword_matches,omitempty"`
	ErrorMessage   string                `json:"error_message,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}
