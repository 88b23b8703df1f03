package model

// Decision is the outcome of a moderation evaluation.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionReview Decision = "review"
	DecisionBlock  Decision = "block"
)

// Well-known rule identifiers. The admin UI displays these verbatim, so
// their exact spelling is part of the contract.
const (
	RuleExplicitContent    = "explicit_content"
	RuleHighSeverityKw     = "high_severity_keywords"
	RuleMediumSeverityKw   = "medium_severity_keywords"
	RuleLowSeverityKw      = "low_severity_keywords"
	RuleModerationFlagged  = "openai_moderation"
	RuleHighScores         = "high_moderation_scores"
	RuleManualOverride     = "manual_override"
	RuleModerationError    = "moderation_error"
)

// rank orders decisions by severity: allow < review < block.
func (d Decision) rank() int {
	switch d {
	case DecisionBlock:
		return 2
	case DecisionReview:
		return 1
	default:
		return 0
	}
}

// Valid reports whether d is one of the three known decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionAllow, DecisionReview, DecisionBlock:
		return true
	}
	return false
}

// ValidOverride reports whether d can be stored as a manual override.
// Overrides resolve the review state; they never re-enter it.
func (d Decision) ValidOverride() bool {
	return d == DecisionAllow || d == DecisionBlock
}

// Upgrade returns the more severe of d and other. Rules only ever raise
// the decision; nothing downgrades an earlier block.
func (d Decision) Upgrade(other Decision) Decision {
	if other.rank() > d.rank() {
		return other
	}
	return d
}

// ModerationDecision is the engine's output contract and the unit of audit.
type ModerationDecision struct {
	Decision   Decision           `json:"decision"`
	RulesFired []string           `json:"rules_fired"`
	Scores     map[string]float64 `json:"scores,omitempty"`
	Track      TrackInfo          `json:"track_info"`
}
