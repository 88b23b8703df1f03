// Package engine implements the moderation decision engine: it gathers
// signals for a track, applies the precedence rules, and records every
// outcome in the audit log.
package engine

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/patou-app/moderation-cli/internal/model"
	"github.com/patou-app/moderation-cli/internal/scan"
	"github.com/patou-app/moderation-cli/internal/store"
)

// MetadataSource loads track metadata. Failures are fatal to the evaluation.
type MetadataSource interface {
	Fetch(ctx context.Context, trackID string) (*model.TrackSignals, error)
}

// LyricsSource looks up lyrics best-effort; it reports found=false rather
// than failing.
type LyricsSource interface {
	Fetch(ctx context.Context, title, artist string) (text string, found bool)
}

// ClassifierSource scores text. Failures are fatal to the evaluation.
type ClassifierSource interface {
	Classify(ctx context.Context, text string) (*model.ModerationScoreSet, error)
}

// Observer receives each final decision, e.g. for stats counters.
type Observer interface {
	RecordDecision(model.Decision)
}

// Config holds the engine's rule tuning.
type Config struct {
	// ScoreReviewThreshold is the classifier score above which an
	// otherwise-allowed track is sent to review.
	ScoreReviewThreshold float64
	// WordBoundary restricts keyword matches to whole words.
	WordBoundary bool
	// DenylistFailClosed makes a denylist load failure fatal instead of
	// evaluating without keyword rules.
	DenylistFailClosed bool
}

// Engine evaluates tracks. Stateless across calls; safe for concurrent use.
type Engine struct {
	metadata   MetadataSource
	lyrics     LyricsSource
	classifier ClassifierSource
	store      store.Store
	cfg        Config
	observer   Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers a decision observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an Engine.
func New(metadata MetadataSource, lyrics LyricsSource, classifier ClassifierSource, st store.Store, cfg Config, opts ...Option) *Engine {
	if cfg.ScoreReviewThreshold <= 0 {
		cfg.ScoreReviewThreshold = 0.7
	}
	e := &Engine{
		metadata:   metadata,
		lyrics:     lyrics,
		classifier: classifier,
		store:      st,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the full moderation pipeline for one track and records the
// outcome. On a fatal signal failure (metadata or classifier) it writes a
// review/moderation_error audit event and returns the error. If only the
// audit write fails, the decision is returned together with an *AuditError
// so callers never lose the verdict.
func (e *Engine) Evaluate(ctx context.Context, trackID, profileID, source string) (*model.ModerationDecision, error) {
	if trackID == "" {
		return nil, eris.New("engine: track id is required")
	}

	// Manual overrides win over everything and skip signal gathering.
	override, err := e.store.GetOverride(ctx, model.OverrideTypeTrack, trackID)
	if err != nil {
		zap.L().Warn("engine: override lookup failed, evaluating normally",
			zap.String("track_id", trackID), zap.Error(err))
	}
	if override != nil {
		return e.applyOverride(ctx, trackID, profileID, source, override)
	}

	var signals *model.TrackSignals
	var terms []model.DenylistTerm

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := e.metadata.Fetch(gctx, trackID)
		if err != nil {
			return err
		}
		signals = s
		return nil
	})
	g.Go(func() error {
		t, err := e.store.ListDenylist(gctx)
		if err != nil {
			if e.cfg.DenylistFailClosed {
				return eris.Wrap(err, "engine: load denylist")
			}
			zap.L().Warn("engine: denylist unavailable, evaluating without keyword rules",
				zap.Error(err))
			return nil
		}
		terms = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, e.failEvaluation(ctx, trackID, profileID, source, err)
	}

	if text, found := e.lyrics.Fetch(ctx, signals.Name, signals.Artist); found {
		signals.LyricsText = &text
	}

	textToScan := strings.ToLower(signals.Name + " " + signals.Artist + " " + signals.Lyrics())
	matches := scan.Scan(textToScan, terms, e.cfg.WordBoundary)

	scores, err := e.classifier.Classify(ctx, textToScan)
	if err != nil {
		return nil, e.failEvaluation(ctx, trackID, profileID, source, err)
	}

	decision, rules := e.applyRules(signals, matches, scores)

	result := &model.ModerationDecision{
		Decision:   decision,
		RulesFired: rules,
		Scores:     scores.Scores,
		Track:      signals.Info(),
	}

	info := signals.Info()
	event := &model.ModerationEvent{
		TrackID:        trackID,
		ProfileID:      profileID,
		Source:         source,
		Decision:       decision,
		RulesFired:     rules,
		Scores:         scores.Scores,
		TrackMetadata:  &info,
		LyricsFound:    signals.LyricsFound(),
		KeywordMatches: scan.Summarize(matches),
	}
	if err := e.store.CreateEvent(ctx, event); err != nil {
		return result, &AuditError{Err: err}
	}
	e.record(decision)

	zap.L().Info("engine: track evaluated",
		zap.String("track_id", trackID),
		zap.String("decision", string(decision)),
		zap.Strings("rules_fired", rules),
	)
	return result, nil
}

// applyRules runs the precedence rules in order. Rules only ever upgrade
// the decision (allow < review < block) and each fires at most once.
func (e *Engine) applyRules(signals *model.TrackSignals, matches []model.KeywordMatch, scores *model.ModerationScoreSet) (model.Decision, []string) {
	decision := model.DecisionAllow
	rules := []string{}

	if signals.Explicit {
		decision = decision.Upgrade(model.DecisionBlock)
		rules = append(rules, model.RuleExplicitContent)
	}

	if maxSev, found := scan.MaxSeverity(matches); found {
		switch maxSev {
		case model.SeverityHigh:
			decision = decision.Upgrade(model.DecisionBlock)
			rules = append(rules, model.RuleHighSeverityKw)
		case model.SeverityMedium:
			decision = decision.Upgrade(model.DecisionReview)
			rules = append(rules, model.RuleMediumSeverityKw)
		default:
			decision = decision.Upgrade(model.DecisionReview)
			rules = append(rules, model.RuleLowSeverityKw)
		}
	}

	if scores.Flagged {
		decision = decision.Upgrade(model.DecisionBlock)
		rules = append(rules, model.RuleModerationFlagged+": "+strings.Join(scores.FlaggedCategories(), ", "))
	}

	// Borderline scores only matter when nothing else objected.
	if decision == model.DecisionAllow {
		if cats := scores.CategoriesAbove(e.cfg.ScoreReviewThreshold); len(cats) > 0 {
			decision = model.DecisionReview
			rules = append(rules, model.RuleHighScores+": "+strings.Join(cats, ", "))
		}
	}

	return decision, rules
}

// applyOverride returns the override's decision and still records an audit
// event: every verdict is auditable, forced ones included.
func (e *Engine) applyOverride(ctx context.Context, trackID, profileID, source string, override *model.Override) (*model.ModerationDecision, error) {
	rules := []string{model.RuleManualOverride}
	result := &model.ModerationDecision{
		Decision:   override.Decision,
		RulesFired: rules,
		Track:      model.TrackInfo{TrackID: trackID},
	}

	event := &model.ModerationEvent{
		TrackID:    trackID,
		ProfileID:  profileID,
		Source:     source,
		Decision:   override.Decision,
		RulesFired: rules,
	}
	if err := e.store.CreateEvent(ctx, event); err != nil {
		return result, &AuditError{Err: err}
	}
	e.record(override.Decision)

	zap.L().Info("engine: manual override applied",
		zap.String("track_id", trackID),
		zap.String("decision", string(override.Decision)),
	)
	return result, nil
}

// failEvaluation writes a best-effort review/moderation_error event for a
// fatal signal failure and returns the cause. The write survives caller
// cancellation so the audit trail records what happened.
func (e *Engine) failEvaluation(ctx context.Context, trackID, profileID, source string, cause error) error {
	event := &model.ModerationEvent{
		TrackID:      trackID,
		ProfileID:    profileID,
		Source:       source,
		Decision:     model.DecisionReview,
		RulesFired:   []string{model.RuleModerationError},
		ErrorMessage: cause.Error(),
	}
	if err := e.store.CreateEvent(context.WithoutCancel(ctx), event); err != nil {
		zap.L().Error("engine: failed to record error event",
			zap.String("track_id", trackID), zap.Error(err))
	}
	e.record(model.DecisionReview)
	return cause
}

func (e *Engine) record(d model.Decision) {
	if e.observer != nil {
		e.observer.RecordDecision(d)
	}
}
