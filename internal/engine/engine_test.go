package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patou-app/moderation-cli/internal/model"
	"github.com/patou-app/moderation-cli/internal/store"
)

// --- stubs ---

type stubMetadata struct {
	signals *model.TrackSignals
	err     error
	calls   int
}

func (s *stubMetadata) Fetch(ctx context.Context, trackID string) (*model.TrackSignals, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := *s.signals
	out.TrackID = trackID
	return &out, nil
}

type stubLyrics struct {
	text  string
	found bool
}

func (s *stubLyrics) Fetch(ctx context.Context, title, artist string) (string, bool) {
	return s.text, s.found
}

type stubClassifier struct {
	set      *model.ModerationScoreSet
	err      error
	lastText string
}

func (s *stubClassifier) Classify(ctx context.Context, text string) (*model.ModerationScoreSet, error) {
	s.lastText = text
	if s.err != nil {
		return nil, s.err
	}
	return s.set, nil
}

// fakeStore is an in-memory Store covering what Evaluate touches.
type fakeStore struct {
	terms       []model.DenylistTerm
	denylistErr error
	overrides   map[string]*model.Override
	createErr   error
	events      []*model.ModerationEvent
}

func (f *fakeStore) ListDenylist(ctx context.Context) ([]model.DenylistTerm, error) {
	if f.denylistErr != nil {
		return nil, f.denylistErr
	}
	return f.terms, nil
}

func (f *fakeStore) UpsertDenylistTerm(ctx context.Context, term model.DenylistTerm) (*model.DenylistTerm, error) {
	return &term, nil
}

func (f *fakeStore) DeleteDenylistTerm(ctx context.Context, term string) error { return nil }

func (f *fakeStore) CreateEvent(ctx context.Context, event *model.ModerationEvent) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStore) ListEvents(ctx context.Context, filter store.EventFilter) ([]model.ModerationEvent, error) {
	return nil, nil
}

func (f *fakeStore) ListEventsInReview(ctx context.Context, limit int) ([]model.ModerationEvent, error) {
	return nil, nil
}

func (f *fakeStore) GetLatestEvent(ctx context.Context, trackID string) (*model.ModerationEvent, error) {
	return nil, nil
}

func (f *fakeStore) CreateOverride(ctx context.Context, scope, typ, value string, decision model.Decision) (*model.Override, error) {
	return nil, nil
}

func (f *fakeStore) GetOverride(ctx context.Context, typ, value string) (*model.Override, error) {
	if f.overrides == nil {
		return nil, nil
	}
	return f.overrides[typ+"/"+value], nil
}

func (f *fakeStore) ListOverrides(ctx context.Context) ([]model.Override, error) { return nil, nil }
func (f *fakeStore) Migrate(ctx context.Context) error                           { return nil }
func (f *fakeStore) Close() error                                                { return nil }

func cleanScores() *model.ModerationScoreSet {
	return &model.ModerationScoreSet{
		Flagged:    false,
		Categories: map[string]bool{"violence": false},
		Scores:     map[string]float64{"violence": 0.01},
	}
}

func cleanSignals() *model.TrackSignals {
	return &model.TrackSignals{Name: "Sunny Day", Artist: "Happy Band"}
}

func newTestEngine(meta *stubMetadata, lyr *stubLyrics, cls *stubClassifier, st *fakeStore, cfg Config) *Engine {
	return New(meta, lyr, cls, st, cfg)
}

// --- rule tests ---

func TestEvaluate_CleanTrackAllows(t *testing.T) {
	st := &fakeStore{}
	e := newTestEngine(&stubMetadata{signals: cleanSignals()}, &stubLyrics{}, &stubClassifier{set: cleanScores()}, st, Config{})

	result, err := e.Evaluate(context.Background(), "track-1", "kid-1", "spotify")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionAllow, result.Decision)
	assert.Equal(t, []string{}, result.RulesFired)
	assert.Equal(t, "track-1", result.Track.TrackID)

	require.Len(t, st.events, 1)
	assert.Equal(t, model.DecisionAllow, st.events[0].Decision)
	assert.Equal(t, "kid-1", st.events[0].ProfileID)
	assert.False(t, st.events[0].LyricsFound)
}

func TestEvaluate_ExplicitFlagBlocks(t *testing.T) {
	st := &fakeStore{}
	signals := cleanSignals()
	signals.Explicit = true
	e := newTestEngine(&stubMetadata{signals: signals}, &stubLyrics{}, &stubClassifier{set: cleanScores()}, st, Config{})

	result, err := e.Evaluate(context.Background(), "track-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionBlock, result.Decision)
	assert.Equal(t, []string{model.RuleExplicitContent}, result.RulesFired)
}

func TestEvaluate_HighSeverityKeywordBlocks(t *testing.T) {
	st := &fakeStore{terms: []model.DenylistTerm{
		{Term: "murder", Category: "violence", Severity: model.SeverityHigh},
	}}
	signals := &model.TrackSignals{Name: "Murder Ballad", Artist: "Grim Band"}
	e := newTestEngine(&stubMetadata{signals: signals}, &stubLyrics{}, &stubClassifier{set: cleanScores()}, st, Config{})

	result, err := e.Evaluate(context.Background(), "track-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionBlock, result.Decision)
	assert.Equal(t, []string{model.RuleHighSeverityKw}, result.RulesFired)

	// Matched terms land in the audit event redacted.
	require.Len(t, st.events, 1)
	require.Len(t, st.events[0].KeywordMatches, 1)
	assert.Equal(t, "m****r", st.events[0].KeywordMatches[0].Term)
}

func TestEvaluate_KeywordSeverityTiers(t *testing.T) {
	tests := []struct {
		severity model.Severity
		decision model.Decision
		rule     string
	}{
		{model.SeverityHigh, model.DecisionBlock, model.RuleHighSeverityKw},
		{model.SeverityMedium, model.DecisionReview, model.RuleMediumSeverityKw},
		{model.SeverityLow, model.DecisionReview, model.RuleLowSeverityKw},
	}
	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			st := &fakeStore{terms: []model.DenylistTerm{
				{Term: "damn", Severity: tt.severity},
			}}
			signals := &model.TrackSignals{Name: "Damn Song", Artist: "Band"}
			e := newTestEngine(&stubMetadata{signals: signals}, &stubLyrics{}, &stubClassifier{set: cleanScores()}, st, Config{})

			result, err := e.Evaluate(context.Background(), "track-1", "", "")
			require.NoError(t, err)
			assert.Equal(t, tt.decision, result.Decision)
			assert.Equal(t, []string{tt.rule}, result.RulesFired)
		})
	}
}

func TestEvaluate_OnlyOneKeywordRuleFires(t *testing.T) {
	st := &fakeStore{terms: []model.DenylistTerm{
		{Term: "damn", Severity: model.SeverityLow},
		{Term: "murder", Severity: model.SeverityHigh},
	}}
	signals := &model.TrackSignals{Name: "Damn Murder", Artist: "Band"}
	e := newTestEngine(&stubMetadata{signals: signals}, &stubLyrics{}, &stubClassifier{set: cleanScores()}, st, Config{})

	result, err := e.Evaluate(context.Background(), "track-1", "", "")
	require.NoError(t, err)
	// The highest tier wins; lower keyword rules never co-fire.
	assert.Equal(t, []string{model.RuleHighSeverityKw}, result.RulesFired)
}

func TestEvaluate_ClassifierFlagBlocksWithCategories(t *testing.T) {
	st := &fakeStore{}
	set := &model.ModerationScoreSet{
		Flagged:    true,
		Categories: map[string]bool{"violence": true, "hate": true, "self-harm": false},
		Scores:     map[string]float64{"violence": 0.95, "hate": 0.88},
	}
	e := newTestEngine(&stubMetadata{signals: cleanSignals()}, &stubLyrics{}, &stubClassifier{set: set}, st, Config{})

	result, err := e.Evaluate(context.Background(), "track-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionBlock, result.Decision)
	// Categories are sorted so the rule string is deterministic.
	assert.Equal(t, []string{model.RuleModerationFlagged + ": hate, violence"}, result.RulesFired)
}

func TestEvaluate_HighScoresSendToReview(t *testing.T) {
	st := &fakeStore{}
	set := &model.ModerationScoreSet{
		Flagged:    false,
		Categories: map[string]bool{},
		Scores:     map[string]float64{"violence": 0.85, "hate": 0.2},
	}
	e := newTestEngine(&stubMetadata{signals: cleanSignals()}, &stubLyrics{}, &stubClassifier{set: set}, st, Config{})

	result, err := e.Evaluate(context.Background(), "track-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionReview, result.Decision)
	assert.Equal(t, []string{model.RuleHighScores + ": violence"}, result.RulesFired)
}

func TestEvaluate_HighScoresSkippedWhenAlreadyBlocked(t *testing.T) {
	st := &fakeStore{}
	signals := cleanSignals()
	signals.Explicit = true
	set := &model.ModerationScoreSet{
		Flagged:    false,
		Categories: map[string]bool{},
		Scores:     map[string]float64{"violence": 0.99},
	}
	e := newTestEngine(&stubMetadata{signals: signals}, &stubLyrics{}, &stubClassifier{set: set}, st, Config{})

	result, err := e.Evaluate(context.Background(), "track-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionBlock, result.Decision)
	assert.Equal(t, []string{model.RuleExplicitContent}, result.RulesFired)
}

func TestEvaluate_RulesFireInOrderWithoutDuplicates(t *testing.T) {
	st := &fakeStore{terms: []model.DenylistTerm{
		{Term: "murder", Severity: model.SeverityHigh},
	}}
	signals := &model.TrackSignals{Name: "Murder Song", Artist: "Band", Explicit: true}
	set := &model.ModerationScoreSet{
		Flagged:    true,
		Categories: map[string]bool{"violence": true},
		Scores:     map[string]float64{"violence": 0.99},
	}
	e := newTestEngine(&stubMetadata{signals: signals}, &stubLyrics{}, &stubClassifier{set: set}, st, Config{})

	result, err := e.Evaluate(context.Background(), "track-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionBlock, result.Decision)
	assert.Equal(t, []string{
		model.RuleExplicitContent,
		model.RuleHighSeverityKw,
		model.RuleModerationFlagged + ": violence",
	}, result.RulesFired)
}

func TestEvaluate_LyricsFeedTheScan(t *testing.T) {
	st := &fakeStore{terms: []model.DenylistTerm{
		{Term: "murder", Severity: model.SeverityHigh},
	}}
	lyr := &stubLyrics{text: "a tale of murder most foul", found: true}
	cls := &stubClassifier{set: cleanScores()}
	e := newTestEngine(&stubMetadata{signals: cleanSignals()}, lyr, cls, st, Config{})

	result, err := e.Evaluate(context.Background(), "track-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionBlock, result.Decision)
	assert.Contains(t, cls.lastText, "murder most foul")

	require.Len(t, st.events, 1)
	assert.True(t, st.events[0].LyricsFound)
}

// --- failure paths ---

func TestEvaluate_ClassifierErrorWritesReviewEvent(t *testing.T) {
	st := &fakeStore{}
	cls := &stubClassifier{err: eris.New("openai: unexpected status 503")}
	e := newTestEngine(&stubMetadata{signals: cleanSignals()}, &stubLyrics{}, cls, st, Config{})

	_, err := e.Evaluate(context.Background(), "track-1", "kid-1", "spotify")
	require.Error(t, err)

	// Exactly one audit event: review with the error rule.
	require.Len(t, st.events, 1)
	assert.Equal(t, model.DecisionReview, st.events[0].Decision)
	assert.Equal(t, []string{model.RuleModerationError}, st.events[0].RulesFired)
	assert.NotEmpty(t, st.events[0].ErrorMessage)
}

func TestEvaluate_MetadataErrorWritesReviewEvent(t *testing.T) {
	st := &fakeStore{}
	meta := &stubMetadata{err: eris.New("spotify: unexpected status 404")}
	e := newTestEngine(meta, &stubLyrics{}, &stubClassifier{set: cleanScores()}, st, Config{})

	_, err := e.Evaluate(context.Background(), "track-1", "", "")
	require.Error(t, err)
	require.Len(t, st.events, 1)
	assert.Equal(t, model.DecisionReview, st.events[0].Decision)
	assert.Equal(t, []string{model.RuleModerationError}, st.events[0].RulesFired)
}

func TestEvaluate_DenylistFailureIsOpenByDefault(t *testing.T) {
	st := &fakeStore{denylistErr: eris.New("postgres: connection refused")}
	e := newTestEngine(&stubMetadata{signals: cleanSignals()}, &stubLyrics{}, &stubClassifier{set: cleanScores()}, st, Config{})

	result, err := e.Evaluate(context.Background(), "track-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionAllow, result.Decision)
}

func TestEvaluate_DenylistFailureFatalWhenFailClosed(t *testing.T) {
	st := &fakeStore{denylistErr: eris.New("postgres: connection refused")}
	e := newTestEngine(&stubMetadata{signals: cleanSignals()}, &stubLyrics{}, &stubClassifier{set: cleanScores()}, st, Config{DenylistFailClosed: true})

	_, err := e.Evaluate(context.Background(), "track-1", "", "")
	require.Error(t, err)
	require.Len(t, st.events, 1)
	assert.Equal(t, model.DecisionReview, st.events[0].Decision)
}

func TestEvaluate_AuditFailureStillReturnsDecision(t *testing.T) {
	st := &fakeStore{createErr: eris.New("postgres: connection refused")}
	e := newTestEngine(&stubMetadata{signals: cleanSignals()}, &stubLyrics{}, &stubClassifier{set: cleanScores()}, st, Config{})

	result, err := e.Evaluate(context.Background(), "track-1", "", "")
	require.Error(t, err)
	var auditErr *AuditError
	require.True(t, errors.As(err, &auditErr))
	require.NotNil(t, result)
	assert.Equal(t, model.DecisionAllow, result.Decision)
}

func TestEvaluate_EmptyTrackID(t *testing.T) {
	e := newTestEngine(&stubMetadata{signals: cleanSignals()}, &stubLyrics{}, &stubClassifier{set: cleanScores()}, &fakeStore{}, Config{})
	_, err := e.Evaluate(context.Background(), "", "", "")
	require.Error(t, err)
}

// --- overrides ---

func TestEvaluate_OverrideShortCircuits(t *testing.T) {
	meta := &stubMetadata{signals: cleanSignals()}
	st := &fakeStore{overrides: map[string]*model.Override{
		"track/track-1": {ID: "ov-1", Type: model.OverrideTypeTrack, Value: "track-1", Decision: model.DecisionAllow},
	}}
	e := newTestEngine(meta, &stubLyrics{}, &stubClassifier{set: cleanScores()}, st, Config{})

	result, err := e.Evaluate(context.Background(), "track-1", "kid-1", "spotify")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionAllow, result.Decision)
	assert.Equal(t, []string{model.RuleManualOverride}, result.RulesFired)

	// No signal gathering, but the verdict is still audited.
	assert.Zero(t, meta.calls)
	require.Len(t, st.events, 1)
	assert.Equal(t, []string{model.RuleManualOverride}, st.events[0].RulesFired)
}

func TestEvaluate_BlockOverrideWins(t *testing.T) {
	st := &fakeStore{overrides: map[string]*model.Override{
		"track/track-1": {ID: "ov-1", Type: model.OverrideTypeTrack, Value: "track-1", Decision: model.DecisionBlock},
	}}
	e := newTestEngine(&stubMetadata{signals: cleanSignals()}, &stubLyrics{}, &stubClassifier{set: cleanScores()}, st, Config{})

	result, err := e.Evaluate(context.Background(), "track-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionBlock, result.Decision)
}

// --- observer ---

type countingObserver struct {
	decisions []model.Decision
}

func (c *countingObserver) RecordDecision(d model.Decision) {
	c.decisions = append(c.decisions, d)
}

func TestEvaluate_ObserverSeesDecision(t *testing.T) {
	obs := &countingObserver{}
	st := &fakeStore{}
	e := New(&stubMetadata{signals: cleanSignals()}, &stubLyrics{}, &stubClassifier{set: cleanScores()}, st, Config{}, WithObserver(obs))

	_, err := e.Evaluate(context.Background(), "track-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, []model.Decision{model.DecisionAllow}, obs.decisions)
}
