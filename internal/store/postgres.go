package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/patou-app/moderation-cli/internal/db"
	"github.com/patou-app/moderation-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS denylist (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	term       TEXT NOT NULL UNIQUE,
	category   TEXT NOT NULL DEFAULT '',
	severity   TEXT NOT NULL DEFAULT 'low',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_denylist_term ON denylist(term);

CREATE TABLE IF NOT EXISTS moderation_events (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	track_id         TEXT NOT NULL,
	profile_id       TEXT,
	source           TEXT NOT NULL DEFAULT '',
	decision         TEXT NOT NULL,
	rules_fired      JSONB NOT NULL DEFAULT '[]',
	scores           JSONB,
	track_metadata   JSONB,
	lyrics_found     BOOLEAN NOT NULL DEFAULT false,
	keyword_matches  JSONB,
	error_message    TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_events_track_id ON moderation_events(track_id);
CREATE INDEX IF NOT EXISTS idx_events_decision ON moderation_events(decision);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON moderation_events(created_at DESC);

CREATE TABLE IF NOT EXISTS overrides (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	scope      TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL,
	value      TEXT NOT NULL,
	decision   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (type, value)
);

CREATE INDEX IF NOT EXISTS idx_overrides_type_value ON overrides(type, value);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Denylist

func (s *PostgresStore) ListDenylist(ctx context.Context) ([]model.DenylistTerm, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, term, category, severity FROM denylist ORDER BY term ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list denylist")
	}
	defer rows.Close()

	var terms []model.DenylistTerm
	for rows.Next() {
		var t model.DenylistTerm
		if err := rows.Scan(&t.ID, &t.Term, &t.Category, &t.Severity); err != nil {
			return nil, eris.Wrap(err, "postgres: scan denylist term")
		}
		terms = append(terms, t)
	}
	return terms, eris.Wrap(rows.Err(), "postgres: list denylist iterate")
}

func (s *PostgresStore) UpsertDenylistTerm(ctx context.Context, term model.DenylistTerm) (*model.DenylistTerm, error) {
	if term.ID == "" {
		term.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO denylist (id, term, category, severity) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (term) DO UPDATE SET category = $3, severity = $4`,
		term.ID, term.Term, term.Category, string(term.Severity),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert denylist term %s", term.Term)
	}
	return &term, nil
}

func (s *PostgresStore) DeleteDenylistTerm(ctx context.Context, term string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM denylist WHERE term = $1`, term)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete denylist term %s", term)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("denylist term not found: %s", term)
	}
	return nil
}

// Audit log

func (s *PostgresStore) CreateEvent(ctx context.Context, event *model.ModerationEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	rulesJSON, err := json.Marshal(event.RulesFired)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal rules fired")
	}
	scoresJSON, err := marshalNullable(event.Scores)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal scores")
	}
	metadataJSON, err := marshalNullable(event.TrackMetadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal track metadata")
	}
	matchesJSON, err := marshalNullable(event.KeywordMatches)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal keyword matches")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO moderation_events
		 (id, track_id, profile_id, source, decision, rules_fired, scores, track_metadata, lyrics_found, keyword_matches, error_message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		event.ID, event.TrackID, nullString(event.ProfileID), event.Source,
		string(event.Decision), rulesJSON, scoresJSON, metadataJSON,
		event.LyricsFound, matchesJSON, nullString(event.ErrorMessage), event.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert event for track %s", event.TrackID)
}

func (s *PostgresStore) ListEvents(ctx context.Context, filter EventFilter) ([]model.ModerationEvent, error) {
	query := `SELECT id, track_id, profile_id, source, decision, rules_fired, scores, track_metadata, lyrics_found, keyword_matches, error_message, created_at
	          FROM moderation_events WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Decision != "" {
		query += fmt.Sprintf(` AND decision = $%d`, argIdx)
		args = append(args, string(filter.Decision))
		argIdx++
	}
	if filter.TrackID != "" {
		query += fmt.Sprintf(` AND track_id = $%d`, argIdx)
		args = append(args, filter.TrackID)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	var events []model.ModerationEvent
	for rows.Next() {
		ev, err := scanEventPgx(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list events iterate")
}

func (s *PostgresStore) ListEventsInReview(ctx context.Context, limit int) ([]model.ModerationEvent, error) {
	return s.ListEvents(ctx, EventFilter{Decision: model.DecisionReview, Limit: limit})
}

func (s *PostgresStore) GetLatestEvent(ctx context.Context, trackID string) (*model.ModerationEvent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, track_id, profile_id, source, decision, rules_fired, scores, track_metadata, lyrics_found, keyword_matches, error_message, created_at
		 FROM moderation_events WHERE track_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		trackID,
	)
	ev, err := scanEventPgx(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ev, nil
}

// Overrides

func (s *PostgresStore) CreateOverride(ctx context.Context, scope, typ, value string, decision model.Decision) (*model.Override, error) {
	o := model.Override{
		ID:        uuid.New().String(),
		Scope:     scope,
		Type:      typ,
		Value:     value,
		Decision:  decision,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO overrides (id, scope, type, value, decision, created_at) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (type, value) DO UPDATE SET scope = $2, decision = $5, created_at = $6`,
		o.ID, o.Scope, o.Type, o.Value, string(o.Decision), o.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create override %s/%s", typ, value)
	}
	return &o, nil
}

func (s *PostgresStore) GetOverride(ctx context.Context, typ, value string) (*model.Override, error) {
	var o model.Override
	err := s.pool.QueryRow(ctx,
		`SELECT id, scope, type, value, decision, created_at FROM overrides WHERE type = $1 AND value = $2`,
		typ, value,
	).Scan(&o.ID, &o.Scope, &o.Type, &o.Value, &o.Decision, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get override %s/%s", typ, value)
	}
	return &o, nil
}

func (s *PostgresStore) ListOverrides(ctx context.Context) ([]model.Override, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, scope, type, value, decision, created_at FROM overrides ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list overrides")
	}
	defer rows.Close()

	var overrides []model.Override
	for rows.Next() {
		var o model.Override
		if err := rows.Scan(&o.ID, &o.Scope, &o.Type, &o.Value, &o.Decision, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan override")
		}
		overrides = append(overrides, o)
	}
	return overrides, eris.Wrap(rows.Err(), "postgres: list overrides iterate")
}

// helpers

func scanEventPgx(row pgx.Row) (*model.ModerationEvent, error) {
	var ev model.ModerationEvent
	var profileID, errorMessage *string
	var rulesJSON []byte
	var scoresJSON, metadataJSON, matchesJSON *[]byte

	err := row.Scan(&ev.ID, &ev.TrackID, &profileID, &ev.Source, &ev.Decision,
		&rulesJSON, &scoresJSON, &metadataJSON, &ev.LyricsFound, &matchesJSON,
		&errorMessage, &ev.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan event")
	}

	if profileID != nil {
		ev.ProfileID = *profileID
	}
	if errorMessage != nil {
		ev.ErrorMessage = *errorMessage
	}
	if err := json.Unmarshal(rulesJSON, &ev.RulesFired); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal rules fired")
	}
	if scoresJSON != nil {
		if err := json.Unmarshal(*scoresJSON, &ev.Scores); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal scores")
		}
	}
	if metadataJSON != nil {
		ev.TrackMetadata = &model.TrackInfo{}
		if err := json.Unmarshal(*metadataJSON, ev.TrackMetadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal track metadata")
		}
	}
	if matchesJSON != nil {
		if err := json.Unmarshal(*matchesJSON, &ev.KeywordMatches); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal keyword matches")
		}
	}
	return &ev, nil
}

func marshalNullable(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]float64:
		if val == nil {
			return nil, nil
		}
	case *model.TrackInfo:
		if val == nil {
			return nil, nil
		}
	case []model.KeywordMatchSummary:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
