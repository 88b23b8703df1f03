package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/patou-app/moderation-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS denylist (
	id         TEXT PRIMARY KEY,
	term       TEXT NOT NULL UNIQUE,
	category   TEXT NOT NULL DEFAULT '',
	severity   TEXT NOT NULL DEFAULT 'low',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS moderation_events (
	id               TEXT PRIMARY KEY,
	track_id         TEXT NOT NULL,
	profile_id       TEXT,
	source           TEXT NOT NULL DEFAULT '',
	decision         TEXT NOT NULL,
	rules_fired      TEXT NOT NULL DEFAULT '[]',
	scores           TEXT,
	track_metadata   TEXT,
	lyrics_found     INTEGER NOT NULL DEFAULT 0,
	keyword_matches  TEXT,
	error_message    TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_events_track_id ON moderation_events(track_id);
CREATE INDEX IF NOT EXISTS idx_events_decision ON moderation_events(decision);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON moderation_events(created_at DESC);

CREATE TABLE IF NOT EXISTS overrides (
	id         TEXT PRIMARY KEY,
	scope      TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL,
	value      TEXT NOT NULL,
	decision   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (type, value)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Denylist

func (s *SQLiteStore) ListDenylist(ctx context.Context) ([]model.DenylistTerm, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, term, category, severity FROM denylist ORDER BY term ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list denylist")
	}
	defer rows.Close()

	var terms []model.DenylistTerm
	for rows.Next() {
		var t model.DenylistTerm
		if err := rows.Scan(&t.ID, &t.Term, &t.Category, &t.Severity); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan denylist term")
		}
		terms = append(terms, t)
	}
	return terms, eris.Wrap(rows.Err(), "sqlite: list denylist iterate")
}

func (s *SQLiteStore) UpsertDenylistTerm(ctx context.Context, term model.DenylistTerm) (*model.DenylistTerm, error) {
	if term.ID == "" {
		term.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO denylist (id, term, category, severity) VALUES (?, ?, ?, ?)
		 ON CONFLICT (term) DO UPDATE SET category = excluded.category, severity = excluded.severity`,
		term.ID, term.Term, term.Category, string(term.Severity),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert denylist term %s", term.Term)
	}
	return &term, nil
}

func (s *SQLiteStore) DeleteDenylistTerm(ctx context.Context, term string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM denylist WHERE term = ?`, term)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete denylist term %s", term)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("denylist term not found: %s", term)
	}
	return nil
}

// Audit log

func (s *SQLiteStore) CreateEvent(ctx context.Context, event *model.ModerationEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	rulesJSON, err := json.Marshal(event.RulesFired)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal rules fired")
	}
	scoresJSON, err := marshalNullableText(event.Scores)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal scores")
	}
	metadataJSON, err := marshalNullableText(event.TrackMetadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal track metadata")
	}
	matchesJSON, err := marshalNullableText(event.KeywordMatches)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal keyword matches")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO moderation_events
		 (id, track_id, profile_id, source, decision, rules_fired, scores, track_metadata, lyrics_found, keyword_matches, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.TrackID, nullString(event.ProfileID), event.Source,
		string(event.Decision), string(rulesJSON), scoresJSON, metadataJSON,
		event.LyricsFound, matchesJSON, nullString(event.ErrorMessage), event.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert event for track %s", event.TrackID)
}

func (s *SQLiteStore) ListEvents(ctx context.Context, filter EventFilter) ([]model.ModerationEvent, error) {
	query := `SELECT id, track_id, profile_id, source, decision, rules_fired, scores, track_metadata, lyrics_found, keyword_matches, error_message, created_at
	          FROM moderation_events WHERE 1=1`
	var args []any

	if filter.Decision != "" {
		query += ` AND decision = ?`
		args = append(args, string(filter.Decision))
	}
	if filter.TrackID != "" {
		query += ` AND track_id = ?`
		args = append(args, filter.TrackID)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close()

	var events []model.ModerationEvent
	for rows.Next() {
		ev, err := scanEventSQLite(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

func (s *SQLiteStore) ListEventsInReview(ctx context.Context, limit int) ([]model.ModerationEvent, error) {
	return s.ListEvents(ctx, EventFilter{Decision: model.DecisionReview, Limit: limit})
}

func (s *SQLiteStore) GetLatestEvent(ctx context.Context, trackID string) (*model.ModerationEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, track_id, profile_id, source, decision, rules_fired, scores, track_metadata, lyrics_found, keyword_matches, error_message, created_at
		 FROM moderation_events WHERE track_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		trackID,
	)
	ev, err := scanEventSQLite(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ev, nil
}

// Overrides

func (s *SQLiteStore) CreateOverride(ctx context.Context, scope, typ, value string, decision model.Decision) (*model.Override, error) {
	o := model.Override{
		ID:        uuid.New().String(),
		Scope:     scope,
		Type:      typ,
		Value:     value,
		Decision:  decision,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO overrides (id, scope, type, value, decision, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (type, value) DO UPDATE SET scope = excluded.scope, decision = excluded.decision, created_at = excluded.created_at`,
		o.ID, o.Scope, o.Type, o.Value, string(o.Decision), o.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create override %s/%s", typ, value)
	}
	return &o, nil
}

func (s *SQLiteStore) GetOverride(ctx context.Context, typ, value string) (*model.Override, error) {
	var o model.Override
	err := s.db.QueryRowContext(ctx,
		`SELECT id, scope, type, value, decision, created_at FROM overrides WHERE type = ? AND value = ?`,
		typ, value,
	).Scan(&o.ID, &o.Scope, &o.Type, &o.Value, &o.Decision, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get override %s/%s", typ, value)
	}
	return &o, nil
}

func (s *SQLiteStore) ListOverrides(ctx context.Context) ([]model.Override, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scope, type, value, decision, created_at FROM overrides ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list overrides")
	}
	defer rows.Close()

	var overrides []model.Override
	for rows.Next() {
		var o model.Override
		if err := rows.Scan(&o.ID, &o.Scope, &o.Type, &o.Value, &o.Decision, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan override")
		}
		overrides = append(overrides, o)
	}
	return overrides, eris.Wrap(rows.Err(), "sqlite: list overrides iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanEventSQLite(row scannable) (*model.ModerationEvent, error) {
	var ev model.ModerationEvent
	var profileID, scoresJSON, metadataJSON, matchesJSON, errorMessage sql.NullString
	var rulesJSON string

	err := row.Scan(&ev.ID, &ev.TrackID, &profileID, &ev.Source, &ev.Decision,
		&rulesJSON, &scoresJSON, &metadataJSON, &ev.LyricsFound, &matchesJSON,
		&errorMessage, &ev.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan event")
	}

	ev.ProfileID = profileID.String
	ev.ErrorMessage = errorMessage.String
	if err := json.Unmarshal([]byte(rulesJSON), &ev.RulesFired); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal rules fired")
	}
	if scoresJSON.Valid {
		if err := json.Unmarshal([]byte(scoresJSON.String), &ev.Scores); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal scores")
		}
	}
	if metadataJSON.Valid {
		ev.TrackMetadata = &model.TrackInfo{}
		if err := json.Unmarshal([]byte(metadataJSON.String), ev.TrackMetadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal track metadata")
		}
	}
	if matchesJSON.Valid {
		if err := json.Unmarshal([]byte(matchesJSON.String), &ev.KeywordMatches); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal keyword matches")
		}
	}
	return &ev, nil
}

func marshalNullableText(v any) (any, error) {
	data, err := marshalNullable(v)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return string(data), nil
}
