package store

import (
	"context"
	"time"

	"github.com/patou-app/moderation-cli/internal/model"
)

// EventFilter specifies criteria for listing moderation events.
type EventFilter struct {
	Decision model.Decision `json:"decision,omitempty"`
	TrackID  string         `json:"track_id,omitempty"`
	Since    time.Time      `json:"since,omitempty"`
	Limit    int            `json:"limit,omitempty"`
	Offset   int            `json:"offset,omitempty"`
}

// Store defines the persistence interface for the moderation engine:
// the denylist, the append-only audit log, and manual overrides.
type Store interface {
	// Denylist
	ListDenylist(ctx context.Context) ([]model.DenylistTerm, error)
	UpsertDenylistTerm(ctx context.Context, term model.DenylistTerm) (*model.DenylistTerm, error)
	DeleteDenylistTerm(ctx context.Context, term string) error

	// Audit log (append-only; events are never updated or deleted)
	CreateEvent(ctx context.Context, event *model.ModerationEvent) error
	ListEvents(ctx context.Context, filter EventFilter) ([]model.ModerationEvent, error)
	ListEventsInReview(ctx context.Context, limit int) ([]model.ModerationEvent, error)
	GetLatestEvent(ctx context.Context, trackID string) (*model.ModerationEvent, error)

	// Overrides
	CreateOverride(ctx context.Context, scope, typ, value string, decision model.Decision) (*model.Override, error)
	GetOverride(ctx context.Context, typ, value string) (*model.Override, error)
	ListOverrides(ctx context.Context) ([]model.Override, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
