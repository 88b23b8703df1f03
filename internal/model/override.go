package model

import "time"

// Override target types.
const (
	OverrideTypeTrack  = "track"
	OverrideTypeArtist = "artist"
)

// Override is a manual reviewer decision that takes precedence over
// automatic evaluation for a given (type, value) pair. Created by a human
// action, never auto-expired.
type Override struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	Type      string    `json:"type"`
	Value     string    `json:"value"`
	Decision  Decision  `json:"decision"`
	CreatedAt time.Time `json:"created_at"`
}
