// Package signal gathers the external evidence for one evaluation: track
// metadata, lyrics, and the classifier verdict. Each gatherer wraps one
// external call and translates its failures; only metadata and classifier
// failures are fatal to an evaluation.
package signal

import "fmt"

// MetadataError marks a failed track metadata fetch. Fatal for the
// evaluation: no decision can be made without track identity.
type MetadataError struct {
	TrackID string
	Err     error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("metadata fetch failed for track %s: %v", e.TrackID, e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// ClassifierError marks a failed classifier call. Fatal for the
// evaluation; the engine does not retry it.
type ClassifierError struct {
	Err error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier call failed: %v", e.Err)
}

func (e *ClassifierError) Unwrap() error {
	return e.Err
}
