package model

// TrackSignals is the full set of inputs gathered for one evaluation.
// Constructed once per evaluation and read-only thereafter.
type TrackSignals struct {
	TrackID    string  `json:"track_id"`
	Name       string  `json:"name"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album,omitempty"`
	Explicit   bool    `json:"explicit"`
	Popularity int     `json:"popularity"`
	DurationMs int     `json:"duration_ms"`
	LyricsText *string `json:"lyrics_text,omitempty"`
}

// TrackInfo is the compact track summary carried on decisions and audit
// events. Lyrics are deliberately excluded.
type TrackInfo struct {
	TrackID    string `json:"track_id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Explicit   bool   `json:"explicit"`
	Popularity int    `json:"popularity"`
	DurationMs int    `json:"duration_ms"`
}

// Info returns the persistable summary of the signals.
func (t TrackSignals) Info() TrackInfo {
	return TrackInfo{
		TrackID:    t.TrackID,
		Name:       t.Name,
		Artist:     t.Artist,
		Explicit:   t.Explicit,
		Popularity: t.Popularity,
		DurationMs: t.DurationMs,
	}
}

// Lyrics returns the lyrics text, or "" when none were found.
func (t TrackSignals) Lyrics() string {
	if t.LyricsText == nil {
		return ""
	}
	return *t.LyricsText
}

// LyricsFound reports whether non-empty lyrics were gathered.
func (t TrackSignals) LyricsFound() bool {
	return t.LyricsText != nil && *t.LyricsText != ""
}
