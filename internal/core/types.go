package core

import (
	"context"
	"time"
)

// Query is an already-parsed song request.
type Query struct {
	Song   string
	Artist string
	Market string
}

// String formats the query for logging.
func (q Query) String() string {
	s := "'" + q.Song + "'"
	if q.Artist != "" {
		s += " - '" + q.Artist + "'"
	}
	if q.Market != "" {
		s += " on '" + q.Market + "' market"
	}
	return s
}

// Extras carries the provider-specific signals of a Candidate as a tagged
// variant, so the ranking engine can match on available fields instead of
// probing ad hoc attributes.
type Extras interface {
	isExtras()
}

// VideoExtras describes a candidate backed by a video platform asset.
type VideoExtras struct {
	VideoID  string
	Views    int64
	Verified bool
}

func (VideoExtras) isExtras() {}

// TrackExtras describes a candidate from an audio metadata catalog.
type TrackExtras struct {
	SourceID string
	Explicit bool
}

func (TrackExtras) isExtras() {}

// LyricsExtras describes a candidate from a lyrics catalog.
type LyricsExtras struct {
	SourceID string
}

func (LyricsExtras) isExtras() {}

// LyricLine is one line of synchronized lyrics.
type LyricLine struct {
	Text string
	At   time.Duration
}

// Lyrics holds plain and, when available, time-synchronized lyrics.
type Lyrics struct {
	Plain  string
	Synced []LyricLine
}

func (l Lyrics) IsZero() bool {
	return l.Plain == "" && len(l.Synced) == 0
}

// Provider searches one metadata or audio source for a song. Implementations
// must be safe for concurrent use and apply their own request timeouts.
type Provider interface {
	Name() string
	Search(ctx context.Context, query Query) ([]Candidate, error)
}
