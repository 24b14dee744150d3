package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Candidate is one provider's proposed match for a song. It is read-only
// after creation; lyrics may be populated lazily on first access.
type Candidate struct {
	Title       string
	Artists     []string
	Album       string
	Duration    float64 // seconds
	ReleaseDate time.Time
	ISRC        string
	Copyright   string
	Genre       string
	Language    string
	TrackNumber int
	Lyrics      Lyrics
	Pictures    []*Picture
	Extras      Extras

	lazyLyrics *LazyLyrics
}

// LazyLyrics memoizes a deferred lyrics fetch. Candidate copies share the
// same instance, so the fetch runs at most once per candidate identity.
type LazyLyrics struct {
	Fetch func(ctx context.Context) (Lyrics, error)

	once sync.Once
	val  Lyrics
	err  error
}

// WithLazyLyrics attaches a deferred lyrics fetch to the candidate.
func (c Candidate) WithLazyLyrics(fetch func(ctx context.Context) (Lyrics, error)) Candidate {
	c.lazyLyrics = &LazyLyrics{Fetch: fetch}
	return c
}

// FetchLyrics returns the candidate's lyrics, running the deferred fetch on
// first access when the eager field is empty.
func (c *Candidate) FetchLyrics(ctx context.Context) (Lyrics, error) {
	if !c.Lyrics.IsZero() || c.lazyLyrics == nil {
		return c.Lyrics, nil
	}
	c.lazyLyrics.once.Do(func() {
		c.lazyLyrics.val, c.lazyLyrics.err = c.lazyLyrics.Fetch(ctx)
	})
	return c.lazyLyrics.val, c.lazyLyrics.err
}

// IsEmpty reports whether the candidate is a placeholder. Empty candidates
// participate in merges as no-ops and never win ranking.
func (c Candidate) IsEmpty() bool {
	return c.Title == "" && len(c.Artists) == 0
}

// ArtistText returns all artist names joined for display and matching.
func (c Candidate) ArtistText() string {
	return strings.Join(c.Artists, ", ")
}

func (c Candidate) String() string {
	return fmt.Sprintf("<%q by %s album %q %.0fs>", c.Title, c.ArtistText(), c.Album, c.Duration)
}

// Merge combines candidates field by field: for every field the first
// non-empty value wins, in the given order. Lyrics fall back to the first
// deferred fetch when no candidate carries them eagerly.
func Merge(candidates []Candidate) Candidate {
	var out Candidate
	for _, c := range candidates {
		if out.Title == "" {
			out.Title = c.Title
		}
		if len(out.Artists) == 0 {
			out.Artists = c.Artists
		}
		if out.Album == "" {
			out.Album = c.Album
		}
		if out.Duration == 0 {
			out.Duration = c.Duration
		}
		if out.ReleaseDate.IsZero() {
			out.ReleaseDate = c.ReleaseDate
		}
		if out.ISRC == "" {
			out.ISRC = c.ISRC
		}
		if out.Copyright == "" {
			out.Copyright = c.Copyright
		}
		if out.Genre == "" {
			out.Genre = c.Genre
		}
		if out.Language == "" {
			out.Language = c.Language
		}
		if out.TrackNumber == 0 {
			out.TrackNumber = c.TrackNumber
		}
		if out.Lyrics.IsZero() {
			out.Lyrics = c.Lyrics
		}
		if out.lazyLyrics == nil {
			out.lazyLyrics = c.lazyLyrics
		}
		if len(out.Pictures) == 0 {
			out.Pictures = c.Pictures
		}
		if out.Extras == nil {
			out.Extras = c.Extras
		}
	}
	return out
}

// Picture is album art hosted by a provider. The image bytes are fetched at
// most once, on first use.
type Picture struct {
	URL    string
	Width  int
	Height int

	once sync.Once
	data []byte
	err  error
}

// NewPicture creates a picture reference. A zero height defaults to width.
func NewPicture(url string, width, height int) *Picture {
	if height == 0 {
		height = width
	}
	return &Picture{URL: url, Width: width, Height: height}
}

// Size is the smallest dimension of the picture.
func (p *Picture) Size() int {
	if p.Width < p.Height {
		return p.Width
	}
	return p.Height
}

// Download fetches and memoizes the image bytes.
func (p *Picture) Download(ctx context.Context) ([]byte, error) {
	p.once.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
		if err != nil {
			p.err = err
			return
		}
		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			p.err = err
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			p.err = fmt.Errorf("picture download returned %d", resp.StatusCode)
			return
		}
		p.data, p.err = io.ReadAll(resp.Body)
	})
	return p.data, p.err
}
