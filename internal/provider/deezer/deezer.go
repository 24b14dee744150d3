// Package deezer searches the Deezer catalog through its public API.
package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"songdl/internal/core"
)

const defaultBaseURL = "https://api.deezer.com"

// appStateRegex extracts the JSON blob embedded in a Deezer track page.
var appStateRegex = regexp.MustCompile(`window\.__DZR_APP_STATE__ ?= ?(.*?);?</script>`)

// coverSizes maps the named album cover keys to their pixel sizes, used when
// the size cannot be read back from the cover URL.
var coverSizes = map[string]int{
	"cover_small":  56,
	"cover_medium": 250,
	"cover_big":    500,
	"cover_xl":     1000,
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) Name() string { return "deezer" }

type searchResponse struct {
	Data []searchTrack `json:"data"`
}

type searchTrack struct {
	Title    string  `json:"title"`
	Link     string  `json:"link"`
	Duration float64 `json:"duration"`
	Artist   struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		Title       string `json:"title"`
		CoverSmall  string `json:"cover_small"`
		CoverMedium string `json:"cover_medium"`
		CoverBig    string `json:"cover_big"`
		CoverXL     string `json:"cover_xl"`
	} `json:"album"`
}

// Search queries the Deezer track search endpoint. Lyrics are left to a
// deferred fetch of the track page, which is only downloaded when a Deezer
// candidate actually wins the lyrics merge.
func (c *Client) Search(ctx context.Context, query core.Query) ([]core.Candidate, error) {
	c.logger.Info("searching Deezer", zap.Stringer("query", query))

	q := query.Song
	if query.Artist != "" {
		q = query.Song + " " + query.Artist
	}

	endpoint := c.baseURL + "/search/track?" + url.Values{"q": {q}}.Encode()
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("deezer search: %w", err)
	}

	var search searchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, fmt.Errorf("deezer search: decode response: %w", err)
	}

	candidates := make([]core.Candidate, 0, len(search.Data))
	for _, result := range search.Data {
		link := result.Link
		candidate := core.Candidate{
			Title:    result.Title,
			Artists:  []string{result.Artist.Name},
			Album:    result.Album.Title,
			Duration: result.Duration,
			Pictures: c.pictures(result),
		}
		if link != "" {
			candidate = candidate.WithLazyLyrics(func(ctx context.Context) (core.Lyrics, error) {
				return c.fetchLyrics(ctx, link)
			})
		}
		candidates = append(candidates, candidate)
	}

	c.logger.Debug("Deezer search done", zap.Int("results", len(candidates)))
	return candidates, nil
}

func (c *Client) pictures(result searchTrack) []*core.Picture {
	covers := map[string]string{
		"cover_small":  result.Album.CoverSmall,
		"cover_medium": result.Album.CoverMedium,
		"cover_big":    result.Album.CoverBig,
		"cover_xl":     result.Album.CoverXL,
	}

	var pictures []*core.Picture
	for key, coverURL := range covers {
		if coverURL == "" {
			continue
		}
		size := sizeFromURL(coverURL)
		if size == 0 {
			size = coverSizes[key]
		}
		if size == 0 {
			continue
		}
		pictures = append(pictures, core.NewPicture(coverURL, size, size))
	}
	return core.ExpandPictureSizes(pictures)
}

// sizeFromURL reads the size out of cover URLs shaped like ".../250x250-....jpg".
func sizeFromURL(coverURL string) int {
	base := coverURL[strings.LastIndex(coverURL, "/")+1:]
	sizeStr, rest, ok := strings.Cut(base, "x")
	if !ok {
		return 0
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil || !strings.HasPrefix(rest, sizeStr) {
		return 0
	}
	return size
}

// fetchLyrics downloads a Deezer track page and extracts the synchronized
// lyrics from the embedded application state.
func (c *Client) fetchLyrics(ctx context.Context, link string) (core.Lyrics, error) {
	c.logger.Info("downloading Deezer track page", zap.String("link", link))

	body, err := c.get(ctx, link)
	if err != nil {
		return core.Lyrics{}, fmt.Errorf("deezer track page: %w", err)
	}

	match := appStateRegex.FindSubmatch(body)
	if match == nil {
		c.logger.Debug("no application state in Deezer track page")
		return core.Lyrics{}, nil
	}

	var state struct {
		Lyrics struct {
			Text string `json:"LYRICS_TEXT"`
			Sync []struct {
				Line         string `json:"line"`
				Milliseconds string `json:"milliseconds"`
			} `json:"LYRICS_SYNC_JSON"`
		} `json:"LYRICS"`
	}
	if err := json.Unmarshal(match[1], &state); err != nil {
		c.logger.Debug("Deezer application state decode failed", zap.Error(err))
		return core.Lyrics{}, nil
	}

	lyrics := core.Lyrics{Plain: state.Lyrics.Text}
	for _, line := range state.Lyrics.Sync {
		if line.Line == "" {
			continue
		}
		ms, err := strconv.Atoi(line.Milliseconds)
		if err != nil {
			continue
		}
		lyrics.Synced = append(lyrics.Synced, core.LyricLine{
			Text: line.Line,
			At:   time.Duration(ms) * time.Millisecond,
		})
	}
	return lyrics, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
