// Package lrclib searches the LRCLIB lyrics catalog.
package lrclib

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"songdl/internal/core"
)

const defaultBaseURL = "https://lrclib.net"

// lrcLineRegex matches one "[mm:ss.xx] text" line of an LRC document.
var lrcLineRegex = regexp.MustCompile(`^\[(\d+):(\d+(?:\.\d+)?)\](.*)$`)

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

func (c *Client) Name() string { return "lrclib" }

type searchResult struct {
	ID           int64   `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// Search queries the LRCLIB search endpoint. LRCLIB candidates carry lyrics
// only; their metadata mostly serves ranking and merge backfill.
func (c *Client) Search(ctx context.Context, query core.Query) ([]core.Candidate, error) {
	c.logger.Info("searching LRCLIB", zap.Stringer("query", query))

	params := url.Values{"track_name": {query.Song}}
	if query.Artist != "" {
		params.Set("artist_name", query.Artist)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("lrclib search: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lrclib search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lrclib search: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("lrclib search: %w", err)
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("lrclib search: decode response: %w", err)
	}

	candidates := make([]core.Candidate, 0, len(results))
	for _, result := range results {
		candidates = append(candidates, core.Candidate{
			Title:    result.TrackName,
			Artists:  []string{result.ArtistName},
			Album:    result.AlbumName,
			Duration: result.Duration,
			Lyrics: core.Lyrics{
				Plain:  result.PlainLyrics,
				Synced: ParseLRC(result.SyncedLyrics),
			},
			Extras: core.LyricsExtras{SourceID: strconv.FormatInt(result.ID, 10)},
		})
	}

	c.logger.Debug("LRCLIB search done", zap.Int("results", len(candidates)))
	return candidates, nil
}

// ParseLRC parses an LRC document into timestamped lines. Lines without a
// timestamp and empty lines are skipped.
func ParseLRC(doc string) []core.LyricLine {
	var lines []core.LyricLine
	for _, line := range strings.Split(doc, "\n") {
		match := lrcLineRegex.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			continue
		}
		minutes, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		seconds, err := strconv.ParseFloat(match[2], 64)
		if err != nil {
			continue
		}
		text := strings.TrimSpace(match[3])
		if text == "" {
			continue
		}
		// Round to milliseconds so float noise cannot shift the timestamp.
		ms := math.Round((float64(minutes)*60 + seconds) * 1000)
		at := time.Duration(ms) * time.Millisecond
		lines = append(lines, core.LyricLine{Text: text, At: at})
	}
	return lines
}
