// Package itunes searches the iTunes store catalog.
package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"songdl/internal/core"
)

const defaultBaseURL = "https://itunes.apple.com"

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

func (c *Client) Name() string { return "itunes" }

type searchResponse struct {
	Results []json.RawMessage `json:"results"`
}

type searchResult struct {
	TrackName        string `json:"trackName"`
	ArtistName       string `json:"artistName"`
	CollectionName   string `json:"collectionName"`
	TrackTimeMillis  int    `json:"trackTimeMillis"`
	Country          string `json:"country"`
	PrimaryGenreName string `json:"primaryGenreName"`
	TrackNumber      int    `json:"trackNumber"`
	ReleaseDate      string `json:"releaseDate"`
}

// Search queries the iTunes search API. The market, when set, selects the
// store country, which also drives the candidate's language hint.
func (c *Client) Search(ctx context.Context, query core.Query) ([]core.Candidate, error) {
	c.logger.Info("searching iTunes", zap.Stringer("query", query))

	q := query.Song
	if query.Artist != "" {
		q = query.Song + " " + query.Artist
	}
	params := url.Values{"term": {q}, "entity": {"song"}}
	if query.Market != "" {
		params.Set("country", query.Market)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("itunes search: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("itunes search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("itunes search: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("itunes search: %w", err)
	}

	var search searchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, fmt.Errorf("itunes search: decode response: %w", err)
	}

	candidates := make([]core.Candidate, 0, len(search.Results))
	for _, raw := range search.Results {
		var result searchResult
		if err := json.Unmarshal(raw, &result); err != nil {
			continue
		}

		var releaseDate time.Time
		if result.ReleaseDate != "" {
			releaseDate, _ = time.Parse(time.RFC3339, result.ReleaseDate)
		}

		candidates = append(candidates, core.Candidate{
			Title:       result.TrackName,
			Artists:     []string{result.ArtistName},
			Album:       result.CollectionName,
			Duration:    float64(result.TrackTimeMillis) / 1000,
			Language:    strings.ToLower(result.Country),
			Genre:       result.PrimaryGenreName,
			TrackNumber: result.TrackNumber,
			ReleaseDate: releaseDate,
			Pictures:    pictures(raw),
		})
	}

	c.logger.Debug("iTunes search done", zap.Int("results", len(candidates)))
	return candidates, nil
}

// pictures collects all artworkUrl<size> fields from the raw result. The
// field set varies per result, so the keys are scanned dynamically.
func pictures(raw json.RawMessage) []*core.Picture {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}

	var pics []*core.Picture
	for key, value := range fields {
		sizeStr, ok := strings.CutPrefix(key, "artworkUrl")
		if !ok {
			continue
		}
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			continue
		}
		artworkURL, ok := value.(string)
		if !ok || artworkURL == "" {
			continue
		}
		pics = append(pics, core.NewPicture(artworkURL, size, size))
	}
	return core.ExpandPictureSizes(pics)
}
