// Package youtube searches YouTube by scraping the results page. YouTube is
// the playable source: its candidates reference the video the audio is
// downloaded from.
package youtube

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

const (
	defaultBaseURL = "https://www.youtube.com"
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64; rv:139.0) Gecko/20100101 Firefox/139.0"
	verifiedBadge  = "BADGE_STYLE_TYPE_VERIFIED_ARTIST"
)

var (
	initialDataRegex = regexp.MustCompile(`var ytInitialData = (.*?);</script>`)
	featRegex        = regexp.MustCompile(`(?i)^(.*)[(\[]?\bf(?:ea)?t\b\.?(.*?)[)\]]?([(\[].*)?[)\]]?$`)
)

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

func (c *Client) Name() string { return "youtube" }

// Search scrapes the results page for videos matching the query. There is no
// structured metadata: titles are parsed heuristically into title and
// artists, with the channel name as the last-resort artist.
func (c *Client) Search(ctx context.Context, query core.Query) ([]core.Candidate, error) {
	c.logger.Info("searching YouTube", zap.Stringer("query", query))

	q := query.Song
	if query.Artist != "" {
		q = query.Song + " " + query.Artist
	}

	endpoint := c.baseURL + "/results?" + url.Values{"search_query": {q}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	// Skip the EU consent interstitial.
	req.Header.Set("Cookie", "CONSENT=YES+cb; SOCS=CAI")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube search: unexpected status %d", resp.StatusCode)
	}
	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	c.logger.Debug("YouTube results page fetched", zap.Int("bytes", len(page)))

	match := initialDataRegex.FindSubmatch(page)
	if match == nil {
		return nil, fmt.Errorf("youtube search: no initial data in results page")
	}

	var data map[string]any
	if err := json.Unmarshal(match[1], &data); err != nil {
		return nil, fmt.Errorf("youtube search: decode initial data: %w", err)
	}

	sections := digList(data,
		"contents", "twoColumnSearchResultsRenderer", "primaryContents", "sectionListRenderer", "contents")

	var candidates []core.Candidate
	for _, section := range sections {
		for _, item := range digList(section, "itemSectionRenderer", "contents") {
			// Other renderers (promoted items, shelves) carry no videos.
			video, ok := dig(item, "videoRenderer").(map[string]any)
			if !ok {
				continue
			}
			candidates = append(candidates, mapVideo(video))
		}
	}

	c.logger.Debug("YouTube search done", zap.Int("results", len(candidates)))
	return candidates, nil
}

func mapVideo(video map[string]any) core.Candidate {
	rawTitle := digString(video, "title", "runs", 0, "text")
	channel := digString(video, "ownerText", "runs", 0, "text")

	verified := false
	for _, badge := range digList(video, "ownerBadges") {
		if digString(badge, "metadataBadgeRenderer", "style") == verifiedBadge {
			verified = true
		}
	}

	title, artists := parseTitle(rawTitle, channel)

	var pictures []*core.Picture
	if thumb, width := biggestThumbnail(video); thumb != "" {
		pictures = append(pictures, core.NewPicture(thumb, width, width))
	}

	return core.Candidate{
		Title:    title,
		Artists:  artists,
		Duration: parseLength(digString(video, "lengthText", "simpleText")),
		Pictures: pictures,
		Extras: core.VideoExtras{
			VideoID:  digString(video, "videoId"),
			Views:    parseViews(digString(video, "viewCountText", "simpleText")),
			Verified: verified,
		},
	}
}

// parseTitle splits a video title into song title and artists. A leading
// "Artist - " segment and a "feat." clause both contribute artists; the
// channel name is always appended as a fallback.
func parseTitle(rawTitle, channel string) (string, []string) {
	title := rawTitle
	var artists []string

	if before, after, found := strings.Cut(rawTitle, " - "); found {
		title = strings.TrimSpace(strings.Trim(strings.TrimSpace(after), "-"))
		artists = append(artists, strings.TrimSpace(strings.Trim(strings.TrimSpace(before), "-")))
	}

	if match := featRegex.FindStringSubmatch(title); match != nil {
		first := strings.TrimRight(match[1], "([ ")
		second := match[3]
		if second != "" {
			second = strings.TrimSpace(second[1:])
		}
		title = strings.TrimSpace(first + " " + second)
		artists = append(artists, strings.Trim(match[2], "()[] "))
	}

	artists = append(artists, channel)
	return title, artists
}

// parseLength converts "h:mm:ss" or "m:ss" into seconds.
func parseLength(text string) float64 {
	if text == "" {
		return 0
	}
	parts := strings.Split(text, ":")
	var seconds float64
	for i, part := range parts {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		power := len(parts) - 1 - i
		factor := 1.0
		for ; power > 0; power-- {
			factor *= 60
		}
		seconds += float64(value) * factor
	}
	return seconds
}

// parseViews reads the digits out of a localized view count like
// "12 345 678 views".
func parseViews(text string) int64 {
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	views, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0
	}
	return views
}

func biggestThumbnail(video map[string]any) (string, int) {
	var best string
	var bestWidth int
	for _, thumb := range digList(video, "thumbnail", "thumbnails") {
		width := digInt(thumb, "width")
		if width >= bestWidth {
			if u := digString(thumb, "url"); u != "" {
				best, bestWidth = u, width
			}
		}
	}
	return best, bestWidth
}

// dig walks a decoded JSON tree by string keys and integer indexes,
// returning nil when any step is missing or mistyped.
func dig(value any, path ...any) any {
	for _, step := range path {
		switch key := step.(type) {
		case string:
			m, ok := value.(map[string]any)
			if !ok {
				return nil
			}
			value = m[key]
		case int:
			list, ok := value.([]any)
			if !ok || key < 0 || key >= len(list) {
				return nil
			}
			value = list[key]
		default:
			return nil
		}
	}
	return value
}

func digString(value any, path ...any) string {
	s, _ := dig(value, path...).(string)
	return s
}

func digInt(value any, path ...any) int {
	f, _ := dig(value, path...).(float64)
	return int(f)
}

func digList(value any, path ...any) []any {
	list, _ := dig(value, path...).([]any)
	return list
}
