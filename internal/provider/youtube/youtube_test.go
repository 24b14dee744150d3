package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"songdl/internal/core"
)

const resultsPage = `<html><script>var ytInitialData = {"contents": {"twoColumnSearchResultsRenderer": {"primaryContents": {"sectionListRenderer": {"contents": [{"itemSectionRenderer": {"contents": [{"videoRenderer": {"videoId": "dQw4w9WgXcQ", "title": {"runs": [{"text": "Rick Astley - Never Gonna Give You Up"}]}, "ownerText": {"runs": [{"text": "Rick Astley"}]}, "lengthText": {"simpleText": "3:33"}, "viewCountText": {"simpleText": "1 234 567 890 views"}, "ownerBadges": [{"metadataBadgeRenderer": {"style": "BADGE_STYLE_TYPE_VERIFIED_ARTIST"}}], "thumbnail": {"thumbnails": [{"url": "https://i.ytimg.example/default.jpg", "width": 120}, {"url": "https://i.ytimg.example/hq720.jpg", "width": 720}]}}}, {"promotedSparklesTextSearchRenderer": {}}, {"videoRenderer": {"videoId": "abc123", "title": {"runs": [{"text": "never gonna give you up 10 hours"}]}, "ownerText": {"runs": [{"text": "LoopChannel"}]}, "lengthText": {"simpleText": "10:00:00"}, "viewCountText": {"simpleText": "5,021 views"}}}]}}, {"somethingElse": {}}]}}}}};</script></html>`

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("search_query"); got != "Never Gonna Give You Up Rick Astley" {
			t.Errorf("search_query = %q", got)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("User-Agent not set")
		}
		fmt.Fprint(w, resultsPage)
	}))
	defer server.Close()

	client := NewClient(5*time.Second, zap.NewNop())
	client.baseURL = server.URL

	candidates, err := client.Search(context.Background(), core.Query{
		Song:   "Never Gonna Give You Up",
		Artist: "Rick Astley",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}

	c := candidates[0]
	if c.Title != "Never Gonna Give You Up" {
		t.Errorf("Title = %q", c.Title)
	}
	if len(c.Artists) != 2 || c.Artists[0] != "Rick Astley" {
		t.Errorf("Artists = %v", c.Artists)
	}
	if c.Duration != 213 {
		t.Errorf("Duration = %v, want 213", c.Duration)
	}
	if len(c.Pictures) != 1 || c.Pictures[0].URL != "https://i.ytimg.example/hq720.jpg" {
		t.Errorf("Pictures = %+v", c.Pictures)
	}
	extras, ok := c.Extras.(core.VideoExtras)
	if !ok {
		t.Fatalf("Extras = %+v", c.Extras)
	}
	if extras.VideoID != "dQw4w9WgXcQ" || extras.Views != 1234567890 || !extras.Verified {
		t.Errorf("VideoExtras = %+v", extras)
	}

	second, ok := candidates[1].Extras.(core.VideoExtras)
	if !ok || second.Verified {
		t.Errorf("second video should not be verified: %+v", candidates[1].Extras)
	}
	if candidates[1].Duration != 36000 {
		t.Errorf("Duration = %v, want 36000", candidates[1].Duration)
	}
}

func TestSearchNoInitialData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html>nothing here</html>")
	}))
	defer server.Close()

	client := NewClient(5*time.Second, zap.NewNop())
	client.baseURL = server.URL

	if _, err := client.Search(context.Background(), core.Query{Song: "x"}); err == nil {
		t.Fatal("expected error when initial data is missing")
	}
}

func TestParseTitle(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		channel string
		want    string
		artists []string
	}{
		{
			name:    "artist dash title",
			title:   "Daft Punk - Get Lucky",
			channel: "DaftPunkVEVO",
			want:    "Get Lucky",
			artists: []string{"Daft Punk", "DaftPunkVEVO"},
		},
		{
			name:    "feat clause",
			title:   "Uptown Funk ft. Bruno Mars",
			channel: "Mark Ronson",
			want:    "Uptown Funk",
			artists: []string{"Bruno Mars", "Mark Ronson"},
		},
		{
			name:    "dash and feat",
			title:   "Mark Ronson - Uptown Funk (feat. Bruno Mars)",
			channel: "MarkRonsonVEVO",
			want:    "Uptown Funk",
			artists: []string{"Mark Ronson", "Bruno Mars", "MarkRonsonVEVO"},
		},
		{
			name:    "plain title",
			title:   "Bohemian Rhapsody",
			channel: "Queen Official",
			want:    "Bohemian Rhapsody",
			artists: []string{"Queen Official"},
		},
		{
			name:    "no false feat inside word",
			title:   "Left Outside Alone",
			channel: "Anastacia",
			want:    "Left Outside Alone",
			artists: []string{"Anastacia"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, artists := parseTitle(tt.title, tt.channel)
			if title != tt.want {
				t.Errorf("title = %q, want %q", title, tt.want)
			}
			if len(artists) != len(tt.artists) {
				t.Fatalf("artists = %v, want %v", artists, tt.artists)
			}
			for i := range artists {
				if artists[i] != tt.artists[i] {
					t.Errorf("artists[%d] = %q, want %q", i, artists[i], tt.artists[i])
				}
			}
		})
	}
}

func TestParseLength(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"", 0},
		{"0:45", 45},
		{"3:33", 213},
		{"1:02:03", 3723},
	}
	for _, tt := range tests {
		if got := parseLength(tt.text); got != tt.want {
			t.Errorf("parseLength(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestParseViews(t *testing.T) {
	tests := []struct {
		text string
		want int64
	}{
		{"12 345 views", 12345},
		{"1,234 views", 1234},
		{"No views", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseViews(tt.text); got != tt.want {
			t.Errorf("parseViews(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestDig(t *testing.T) {
	data := map[string]any{
		"a": map[string]any{
			"b": []any{map[string]any{"c": "found"}},
		},
	}

	if got := digString(data, "a", "b", 0, "c"); got != "found" {
		t.Errorf("digString = %q", got)
	}
	if got := dig(data, "a", "missing", 0); got != nil {
		t.Errorf("dig(missing) = %v, want nil", got)
	}
	if got := dig(data, "a", "b", 5); got != nil {
		t.Errorf("dig(out of range) = %v, want nil", got)
	}
}
