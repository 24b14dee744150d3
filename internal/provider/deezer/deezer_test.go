package deezer

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

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(5*time.Second, zap.NewNop())
	client.baseURL = server.URL
	return client
}

func TestSearch(t *testing.T) {
	var pageHits int

	mux := http.NewServeMux()
	mux.HandleFunc("/search/track", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "Get Lucky Daft Punk" {
			t.Errorf("q = %q, want joined song and artist", got)
		}
		host := "http://" + r.Host
		fmt.Fprintf(w, `{"data": [{
			"title": "Get Lucky",
			"link": %q,
			"duration": 369,
			"artist": {"name": "Daft Punk"},
			"album": {
				"title": "Random Access Memories",
				"cover_medium": "https://cdn.example/250x250-000.jpg",
				"cover_xl": "https://cdn.example/1000x1000-000.jpg"
			}
		}]}`, host+"/track/3135556")
	})
	mux.HandleFunc("/track/3135556", func(w http.ResponseWriter, _ *http.Request) {
		pageHits++
		fmt.Fprint(w, `<html><script>window.__DZR_APP_STATE__ = {"LYRICS": {"LYRICS_TEXT": "Like the legend of the phoenix", "LYRICS_SYNC_JSON": [{"line": "Like the legend of the phoenix", "milliseconds": "12000"}, {"line": "", "milliseconds": "15000"}, {"line": "All ends with beginnings", "milliseconds": "16500"}]}};</script></html>`)
	})

	client := newTestClient(t, mux)

	candidates, err := client.Search(context.Background(), core.Query{Song: "Get Lucky", Artist: "Daft Punk"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}

	c := candidates[0]
	if c.Title != "Get Lucky" || c.ArtistText() != "Daft Punk" {
		t.Errorf("unexpected candidate %v", c)
	}
	if c.Duration != 369 {
		t.Errorf("Duration = %v, want 369", c.Duration)
	}
	if len(c.Pictures) == 0 || c.Pictures[0].Size() < 1000 {
		t.Errorf("pictures not sorted biggest first: %+v", c.Pictures)
	}

	if pageHits != 0 {
		t.Fatalf("track page fetched eagerly")
	}

	lyrics, err := c.FetchLyrics(context.Background())
	if err != nil {
		t.Fatalf("FetchLyrics: %v", err)
	}
	if pageHits != 1 {
		t.Errorf("track page hits = %d, want 1", pageHits)
	}
	if lyrics.Plain == "" {
		t.Error("plain lyrics missing")
	}
	if len(lyrics.Synced) != 2 {
		t.Fatalf("got %d synced lines, want 2 (empty line dropped)", len(lyrics.Synced))
	}
	if lyrics.Synced[0].At != 12*time.Second {
		t.Errorf("first line at %v, want 12s", lyrics.Synced[0].At)
	}

	// The fetch is memoized.
	if _, err := c.FetchLyrics(context.Background()); err != nil {
		t.Fatalf("second FetchLyrics: %v", err)
	}
	if pageHits != 1 {
		t.Errorf("track page refetched, hits = %d", pageHits)
	}
}

func TestSearchEmptyResponse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data": []}`)
	}))

	candidates, err := client.Search(context.Background(), core.Query{Song: "nothing"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("got %d candidates, want 0", len(candidates))
	}
}

func TestSearchBadStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	if _, err := client.Search(context.Background(), core.Query{Song: "x"}); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestSizeFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"https://cdn.example/250x250-80-0-0.jpg", 250},
		{"https://cdn.example/1000x1000.jpg", 1000},
		{"https://cdn.example/cover.jpg", 0},
		{"https://cdn.example/axb.jpg", 0},
	}
	for _, tt := range tests {
		if got := sizeFromURL(tt.url); got != tt.want {
			t.Errorf("sizeFromURL(%q) = %d, want %d", tt.url, got, tt.want)
		}
	}
}
