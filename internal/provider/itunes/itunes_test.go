package itunes

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
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("term"); got != "Hey Jude The Beatles" {
			t.Errorf("term = %q", got)
		}
		if got := q.Get("entity"); got != "song" {
			t.Errorf("entity = %q", got)
		}
		if got := q.Get("country"); got != "GB" {
			t.Errorf("country = %q", got)
		}
		fmt.Fprint(w, `{"results": [{
			"trackName": "Hey Jude",
			"artistName": "The Beatles",
			"collectionName": "1 (2015 Version)",
			"trackTimeMillis": 425653,
			"country": "GBR",
			"primaryGenreName": "Rock",
			"trackNumber": 21,
			"releaseDate": "1968-08-26T07:00:00Z",
			"artworkUrl60": "https://is1.example/60x60bb.jpg",
			"artworkUrl100": "https://is1.example/100x100bb.jpg"
		}]}`)
	}))

	candidates, err := client.Search(context.Background(), core.Query{
		Song:   "Hey Jude",
		Artist: "The Beatles",
		Market: "GB",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}

	c := candidates[0]
	if c.Title != "Hey Jude" || c.Album != "1 (2015 Version)" {
		t.Errorf("unexpected candidate %v", c)
	}
	if c.Duration < 425 || c.Duration > 426 {
		t.Errorf("Duration = %v, want ~425.6", c.Duration)
	}
	if c.Language != "gbr" {
		t.Errorf("Language = %q, want %q", c.Language, "gbr")
	}
	if c.Genre != "Rock" || c.TrackNumber != 21 {
		t.Errorf("Genre/TrackNumber = %q/%d", c.Genre, c.TrackNumber)
	}
	if c.ReleaseDate.Year() != 1968 {
		t.Errorf("ReleaseDate = %v", c.ReleaseDate)
	}
	if len(c.Pictures) < 2 {
		t.Fatalf("got %d pictures, want at least the listed ones", len(c.Pictures))
	}
	if c.Pictures[0].Size() != 1200 {
		t.Errorf("biggest picture size = %d, want speculative 1200", c.Pictures[0].Size())
	}
}

func TestSearchDecodeError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "not json")
	}))

	if _, err := client.Search(context.Background(), core.Query{Song: "x"}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSearchNoMarketOmitsCountry(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("country") {
			t.Error("country param sent without market")
		}
		fmt.Fprint(w, `{"results": []}`)
	}))

	if _, err := client.Search(context.Background(), core.Query{Song: "x"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
}
