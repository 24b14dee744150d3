package download

import (
	"strings"
	"testing"

	"github.com/wader/goutubedl"

	"songdl/internal/progress"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Queen - Bohemian Rhapsody", "Queen - Bohemian Rhapsody"},
		{`AC/DC: "Back in Black"?`, "AC_DC_ _Back in Black__"},
		{"...", "song"},
		{"", "song"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProgressReader(t *testing.T) {
	task := progress.NewTask("download")
	task.SetTotal(11)

	reader := &progressReader{reader: strings.NewReader("hello world"), task: task}
	buf := make([]byte, 4)
	for {
		if _, err := reader.Read(buf); err != nil {
			break
		}
	}

	if got := task.Completed(); got != 11 {
		t.Errorf("Completed = %v, want 11", got)
	}
}

func TestMetadataCandidate(t *testing.T) {
	info := goutubedl.Info{
		ID:        "vid1",
		Title:     "Daft Punk - Get Lucky (Official Audio)",
		Track:     "Get Lucky",
		Artist:    "Daft Punk",
		Album:     "Random Access Memories",
		Duration:  369,
		ViewCount: 1000,
		Thumbnail: "https://i.ytimg.example/vid1.jpg",
	}

	c := metadataCandidate(info)
	if c.Title != "Get Lucky" {
		t.Errorf("Title = %q", c.Title)
	}
	if c.ArtistText() != "Daft Punk" {
		t.Errorf("Artists = %v", c.Artists)
	}
	if c.Album != "Random Access Memories" || c.Duration != 369 {
		t.Errorf("unexpected candidate %v", c)
	}
	if len(c.Pictures) != 1 {
		t.Errorf("Pictures = %v", c.Pictures)
	}
}

func TestMetadataCandidateTopicChannelFallback(t *testing.T) {
	c := metadataCandidate(goutubedl.Info{
		ID:      "vid2",
		Title:   "Some Song",
		Channel: "Queen - Topic",
	})
	if c.Title != "Some Song" {
		t.Errorf("Title = %q", c.Title)
	}
	if c.ArtistText() != "Queen" {
		t.Errorf("Artists = %v", c.Artists)
	}
}
