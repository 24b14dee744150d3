package core

import (
	"time"
)

type Config struct {
	Providers ProvidersConfig
	Ranking   RankWeights
	Spotify   SpotifyConfig
	Download  DownloadConfig
	Log       LogConfig
	App       AppConfig
}

// ProvidersConfig fixes the provider confidence order used for reference
// building, metadata merging and final candidate selection.
type ProvidersConfig struct {
	// Order lists provider names from most to least trusted. The first
	// entry defines ground truth and its results are never reranked.
	Order []string
	// Playable lists the providers whose candidates reference a
	// downloadable asset. Selection among them follows Order; the first
	// entry is the primary playable source, and when it returns nothing
	// the whole resolution fails early.
	Playable []string
	// Timeout applies to each provider search request.
	Timeout time.Duration
}

// Primary returns the primary playable-source provider name.
func (p ProvidersConfig) Primary() string {
	if len(p.Playable) == 0 {
		return ""
	}
	return p.Playable[0]
}

// IsPlayable reports whether the named provider yields downloadable candidates.
func (p ProvidersConfig) IsPlayable(name string) bool {
	for _, n := range p.Playable {
		if n == name {
			return true
		}
	}
	return false
}

// RankWeights holds the ranking constants. The values are tuned empirically
// and kept for behavioral compatibility; change them only as configuration.
type RankWeights struct {
	Artist     float64
	Name       float64
	Official   float64
	Copyright  float64
	Time       float64
	Popularity float64
	Discard    float64
	Divisor    float64

	// ArtistFloor and NameFloor gate the fuzzy similarity scores.
	ArtistFloor float64
	NameFloor   float64
	// GraceSeconds is the duration drift tolerated before the quadratic
	// time penalty kicks in.
	GraceSeconds float64
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	TokenPath    string
}

type DownloadConfig struct {
	OutputDir   string
	ResolveOnly bool
}

type LogConfig struct {
	Level string
}

type AppConfig struct {
	// MaxWorkers bounds the number of songs resolved at the same time.
	MaxWorkers int
	// ProviderWorkers bounds the per-song provider fan-out.
	ProviderWorkers int
	// HistorySize caps the dedup history kept across a batch run.
	HistorySize int
}

func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Order:    []string{"spotify", "itunes", "lrclib", "deezer", "youtube"},
			Playable: []string{"youtube"},
			Timeout:  15 * time.Second,
		},
		Ranking: DefaultRankWeights(),
		Spotify: SpotifyConfig{
			TokenPath: "./spotify_token.json",
		},
		Download: DownloadConfig{
			OutputDir: ".",
		},
		Log: LogConfig{
			Level: "info",
		},
		App: AppConfig{
			MaxWorkers:      10,
			ProviderWorkers: 10,
			HistorySize:     10000,
		},
	}
}

func DefaultRankWeights() RankWeights {
	return RankWeights{
		Artist:       1,
		Name:         1,
		Official:     2,
		Copyright:    2,
		Time:         3,
		Popularity:   0.5,
		Discard:      2,
		Divisor:      11.5,
		ArtistFloor:  0.85,
		NameFloor:    0.6,
		GraceSeconds: 4,
	}
}
