// Package spotify searches the Spotify catalog through the Web API.
package spotify

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"songdl/internal/core"
	"songdl/internal/store"
)

const (
	// MaxSearchResults limits how many tracks one search contributes.
	MaxSearchResults = 10
	// albumCacheSize bounds the album copyright cache. Search results for one
	// song cluster on a handful of albums, so a small cache absorbs the
	// repeat lookups.
	albumCacheSize = 256
)

type Client struct {
	config *core.SpotifyConfig
	logger *zap.Logger
	tokens *store.TokenCache
	albums *lru.Cache[string, string]
}

func NewClient(config *core.SpotifyConfig, logger *zap.Logger) *Client {
	creds := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	tokens := store.NewTokenCache(config.TokenPath, func(ctx context.Context) (store.Token, error) {
		token, err := creds.Token(ctx)
		if err != nil {
			return store.Token{}, err
		}
		return store.Token{Value: token.AccessToken, Expiry: token.Expiry}, nil
	}, logger)

	albums, _ := lru.New[string, string](albumCacheSize)

	return &Client{
		config: config,
		logger: logger,
		tokens: tokens,
		albums: albums,
	}
}

func (c *Client) Name() string { return "spotify" }

// Search queries the Spotify track search. Album copyrights require one
// extra request per distinct album; the results are cached.
func (c *Client) Search(ctx context.Context, query core.Query) ([]core.Candidate, error) {
	api, err := c.api(ctx)
	if err != nil {
		return nil, fmt.Errorf("spotify search: %w", err)
	}

	c.logger.Info("searching Spotify", zap.Stringer("query", query))

	q := query.Song
	if query.Artist != "" {
		q = query.Song + " " + query.Artist
	}
	opts := []spotify.RequestOption{spotify.Limit(MaxSearchResults)}
	if query.Market != "" {
		opts = append(opts, spotify.Market(query.Market))
	}

	results, err := api.Search(ctx, q, spotify.SearchTypeTrack, opts...)
	if err != nil {
		return nil, fmt.Errorf("spotify search: %w", err)
	}
	if results.Tracks == nil {
		return nil, nil
	}

	candidates := make([]core.Candidate, 0, len(results.Tracks.Tracks))
	for i := range results.Tracks.Tracks {
		track := &results.Tracks.Tracks[i]
		candidates = append(candidates, c.convertTrack(ctx, api, track))
	}

	c.logger.Debug("Spotify search done", zap.Int("results", len(candidates)))
	return candidates, nil
}

// api builds an authenticated API client from the cached app token.
func (c *Client) api(ctx context.Context) (*spotify.Client, error) {
	value, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: value}))
	return spotify.New(httpClient), nil
}

func (c *Client) convertTrack(ctx context.Context, api *spotify.Client, track *spotify.FullTrack) core.Candidate {
	artists := make([]string, 0, len(track.Artists))
	for _, artist := range track.Artists {
		artists = append(artists, artist.Name)
	}

	var pictures []*core.Picture
	for _, image := range track.Album.Images {
		pictures = append(pictures, core.NewPicture(image.URL, int(image.Width), int(image.Height)))
	}

	return core.Candidate{
		Title:       track.Name,
		Artists:     artists,
		Album:       track.Album.Name,
		Duration:    track.TimeDuration().Seconds(),
		ReleaseDate: track.Album.ReleaseDateTime(),
		ISRC:        track.ExternalIDs["isrc"],
		Copyright:   c.albumCopyright(ctx, api, track.Album.ID),
		Pictures:    pictures,
		Extras: core.TrackExtras{
			SourceID: string(track.ID),
			Explicit: track.Explicit,
		},
	}
}

// albumCopyright fetches the album copyright line, memoized per album ID.
// A failed lookup degrades to an empty copyright, never to a search error.
func (c *Client) albumCopyright(ctx context.Context, api *spotify.Client, id spotify.ID) string {
	if id == "" {
		return ""
	}
	if text, ok := c.albums.Get(string(id)); ok {
		return text
	}

	album, err := api.GetAlbum(ctx, id)
	if err != nil {
		c.logger.Debug("album lookup failed", zap.String("album", string(id)), zap.Error(err))
		return ""
	}

	var text string
	for _, cp := range album.Copyrights {
		if cp.Text != "" {
			text = strings.TrimSpace(strings.TrimLeft(cp.Text, "©℗ "))
			break
		}
	}
	c.albums.Add(string(id), text)
	return text
}
