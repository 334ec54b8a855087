// Package spotify provides the Spotify catalog used to resolve albums,
// artists and searches into audio records.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/osa030/queuesync/internal/domain/audio"
)

const (
	defaultMarket = "JP"
	searchLimit   = 50
	albumPageSize = 50
)

// Client is a Spotify catalog client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// New creates a client authenticated with the client credentials flow.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if _, err := creds.Token(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to obtain spotify token")
	}

	return newClient(creds.Client(ctx), cfg.Market), nil
}

func newClient(httpClient *http.Client, market string, opts ...spotify.ClientOption) *Client {
	if market == "" {
		market = defaultMarket
	}
	return &Client{
		client:     spotify.New(httpClient, opts...),
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// GetAudio retrieves an audio by ID, URL, or URI.
func (c *Client) GetAudio(ctx context.Context, trackID string) (audio.Audio, error) {
	id := extractID(trackID, "track")

	var result *spotify.FullTrack
	err := c.retry(ctx, func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return audio.Audio{}, errors.Wrapf(err, "failed to get track: %s", id)
	}

	return convertTrack(result), nil
}

// AlbumAudios retrieves every track of an album by ID, URL, or URI.
func (c *Client) AlbumAudios(ctx context.Context, albumID string) ([]audio.Audio, error) {
	id := spotify.ID(extractID(albumID, "album"))
	if id == "" {
		return nil, errors.New("invalid album id")
	}

	var album *spotify.FullAlbum
	err := c.retry(ctx, func() error {
		a, err := c.client.GetAlbum(ctx, id, spotify.Market(c.market))
		if err != nil {
			return err
		}
		album = a
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get album: %s", id)
	}

	tracks := append([]spotify.SimpleTrack(nil), album.Tracks.Tracks...)
	for offset := len(tracks); offset < int(album.Tracks.Total); offset = len(tracks) {
		var page *spotify.SimpleTrackPage
		err := c.retry(ctx, func() error {
			p, err := c.client.GetAlbumTracks(ctx, id,
				spotify.Limit(albumPageSize),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get album tracks: %s", id)
		}
		if len(page.Tracks) == 0 {
			break
		}
		tracks = append(tracks, page.Tracks...)
	}

	audios := make([]audio.Audio, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" {
			continue
		}
		audios = append(audios, convertAlbumTrack(t, album.SimpleAlbum))
	}
	return audios, nil
}

// ArtistAudios retrieves an artist's top tracks by ID, URL, or URI.
func (c *Client) ArtistAudios(ctx context.Context, artistID string) ([]audio.Audio, error) {
	id := spotify.ID(extractID(artistID, "artist"))
	if id == "" {
		return nil, errors.New("invalid artist id")
	}

	var tracks []spotify.FullTrack
	err := c.retry(ctx, func() error {
		t, err := c.client.GetArtistsTopTracks(ctx, id, c.market)
		if err != nil {
			return err
		}
		tracks = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get artist top tracks: %s", id)
	}

	audios := make([]audio.Audio, 0, len(tracks))
	for i := range tracks {
		audios = append(audios, convertTrack(&tracks[i]))
	}
	return audios, nil
}

// SearchAudios searches tracks.
func (c *Client) SearchAudios(ctx context.Context, query string) ([]audio.Audio, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query is required")
	}

	var result *spotify.SearchResult
	err := c.retry(ctx, func() error {
		r, err := c.client.Search(ctx, query, spotify.SearchTypeTrack,
			spotify.Limit(searchLimit),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search")
	}
	if result.Tracks == nil {
		return []audio.Audio{}, nil
	}

	audios := make([]audio.Audio, 0, len(result.Tracks.Tracks))
	for i := range result.Tracks.Tracks {
		audios = append(audios, convertTrack(&result.Tracks.Tracks[i]))
	}
	return audios, nil
}

// convertTrack converts a Spotify FullTrack to a domain Audio.
func convertTrack(t *spotify.FullTrack) audio.Audio {
	return convertAlbumTrack(t.SimpleTrack, t.Album)
}

// convertAlbumTrack converts a track of album to a domain Audio.
func convertAlbumTrack(t spotify.SimpleTrack, album spotify.SimpleAlbum) audio.Audio {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var cover string
	if len(album.Images) > 0 {
		cover = album.Images[0].URL
	}

	return audio.Audio{
		ID:       string(t.ID),
		Title:    t.Name,
		Artist:   strings.Join(artists, ", "),
		Album:    album.Name,
		Duration: time.Duration(t.Duration) * time.Millisecond,
		CoverURL: cover,
		URL:      TrackURL(string(t.ID)),
		Explicit: t.Explicit,
	}
}

// TrackURL returns the Spotify URL for a track.
func TrackURL(trackID string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", trackID)
}

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry aborted")
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se spotify.Error
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= http.StatusInternalServerError
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractID extracts the id of the given kind ("track", "album", "artist")
// from a Spotify URL or URI. Anything else is returned trimmed, assumed to be
// an id already.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)
	// Handle Spotify URI format: spotify:KIND:ID
	if prefix := "spotify:" + kind + ":"; strings.HasPrefix(input, prefix) {
		return strings.TrimPrefix(input, prefix)
	}

	// Handle URL format: https://open.spotify.com/KIND/ID or https://open.spotify.com/intl-XX/KIND/ID
	segment := "/" + kind + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, segment) {
		parts := strings.Split(input, segment)
		// Remove query parameters and trailing slashes
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return input
}
