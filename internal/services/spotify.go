// Spotify Web API client built on the OAuth flows.
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/ampyr/internal/shared"
	"golang.org/x/time/rate"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// TokenSource supplies a bearer token for API requests. [oauth.Flow]
// implements it; tests substitute a static source.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type followers struct {
	Total int `json:"total"`
}

// User represents a Spotify user profile.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Country     string    `json:"country"`
	Product     string    `json:"product"` // premium, free, etc.
	Followers   followers `json:"followers"`
	Images      []Image   `json:"images"`
}

// Image represents an image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Artist represents a Spotify artist.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Album represents a Spotify album.
type Album struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []Artist `json:"artists"`
	ReleaseDate string   `json:"release_date"`
	TotalTracks int      `json:"total_tracks"`
	URI         string   `json:"uri"`
}

// Track represents a Spotify track.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMS int      `json:"duration_ms"`
	Explicit   bool     `json:"explicit"`
	Popularity int      `json:"popularity"`
	URI        string   `json:"uri"`
}

type playlistTracks struct {
	Total int `json:"total"`
}

// Playlist represents a simplified playlist object (used in lists).
type Playlist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Public      bool           `json:"public"`
	Tracks      playlistTracks `json:"tracks"`
	URI         string         `json:"uri"`
}

// PaginatedPlaylists represents a paginated response of playlists.
type PaginatedPlaylists struct {
	Items    []Playlist `json:"items"`
	Total    int        `json:"total"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
}

// SpotifyClient performs authenticated, rate-limited calls against the
// Spotify Web API. Tokens come from the injected [TokenSource] per request.
type SpotifyClient struct {
	source     TokenSource
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// ClientOpts configures a [SpotifyClient].
type ClientOpts struct {
	HTTPClient *http.Client  // defaults to http.DefaultClient
	BaseURL    string        // defaults to the public Web API
	Limiter    *rate.Limiter // defaults to ~10 req/s with a small burst
}

// NewSpotifyClient creates a Web API client drawing tokens from source.
func NewSpotifyClient(source TokenSource, opts ClientOpts) (*SpotifyClient, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: token source is required", shared.ErrInvalidArgument)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(10), 5)
	}

	return &SpotifyClient{
		source:     source,
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    limiter,
	}, nil
}

// doRequest performs an authenticated GET against the Web API, decoding the
// JSON response into result.
func (c *SpotifyClient) doRequest(ctx context.Context, endpoint string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	token, err := c.source.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// CurrentUser retrieves the authenticated user's profile.
func (c *SpotifyClient) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.doRequest(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Track retrieves a single track by ID.
func (c *SpotifyClient) Track(ctx context.Context, trackID string) (*Track, error) {
	var track Track
	if err := c.doRequest(ctx, "/tracks/"+url.PathEscape(trackID), &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// UserPlaylists retrieves the current user's playlists with pagination.
func (c *SpotifyClient) UserPlaylists(ctx context.Context, limit, offset int) (*PaginatedPlaylists, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var response PaginatedPlaylists
	if err := c.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	return &response, nil
}
