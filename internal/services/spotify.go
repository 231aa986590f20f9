// Spotify Web API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

type followers struct {
	Total int `json:"total"`
}

// ExternalURLs holds the public web links of a Spotify object.
type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID           string         `json:"id"`
	DisplayName  string         `json:"display_name"`
	Email        string         `json:"email"`
	Country      string         `json:"country"`
	Product      string         `json:"product"` // premium, free, etc.
	URI          string         `json:"uri"`
	Href         string         `json:"href"`
	ExternalURLs ExternalURLs   `json:"external_urls"`
	Followers    followers      `json:"followers"`
	Images       []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// Device is the playback target reported by the player endpoint.
type Device struct {
	ID               string `json:"id"`
	IsActive         bool   `json:"is_active"`
	IsPrivateSession bool   `json:"is_private_session"`
	IsRestricted     bool   `json:"is_restricted"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	VolumePercent    int    `json:"volume_percent"`
}

// CurrentlyPlaying is the playback state of the user's active device.
type CurrentlyPlaying struct {
	IsPlaying    bool          `json:"is_playing"`
	Item         *SpotifyTrack `json:"item"`
	ProgressMS   int           `json:"progress_ms"`
	Device       Device        `json:"device"`
	RepeatState  RepeatMode    `json:"repeat_state"`
	ShuffleState bool          `json:"shuffle_state"`
}

// NothingPlaying is the playback state reported when no device is active.
func NothingPlaying() *CurrentlyPlaying {
	return &CurrentlyPlaying{
		Device: Device{
			Name: "Unknown",
			Type: "Unknown",
		},
		RepeatState: RepeatOff,
	}
}

// APIError is a non-2xx response from the Web API.
type APIError struct {
	StatusCode int
	Message    string
	Reason     string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%v: status %d", shared.ErrAPIRequest, e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound && e.Reason == "NO_ACTIVE_DEVICE":
		return shared.ErrNoActiveDevice
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= 500:
		return shared.ErrServiceUnavailable
	default:
		return shared.ErrAPIRequest
	}
}

// SpotifyOptions configures a [SpotifyService]. Zero values select Spotify's API and [http.DefaultClient].
type SpotifyOptions struct {
	BaseURL           string
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Logger            *log.Logger
}

// SpotifyService implements [Service] against the Spotify Web API.
//
// Requests carry the bearer token through an [oauth2.Transport] and are paced by a [rate.Limiter].
type SpotifyService struct {
	baseURL    string
	base       *http.Client
	token      *oauth2.Token
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewSpotifyService creates an unauthenticated Spotify service.
func NewSpotifyService(opts SpotifyOptions) *SpotifyService {
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &SpotifyService{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		base:    opts.HTTPClient,
		limiter: rate.NewLimiter(limit, 1),
		logger:  opts.Logger,
	}
}

// Authenticate installs token for subsequent requests.
func (s *SpotifyService) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return shared.ErrNotAuthenticated
	}

	s.token = token
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.base)
	s.httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	return nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated request and decodes a JSON body into result when one is present.
//
// The status code is returned so callers can treat 204 and 404 specially.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, query url.Values, result any) (int, error) {
	if s.token == nil {
		return 0, fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	s.logger.Debug("spotify request", "method", method, "endpoint", endpoint)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, shared.ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, decodeAPIError(resp)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		if errors.Is(err, io.EOF) {
			return http.StatusNoContent, nil
		}
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}

	return resp.StatusCode, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Error struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
			Reason  string `json:"reason"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		apiErr.Message = body.Error.Message
		apiErr.Reason = body.Error.Reason
	}

	return apiErr
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if _, err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentlyPlaying retrieves the playback state, or [NothingPlaying] when no device is active.
func (s *SpotifyService) CurrentlyPlaying(ctx context.Context) (*CurrentlyPlaying, error) {
	var playing CurrentlyPlaying
	status, err := s.doRequest(ctx, http.MethodGet, "/me/player", nil, &playing)

	switch {
	case status == http.StatusNoContent, status == http.StatusNotFound:
		return NothingPlaying(), nil
	case err != nil:
		return nil, err
	}

	if playing.RepeatState == "" {
		playing.RepeatState = RepeatOff
	}
	return &playing, nil
}

// Next skips to the next track.
func (s *SpotifyService) Next(ctx context.Context) error {
	_, err := s.doRequest(ctx, http.MethodPost, "/me/player/next", nil, nil)
	return err
}

// Previous skips to the previous track.
func (s *SpotifyService) Previous(ctx context.Context) error {
	_, err := s.doRequest(ctx, http.MethodPost, "/me/player/previous", nil, nil)
	return err
}

// SetVolume sets the active device's volume, percent in [0, 100].
func (s *SpotifyService) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: volume must be within [0, 100], got %d", shared.ErrInvalidArgument, percent)
	}

	query := url.Values{"volume_percent": {strconv.Itoa(percent)}}
	_, err := s.doRequest(ctx, http.MethodPut, "/me/player/volume", query, nil)
	return err
}

// SetRepeat sets the repeat mode.
func (s *SpotifyService) SetRepeat(ctx context.Context, mode RepeatMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: repeat mode %q", shared.ErrInvalidArgument, mode)
	}

	query := url.Values{"state": {string(mode)}}
	_, err := s.doRequest(ctx, http.MethodPut, "/me/player/repeat", query, nil)
	return err
}

// SetShuffle turns shuffle on or off.
func (s *SpotifyService) SetShuffle(ctx context.Context, on bool) error {
	query := url.Values{"state": {strconv.FormatBool(on)}}
	_, err := s.doRequest(ctx, http.MethodPut, "/me/player/shuffle", query, nil)
	return err
}
