// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
	"golang.org/x/oauth2"
)

// MockService is a test double for [services.Service].
//
// Calls are recorded by name; Err, when set, is returned from every call after recording it.
type MockService struct {
	mu      sync.Mutex
	Calls   []string
	Profile *services.SpotifyUser
	Playing *services.CurrentlyPlaying
	Token   *oauth2.Token
	Volume  int
	Repeat  services.RepeatMode
	Shuffle bool
	Err     error
}

// NewMockService returns a [MockService] with a profile and a playing track.
func NewMockService() *MockService {
	return &MockService{
		Profile: &services.SpotifyUser{
			ID:           "wizzler",
			DisplayName:  "Wizzler",
			Email:        "wizzler@example.com",
			URI:          "spotify:user:wizzler",
			Href:         "https://api.spotify.com/v1/users/wizzler",
			ExternalURLs: services.ExternalURLs{Spotify: "https://open.spotify.com/user/wizzler"},
		},
		Playing: &services.CurrentlyPlaying{
			IsPlaying: true,
			Item: &services.SpotifyTrack{
				Name:    "Song",
				Artists: []services.SpotifyArtist{{Name: "A"}, {Name: "B"}},
				Album:   services.SpotifyAlbum{Name: "Album", Images: []services.SpotifyImage{{URL: "https://i.scdn.co/image/album"}}},
			},
			Device:      services.Device{Name: "Kitchen", Type: "Speaker", VolumePercent: 40},
			RepeatState: services.RepeatOff,
		},
		Volume: 40,
		Repeat: services.RepeatOff,
	}
}

func (m *MockService) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
	return m.Err
}

// CallNames returns a copy of the recorded calls.
func (m *MockService) CallNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

func (m *MockService) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return shared.ErrNotAuthenticated
	}
	m.Token = token
	return m.record("Authenticate")
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) UserProfile(ctx context.Context) (*services.SpotifyUser, error) {
	if err := m.record("UserProfile"); err != nil {
		return nil, err
	}
	return m.Profile, nil
}

func (m *MockService) CurrentlyPlaying(ctx context.Context) (*services.CurrentlyPlaying, error) {
	if err := m.record("CurrentlyPlaying"); err != nil {
		return nil, err
	}
	if m.Playing == nil {
		return services.NothingPlaying(), nil
	}
	return m.Playing, nil
}

func (m *MockService) Next(ctx context.Context) error     { return m.record("Next") }
func (m *MockService) Previous(ctx context.Context) error { return m.record("Previous") }

func (m *MockService) SetVolume(ctx context.Context, percent int) error {
	if err := m.record("SetVolume"); err != nil {
		return err
	}
	m.Volume = percent
	return nil
}

func (m *MockService) SetRepeat(ctx context.Context, mode services.RepeatMode) error {
	if err := m.record("SetRepeat"); err != nil {
		return err
	}
	m.Repeat = mode
	return nil
}

func (m *MockService) SetShuffle(ctx context.Context, on bool) error {
	if err := m.record("SetShuffle"); err != nil {
		return err
	}
	m.Shuffle = on
	return nil
}

// NewTokenServer starts a token endpoint that issues accessToken for any code and records each form.
func NewTokenServer(t *testing.T, accessToken string) (*httptest.Server, *[]map[string]string) {
	t.Helper()

	var (
		mu    sync.Mutex
		forms []map[string]string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		form := map[string]string{}
		for key := range r.PostForm {
			form[key] = r.PostForm.Get(key)
		}
		mu.Lock()
		forms = append(forms, form)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if form["code_verifier"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_request"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(server.Close)

	return server, &forms
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
