package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
	mocks "github.com/desertthunder/spx/internal/testing"
)

type testApp struct {
	server *httptest.Server
	client *http.Client
	svc    *mocks.MockService
	forms  *[]map[string]string
}

func setup(t *testing.T) *testApp {
	t.Helper()

	tokenServer, forms := mocks.NewTokenServer(t, "abc123")

	config := shared.DefaultConfig()
	config.Credentials.Spotify.ClientID = "client-123"
	config.Credentials.Spotify.RedirectURI = "http://127.0.0.1/callback"
	config.Credentials.Spotify.AuthURL = "https://accounts.example.com/authorize"
	config.Credentials.Spotify.TokenURL = tokenServer.URL
	config.Player.SkipRefreshMS = -1

	svc := mocks.NewMockService()
	app, err := New(Options{
		Config:     config,
		SessionKey: []byte("0123456789abcdef0123456789abcdef"),
		NewService: func() services.Service { return svc },
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	server := httptest.NewServer(app)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}

	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testApp{server: server, client: client, svc: svc, forms: forms}
}

func (ta *testApp) do(t *testing.T, method, path string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(method, ta.server.URL+path, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := ta.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp, string(body)
}

// startLogin hits /login and returns the authorization URL it redirected to.
func (ta *testApp) startLogin(t *testing.T) *url.URL {
	t.Helper()

	resp, _ := ta.do(t, http.MethodGet, "/login")
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302 from /login, got %d", resp.StatusCode)
	}

	authURL, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location: %v", err)
	}
	return authURL
}

func (ta *testApp) login(t *testing.T) {
	t.Helper()

	authURL := ta.startLogin(t)
	state := authURL.Query().Get("state")

	resp, body := ta.do(t, http.MethodGet, "/callback?code=the-code&state="+url.QueryEscape(state))
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302 from callback, got %d: %s", resp.StatusCode, body)
	}
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Fatalf("expected redirect to /, got %q", loc)
	}
}

func TestNew(t *testing.T) {
	config := shared.DefaultConfig()
	newService := func() services.Service { return mocks.NewMockService() }

	t.Run("requires config", func(t *testing.T) {
		if _, err := New(Options{NewService: newService}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("requires service constructor", func(t *testing.T) {
		if _, err := New(Options{Config: config}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("rejects redirect uri without path", func(t *testing.T) {
		bad := shared.DefaultConfig()
		bad.Credentials.Spotify.RedirectURI = "http://127.0.0.1:3000"
		if _, err := New(Options{Config: bad, NewService: newService}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("generates a session key", func(t *testing.T) {
		if _, err := New(Options{Config: config, NewService: newService}); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

func TestApp(t *testing.T) {
	t.Run("anonymous index shows login link", func(t *testing.T) {
		ta := setup(t)

		resp, body := ta.do(t, http.MethodGet, "/")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if !strings.Contains(body, "Log in with Spotify") {
			t.Errorf("expected login link, got %s", body)
		}
	})

	t.Run("anonymous api is unauthorized", func(t *testing.T) {
		ta := setup(t)

		for _, path := range []string{"/api/now", "/api/profile"} {
			resp, body := ta.do(t, http.MethodGet, path)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("%s: expected 401, got %d", path, resp.StatusCode)
			}

			var apiErr apiError
			if err := json.Unmarshal([]byte(body), &apiErr); err != nil || apiErr.Error == "" {
				t.Errorf("%s: expected JSON error, got %q", path, body)
			}
		}
	})

	t.Run("login redirects with PKCE parameters", func(t *testing.T) {
		ta := setup(t)

		authURL := ta.startLogin(t)
		q := authURL.Query()

		if authURL.Host != "accounts.example.com" {
			t.Errorf("unexpected host %q", authURL.Host)
		}
		checks := map[string]string{
			"client_id":             "client-123",
			"redirect_uri":          "http://127.0.0.1/callback",
			"response_type":         "code",
			"code_challenge_method": "S256",
		}
		for k, want := range checks {
			if got := q.Get(k); got != want {
				t.Errorf("%s: expected %q, got %q", k, want, got)
			}
		}
		if q.Get("code_challenge") == "" || q.Get("state") == "" {
			t.Error("expected code_challenge and state")
		}
	})

	t.Run("session cookie does not persist", func(t *testing.T) {
		ta := setup(t)

		resp, _ := ta.do(t, http.MethodGet, "/login")
		header := resp.Header.Get("Set-Cookie")
		if !strings.HasPrefix(header, sessionName+"=") {
			t.Fatalf("expected %s cookie, got %q", sessionName, header)
		}
		if !strings.Contains(header, "HttpOnly") {
			t.Errorf("expected HttpOnly cookie, got %q", header)
		}
		if strings.Contains(header, "Max-Age") || strings.Contains(header, "Expires") {
			t.Errorf("expected a session cookie without expiry, got %q", header)
		}
	})

	t.Run("full flow stores token in cookie", func(t *testing.T) {
		ta := setup(t)
		ta.login(t)

		if len(*ta.forms) != 1 {
			t.Fatalf("expected 1 token request, got %d", len(*ta.forms))
		}
		form := (*ta.forms)[0]
		if form["code"] != "the-code" || form["client_id"] != "client-123" || form["code_verifier"] == "" {
			t.Errorf("unexpected token request %v", form)
		}
		if _, ok := form["client_secret"]; ok {
			t.Error("public client must not send a client secret")
		}

		resp, body := ta.do(t, http.MethodGet, "/")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		for _, want := range []string{"Wizzler", "Song by A, B", "Kitchen"} {
			if !strings.Contains(body, want) {
				t.Errorf("expected page to contain %q", want)
			}
		}
		if ta.svc.Token == nil || ta.svc.Token.AccessToken != "abc123" {
			t.Errorf("expected service authenticated with abc123, got %+v", ta.svc.Token)
		}
	})

	t.Run("callback with wrong state", func(t *testing.T) {
		ta := setup(t)
		ta.startLogin(t)

		resp, _ := ta.do(t, http.MethodGet, "/callback?code=the-code&state=forged")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
		if len(*ta.forms) != 0 {
			t.Errorf("expected no token request, got %d", len(*ta.forms))
		}
	})

	t.Run("callback without pending authorization", func(t *testing.T) {
		ta := setup(t)

		resp, _ := ta.do(t, http.MethodGet, "/callback?code=the-code&state=x")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("callback with denied authorization", func(t *testing.T) {
		ta := setup(t)
		authURL := ta.startLogin(t)

		path := "/callback?error=access_denied&state=" + url.QueryEscape(authURL.Query().Get("state"))
		resp, body := ta.do(t, http.MethodGet, path)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected 403, got %d", resp.StatusCode)
		}
		if !strings.Contains(body, "access_denied") {
			t.Errorf("expected error in page, got %s", body)
		}
	})

	t.Run("api profile", func(t *testing.T) {
		ta := setup(t)
		ta.login(t)

		resp, body := ta.do(t, http.MethodGet, "/api/profile")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}

		var view struct {
			DisplayName string `json:"display_name"`
			ID          string `json:"id"`
		}
		if err := json.Unmarshal([]byte(body), &view); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if view.DisplayName != "Wizzler" || view.ID != "wizzler" {
			t.Errorf("unexpected profile %+v", view)
		}
	})

	t.Run("api now", func(t *testing.T) {
		ta := setup(t)
		ta.login(t)

		resp, body := ta.do(t, http.MethodGet, "/api/now")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
		if !strings.Contains(body, `"track":"Song by A, B"`) {
			t.Errorf("unexpected body %s", body)
		}
	})

	t.Run("api player actions", func(t *testing.T) {
		tests := []struct {
			path   string
			status int
			call   string
		}{
			{"/api/player/next", http.StatusOK, "Next"},
			{"/api/player/previous", http.StatusOK, "Previous"},
			{"/api/player/volume?value=55", http.StatusOK, "SetVolume"},
			{"/api/player/repeat", http.StatusOK, "SetRepeat"},
			{"/api/player/set-repeat?value=track", http.StatusOK, "SetRepeat"},
			{"/api/player/shuffle", http.StatusOK, "SetShuffle"},
			{"/api/player/set-shuffle?value=on", http.StatusOK, "SetShuffle"},
			{"/api/player/volume?value=250", http.StatusBadRequest, ""},
			{"/api/player/rewind", http.StatusBadRequest, ""},
		}

		for _, tt := range tests {
			t.Run(tt.path, func(t *testing.T) {
				ta := setup(t)
				ta.login(t)

				resp, body := ta.do(t, http.MethodPost, tt.path)
				if resp.StatusCode != tt.status {
					t.Fatalf("expected %d, got %d: %s", tt.status, resp.StatusCode, body)
				}
				if tt.call == "" {
					return
				}

				found := false
				for _, c := range ta.svc.CallNames() {
					if c == tt.call {
						found = true
					}
				}
				if !found {
					t.Errorf("expected %s in %v", tt.call, ta.svc.CallNames())
				}
			})
		}
	})

	t.Run("api volume result", func(t *testing.T) {
		ta := setup(t)
		ta.login(t)

		_, body := ta.do(t, http.MethodPost, "/api/player/volume?value=55")
		if !strings.Contains(body, `"volume_percent":55`) {
			t.Errorf("expected volume 55 in %s", body)
		}
		if ta.svc.Volume != 55 {
			t.Errorf("expected service volume 55, got %d", ta.svc.Volume)
		}
	})

	t.Run("no active device", func(t *testing.T) {
		ta := setup(t)
		ta.login(t)
		ta.svc.Err = fmt.Errorf("%w: player command failed", shared.ErrNoActiveDevice)

		resp, _ := ta.do(t, http.MethodPost, "/api/player/next")
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("expected 409, got %d", resp.StatusCode)
		}
	})

	t.Run("revoked token logs the browser out", func(t *testing.T) {
		ta := setup(t)
		ta.login(t)
		ta.svc.Err = shared.ErrUnauthorized

		resp, body := ta.do(t, http.MethodGet, "/")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}
		if !strings.Contains(body, "Log in with Spotify") {
			t.Errorf("expected login link after revocation, got %s", body)
		}

		ta.svc.Err = nil
		if resp, _ := ta.do(t, http.MethodGet, "/api/now"); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected token to be cleared, got %d", resp.StatusCode)
		}
	})

	t.Run("form post redirects back", func(t *testing.T) {
		ta := setup(t)
		ta.login(t)

		resp, _ := ta.do(t, http.MethodPost, "/player/next")
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
			t.Errorf("expected 303 to /, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
		}
	})

	t.Run("logout clears session", func(t *testing.T) {
		ta := setup(t)
		ta.login(t)

		resp, _ := ta.do(t, http.MethodPost, "/logout")
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("expected 303, got %d", resp.StatusCode)
		}

		if resp, _ := ta.do(t, http.MethodGet, "/api/now"); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401 after logout, got %d", resp.StatusCode)
		}
	})

	t.Run("logout requires POST", func(t *testing.T) {
		ta := setup(t)

		resp, _ := ta.do(t, http.MethodGet, "/logout")
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", resp.StatusCode)
		}
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{shared.ErrNotAuthenticated, http.StatusUnauthorized},
		{shared.ErrTokenExpired, http.StatusUnauthorized},
		{shared.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("%w: volume", shared.ErrInvalidArgument), http.StatusBadRequest},
		{shared.ErrNoActiveDevice, http.StatusConflict},
		{shared.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{shared.ErrAPIRequest, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
