package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spx/internal/repositories"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
	tu "github.com/desertthunder/spx/internal/testing"
	"golang.org/x/oauth2"
)

type testRunner struct {
	*Runner
	out   *bytes.Buffer
	svc   *tu.MockService
	repo  *repositories.SessionRepository
	forms *[]map[string]string
}

// newTestRunner wires a Runner to an in-memory session database, a mock Spotify client and a fake token endpoint.
func newTestRunner(t *testing.T) *testRunner {
	t.Helper()

	tokenServer, forms := tu.NewTokenServer(t, "abc123")

	config := shared.DefaultConfig()
	config.Credentials.Spotify.ClientID = "client-123"
	config.Credentials.Spotify.RedirectURI = "http://127.0.0.1:8888/callback"
	config.Credentials.Spotify.AuthURL = "https://accounts.example.com/authorize"
	config.Credentials.Spotify.TokenURL = tokenServer.URL
	config.Player.SkipRefreshMS = 1

	db, err := shared.OpenSessionDatabase(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open session database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := repositories.NewSessionRepository(db)
	svc := tu.NewMockService()
	out := &bytes.Buffer{}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: "config.toml",
		Spotify:    svc,
		Sessions:   repo,
		Output:     out,
	})

	return &testRunner{Runner: runner, out: out, svc: svc, repo: repo, forms: forms}
}

func (tr *testRunner) run(t *testing.T, args ...string) error {
	t.Helper()
	return newApp(tr.Runner).Run(context.Background(), append([]string{"spx"}, args...))
}

// authorize stores a valid token in the current session.
func (tr *testRunner) authorize(t *testing.T) {
	t.Helper()

	store, err := tr.sessionStore()
	if err != nil {
		t.Fatalf("failed to open session store: %v", err)
	}
	token := &oauth2.Token{AccessToken: "abc123", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	if err := store.SaveToken(context.Background(), token); err != nil {
		t.Fatalf("failed to save token: %v", err)
	}
}

func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			spotify := tu.NewMockService()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Spotify:    spotify,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.service() != services.Service(spotify) {
				t.Error("expected spotify to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("builds the Spotify client lazily", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.spotify != nil {
				t.Fatal("expected no client before first use")
			}
			if svc := runner.service(); svc == nil || svc.Name() != "Spotify" {
				t.Errorf("expected spotify service, got %v", svc)
			}
		})

		t.Run("Close without database", func(t *testing.T) {
			if err := NewRunner(RunnerOpts{}).Close(); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("formats text", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("writePlainln pads with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			_ = runner.writePlainln("done")
			if output.String() != "\ndone\n" {
				t.Errorf("expected %q, got %q", "\ndone\n", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"login", "logout", "status", "auth", "profile", "now", "next", "prev", "volume", "repeat", "shuffle", "player", "serve", "setup", "config"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("status without session", func(t *testing.T) {
		tr := newTestRunner(t)

		if err := tr.run(t, "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(tr.out.String(), "State:   idle") {
			t.Errorf("expected idle state, got %q", tr.out.String())
		}
	})

	t.Run("status with token as JSON", func(t *testing.T) {
		tr := newTestRunner(t)
		tr.authorize(t)

		if err := tr.run(t, "status", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := tr.out.String()
		if !strings.Contains(out, `"state":"authenticated"`) {
			t.Errorf("expected authenticated state, got %q", out)
		}
		if strings.Contains(out, "abc123") || !strings.Contains(out, "abc1********") {
			t.Errorf("expected redacted token, got %q", out)
		}
	})

	t.Run("login completes through the callback server", func(t *testing.T) {
		tr := newTestRunner(t)
		redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", freePort(t))
		tr.config.Credentials.Spotify.RedirectURI = redirectURI

		original := openBrowser
		t.Cleanup(func() { openBrowser = original })

		callbackErrors := make(chan error, 1)
		openBrowser = func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			state := u.Query().Get("state")

			go func() {
				resp, err := http.Get(redirectURI + "?code=the-code&state=" + url.QueryEscape(state))
				if err == nil {
					resp.Body.Close()
				}
				callbackErrors <- err
			}()
			return nil
		}

		if err := tr.run(t, "login"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := <-callbackErrors; err != nil {
			t.Fatalf("callback request failed: %v", err)
		}

		if !strings.Contains(tr.out.String(), "Authorization successful") {
			t.Errorf("expected success message, got %q", tr.out.String())
		}
		if len(*tr.forms) != 1 || (*tr.forms)[0]["code"] != "the-code" {
			t.Errorf("expected one token request with the code, got %v", *tr.forms)
		}

		session, err := tr.repo.Current()
		if err != nil {
			t.Fatalf("expected a session, got %v", err)
		}
		if session.Token == nil || session.Token.AccessToken != "abc123" {
			t.Errorf("expected stored token, got %+v", session.Token)
		}
		if session.Pending != nil {
			t.Error("expected pending authorization to be cleared")
		}
	})

	t.Run("login rejects an invalid config", func(t *testing.T) {
		tr := newTestRunner(t)
		tr.config.Credentials.Spotify.ClientID = ""

		if err := tr.run(t, "login"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("auth url then exchange", func(t *testing.T) {
		tr := newTestRunner(t)

		if err := tr.run(t, "auth", "url"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var authURL *url.URL
		for _, line := range strings.Split(tr.out.String(), "\n") {
			if strings.HasPrefix(line, "https://accounts.example.com/") {
				authURL, _ = url.Parse(line)
			}
		}
		if authURL == nil {
			t.Fatalf("expected authorization URL in output, got %q", tr.out.String())
		}

		tr.out.Reset()
		if err := tr.run(t, "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(tr.out.String(), "awaiting_callback") {
			t.Errorf("expected pending state, got %q", tr.out.String())
		}

		redirect := "http://127.0.0.1:8888/callback?code=the-code&state=" + url.QueryEscape(authURL.Query().Get("state"))
		if err := tr.run(t, "auth", "exchange", "--url", redirect); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		form := (*tr.forms)[0]
		if form["code_verifier"] == "" || form["redirect_uri"] != "http://127.0.0.1:8888/callback" {
			t.Errorf("unexpected token request %v", form)
		}
	})

	t.Run("auth exchange with forged state", func(t *testing.T) {
		tr := newTestRunner(t)
		if err := tr.run(t, "auth", "url"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		err := tr.run(t, "auth", "exchange", "--url", "http://127.0.0.1:8888/callback?code=c&state=forged")
		if !errors.Is(err, shared.ErrStateMismatch) {
			t.Errorf("expected ErrStateMismatch, got %v", err)
		}
		if len(*tr.forms) != 0 {
			t.Error("expected no token request")
		}
	})

	t.Run("auth exchange argument checks", func(t *testing.T) {
		tr := newTestRunner(t)

		if err := tr.run(t, "auth", "exchange"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if err := tr.run(t, "auth", "exchange", "--code", "c", "--url", "http://x/"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := tr.run(t, "auth", "exchange", "--code", "c"); !errors.Is(err, shared.ErrMissingVerifier) {
			t.Errorf("expected ErrMissingVerifier without a pending authorization, got %v", err)
		}
	})

	t.Run("logout", func(t *testing.T) {
		tr := newTestRunner(t)
		tr.authorize(t)

		if err := tr.run(t, "logout"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(tr.out.String(), "Logged out") {
			t.Errorf("expected logout message, got %q", tr.out.String())
		}
		if _, err := tr.repo.Current(); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected no current session, got %v", err)
		}

		tr.out.Reset()
		if err := tr.run(t, "logout"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(tr.out.String(), "Not logged in") {
			t.Errorf("expected not logged in message, got %q", tr.out.String())
		}
	})
}

func TestPlayerCommands(t *testing.T) {
	t.Run("requires login", func(t *testing.T) {
		tr := newTestRunner(t)

		err := tr.run(t, "now")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
		if !strings.Contains(err.Error(), "spx login") {
			t.Errorf("expected login hint, got %v", err)
		}
	})

	t.Run("profile", func(t *testing.T) {
		tr := newTestRunner(t)
		tr.authorize(t)

		if err := tr.run(t, "profile", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(tr.out.String(), `"id":"wizzler"`) {
			t.Errorf("expected profile JSON, got %q", tr.out.String())
		}
		if tr.svc.Token == nil || tr.svc.Token.AccessToken != "abc123" {
			t.Error("expected service to be authenticated with the stored token")
		}
	})

	t.Run("now", func(t *testing.T) {
		tr := newTestRunner(t)
		tr.authorize(t)

		if err := tr.run(t, "now"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		out := tr.out.String()
		for _, want := range []string{"Song by A, B", "Kitchen", "volume 40%"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in %q", want, out)
			}
		}
	})

	t.Run("commands reach the service", func(t *testing.T) {
		tests := []struct {
			args  []string
			call  string
			check func(*tu.MockService) bool
		}{
			{[]string{"next"}, "Next", nil},
			{[]string{"prev"}, "Previous", nil},
			{[]string{"volume", "55"}, "SetVolume", func(m *tu.MockService) bool { return m.Volume == 55 }},
			{[]string{"repeat"}, "SetRepeat", func(m *tu.MockService) bool { return m.Repeat == services.RepeatContext }},
			{[]string{"repeat", "track"}, "SetRepeat", func(m *tu.MockService) bool { return m.Repeat == services.RepeatTrack }},
			{[]string{"shuffle"}, "SetShuffle", func(m *tu.MockService) bool { return m.Shuffle }},
			{[]string{"shuffle", "off"}, "SetShuffle", func(m *tu.MockService) bool { return !m.Shuffle }},
		}

		for _, tt := range tests {
			t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
				tr := newTestRunner(t)
				tr.authorize(t)

				if err := tr.run(t, tt.args...); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}

				found := false
				for _, c := range tr.svc.CallNames() {
					if c == tt.call {
						found = true
					}
				}
				if !found {
					t.Errorf("expected %s in %v", tt.call, tr.svc.CallNames())
				}
				if tt.check != nil && !tt.check(tr.svc) {
					t.Errorf("unexpected service state %+v", tr.svc)
				}
			})
		}
	})

	t.Run("argument errors", func(t *testing.T) {
		tests := []struct {
			args []string
			want error
		}{
			{[]string{"volume"}, shared.ErrMissingArgument},
			{[]string{"volume", "150"}, shared.ErrInvalidArgument},
			{[]string{"volume", "loud"}, shared.ErrInvalidArgument},
			{[]string{"repeat", "forever"}, shared.ErrInvalidArgument},
			{[]string{"shuffle", "maybe"}, shared.ErrInvalidArgument},
		}

		for _, tt := range tests {
			t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
				tr := newTestRunner(t)
				tr.authorize(t)

				if err := tr.run(t, tt.args...); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				for _, c := range tr.svc.CallNames() {
					if strings.HasPrefix(c, "Set") {
						t.Errorf("expected no playback change, got %s", c)
					}
				}
			})
		}
	})

	t.Run("service failure is returned", func(t *testing.T) {
		tr := newTestRunner(t)
		tr.authorize(t)
		tr.svc.Err = shared.ErrNoActiveDevice

		if err := tr.run(t, "next"); !errors.Is(err, shared.ErrNoActiveDevice) {
			t.Errorf("expected ErrNoActiveDevice, got %v", err)
		}
	})

	t.Run("rejected token logs the session out", func(t *testing.T) {
		for _, args := range [][]string{{"now"}, {"profile"}, {"next"}} {
			t.Run(strings.Join(args, " "), func(t *testing.T) {
				tr := newTestRunner(t)
				tr.authorize(t)
				tr.svc.Err = shared.ErrUnauthorized

				err := tr.run(t, args...)
				if !errors.Is(err, shared.ErrUnauthorized) {
					t.Fatalf("expected ErrUnauthorized, got %v", err)
				}
				if !strings.Contains(err.Error(), "spx login") {
					t.Errorf("expected login hint, got %v", err)
				}

				tr.svc.Err = nil
				tr.out.Reset()
				if err := tr.run(t, "status"); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if !strings.Contains(tr.out.String(), "State:   idle") {
					t.Errorf("expected idle state after rejection, got %q", tr.out.String())
				}

				if err := tr.run(t, "now"); !errors.Is(err, shared.ErrNotAuthenticated) {
					t.Errorf("expected ErrNotAuthenticated, got %v", err)
				}
			})
		}
	})

	t.Run("other failures keep the token", func(t *testing.T) {
		tr := newTestRunner(t)
		tr.authorize(t)
		tr.svc.Err = shared.ErrServiceUnavailable

		if err := tr.run(t, "now"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Fatalf("expected ErrServiceUnavailable, got %v", err)
		}

		tr.svc.Err = nil
		if err := tr.run(t, "now"); err != nil {
			t.Errorf("expected token to survive, got %v", err)
		}
	})

	t.Run("json output", func(t *testing.T) {
		tr := newTestRunner(t)
		tr.authorize(t)

		if err := tr.run(t, "volume", "--json", "30"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(tr.out.String(), `"volume_percent":30`) {
			t.Errorf("expected JSON snapshot, got %q", tr.out.String())
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("setup database", func(t *testing.T) {
		tr := newTestRunner(t)
		tr.config.Database.Path = filepath.Join(t.TempDir(), "spx.db")

		if err := tr.run(t, "setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, tr.config.Database.Path)
		if !strings.Contains(tr.out.String(), "create_sessions") {
			t.Errorf("expected migration list, got %q", tr.out.String())
		}

		tr.out.Reset()
		if err := tr.run(t, "setup", "database", "--rollback"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if strings.Contains(tr.out.String(), "session_scopes") {
			t.Errorf("expected newest migration to be rolled back, got %q", tr.out.String())
		}
	})

	t.Run("config init", func(t *testing.T) {
		tr := newTestRunner(t)
		path := filepath.Join(t.TempDir(), "config.toml")
		tr.configPath = path

		if err := tr.run(t, "--config", path, "config", "init"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(tu.MustReadFile(t, path), "client_id") {
			t.Error("expected example config contents")
		}

		if err := tr.run(t, "--config", path, "config", "init"); err == nil {
			t.Error("expected error when config already exists")
		}
	})

	t.Run("config check", func(t *testing.T) {
		tr := newTestRunner(t)

		if err := tr.run(t, "config", "check"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(tr.out.String(), "is valid") {
			t.Errorf("expected valid message, got %q", tr.out.String())
		}

		tr.config.Auth.VerifierBytes = 8
		if err := tr.run(t, "config", "check"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("config flag loads file", func(t *testing.T) {
		tr := newTestRunner(t)
		path := filepath.Join(t.TempDir(), "spx.toml")

		config := shared.DefaultConfig()
		config.Credentials.Spotify.ClientID = "from-file"
		if err := shared.SaveConfig(path, config); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if err := tr.run(t, "--config", path, "config", "check"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tr.config.Credentials.Spotify.ClientID != "from-file" || tr.configPath != path {
			t.Errorf("expected config from %s, got %q", path, tr.config.Credentials.Spotify.ClientID)
		}
	})
}

func TestServe(t *testing.T) {
	tr := newTestRunner(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	go func() { done <- tr.serve(ctx, listener, handler) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
