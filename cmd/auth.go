package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/spx/internal/pkce"
	"github.com/desertthunder/spx/internal/server"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

var openBrowser = shared.OpenBrowser

// browserNavigator opens authURL in the system browser, printing it when that fails.
func (r *Runner) browserNavigator(ctx context.Context, authURL string) error {
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}
	return nil
}

// printNavigator only prints authURL.
func (r *Runner) printNavigator(ctx context.Context, authURL string) error {
	return r.writePlain("Open this URL in your browser:\n%s\n", authURL)
}

// callbackAddr is the listen address for the redirect URI's host.
func (r *Runner) callbackAddr(redirect *url.URL) string {
	if redirect.Port() == "" {
		return r.config.Server.Addr()
	}
	return redirect.Host
}

// Login performs the PKCE flow with a local callback server.
//
// The server listens on the redirect URI's host, the browser is sent to Spotify,
// and the token from the callback is stored in the current session.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	sp := r.config.Credentials.Spotify
	redirect, err := url.Parse(sp.RedirectURI)
	if err != nil {
		return fmt.Errorf("%w: redirect uri: %v", shared.ErrInvalidConfig, err)
	}

	store, err := r.sessionStore()
	if err != nil {
		return err
	}

	navigator := pkce.NavigatorFunc(r.browserNavigator)
	if cmd.Bool("no-browser") {
		navigator = r.printNavigator
	}

	auth, err := r.authenticator(store, navigator)
	if err != nil {
		return err
	}

	callback := server.NewCallbackHandler(auth, sp.ClientID, redirect.Path)
	router := server.NewBasicRouter()
	router.Use(server.Recoverer(r.logger), server.RequestLogger(r.logger))
	router.Handler(callback)

	addr := r.callbackAddr(redirect)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for callback on %s: %w", addr, err)
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting callback server at %v", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	if err := auth.Initiate(ctx, sp.ClientID, sp.RedirectURI); err != nil {
		return fmt.Errorf("failed to start authorization: %w", err)
	}

	timeout := r.config.Auth.Timeout()
	r.writePlain("→ Waiting for authorization (%v timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult

	select {
	case result = <-callback.Result():
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if result.Error() != nil {
		return fmt.Errorf("authorization failed: %w", result.Error())
	}

	if err := store.SaveToken(ctx, result.Token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token saved to session %s (expires %s)\n", store.SessionID(), formatExpiry(result.Token.Expiry))
	return nil
}

// AuthURL starts an authorization and prints the URL. The verifier waits in the session database.
func (r *Runner) AuthURL(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	store, err := r.sessionStore()
	if err != nil {
		return err
	}

	auth, err := r.authenticator(store, pkce.NavigatorFunc(r.printNavigator))
	if err != nil {
		return err
	}

	sp := r.config.Credentials.Spotify
	if err := auth.Initiate(ctx, sp.ClientID, sp.RedirectURI); err != nil {
		return fmt.Errorf("failed to start authorization: %w", err)
	}

	return r.writePlain("\nThen run: spx auth exchange --url '<redirect url>'\n")
}

// AuthExchange completes an authorization started by [Runner.AuthURL].
func (r *Runner) AuthExchange(ctx context.Context, cmd *cli.Command) error {
	code, rawURL := cmd.String("code"), cmd.String("url")
	if code == "" && rawURL == "" {
		return fmt.Errorf("%w: either --code or --url must be provided", shared.ErrMissingArgument)
	}
	if code != "" && rawURL != "" {
		return fmt.Errorf("%w: cannot specify both --code and --url", shared.ErrInvalidArgument)
	}

	store, err := r.sessionStore()
	if err != nil {
		return err
	}

	auth, err := r.authenticator(store, pkce.NavigatorFunc(r.printNavigator))
	if err != nil {
		return err
	}

	clientID := r.config.Credentials.Spotify.ClientID

	var token *oauth2.Token
	if rawURL != "" {
		redirect, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("%w: redirect url: %v", shared.ErrInvalidArgument, err)
		}
		token, err = auth.HandleCallback(ctx, clientID, redirect.Query())
		if err != nil {
			return err
		}
	} else {
		token, err = auth.Exchange(ctx, clientID, code)
		if err != nil {
			return err
		}
	}

	if err := store.SaveToken(ctx, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return r.writePlain("✓ Token saved to session %s (expires %s)\n", store.SessionID(), formatExpiry(token.Expiry))
}

// Logout soft-deletes the current session, dropping its token and pending verifier.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.sessionRepository()
	if err != nil {
		return err
	}

	session, err := repo.Current()
	if errors.Is(err, shared.ErrSessionNotFound) {
		return r.writePlain("Not logged in\n")
	}
	if err != nil {
		return err
	}

	if err := repo.Delete(session.ID()); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	r.logger.Info("session removed", "session", session.ID())
	return r.writePlain("✓ Logged out\n")
}

type statusView struct {
	Session      string     `json:"session,omitempty"`
	Sequence     int        `json:"sequence,omitempty"`
	State        string     `json:"state"`
	Token        string     `json:"token,omitempty"`
	Scope        string     `json:"scope,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	PendingSince *time.Time `json:"pending_since,omitempty"`
}

// Status reports where the current session stands: idle, awaiting a callback, authenticated or expired.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.sessionRepository()
	if err != nil {
		return err
	}

	view := statusView{State: pkce.Idle.String()}

	session, err := repo.Current()
	switch {
	case errors.Is(err, shared.ErrSessionNotFound):
	case err != nil:
		return err
	default:
		view.Session = session.ID()
		view.Sequence = session.Sequence()

		if p := session.Pending; p != nil {
			view.State = pkce.AwaitingCallback.String()
			view.PendingSince = &p.CreatedAt
		}
		if t := session.Token; t != nil {
			view.State = pkce.Authenticated.String()
			if !t.Valid(time.Now()) {
				view.State = "expired"
			}
			view.Token = shared.Redact(t.AccessToken)
			view.Scope = t.Scope
			if !t.Expiry.IsZero() {
				view.ExpiresAt = &t.Expiry
			}
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}

	r.writePlain("State:   %s\n", view.State)
	if view.Session == "" {
		return r.writePlain("Session: none (run `spx login`)\n")
	}

	r.writePlain("Session: #%d %s\n", view.Sequence, view.Session)
	if view.PendingSince != nil {
		r.writePlain("Pending: since %s\n", view.PendingSince.Local().Format(time.RFC1123))
	}
	if view.Token != "" {
		r.writePlain("Token:   %s\n", view.Token)
		r.writePlain("Scope:   %s\n", view.Scope)
		var expiry time.Time
		if view.ExpiresAt != nil {
			expiry = *view.ExpiresAt
		}
		r.writePlain("Expires: %s\n", formatExpiry(expiry))
	}
	return nil
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.RFC1123)
}
