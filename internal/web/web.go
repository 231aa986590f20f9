package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/formatter"
	"github.com/desertthunder/spx/internal/pkce"
	"github.com/desertthunder/spx/internal/player"
	"github.com/desertthunder/spx/internal/server"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

//go:embed templates/*.html
var templateFiles embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFiles, "templates/page.html"))

// Options configures an [App]. Config and NewService are required.
type Options struct {
	Config     *shared.Config
	SessionKey []byte // generated per process when empty
	NewService func() services.Service
	HTTPClient *http.Client
	Logger     *log.Logger
}

// App serves the browser remote. Every browser gets its own PKCE session in a signed cookie.
type App struct {
	config     *shared.Config
	sessions   sessions.Store
	newService func() services.Service
	httpClient *http.Client
	logger     *log.Logger
	router     *mux.Router
}

// New creates an [App] with its routes registered.
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: config is required", shared.ErrInvalidArgument)
	}
	if opts.NewService == nil {
		return nil, fmt.Errorf("%w: service constructor is required", shared.ErrInvalidArgument)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	redirect, err := url.Parse(opts.Config.Credentials.Spotify.RedirectURI)
	if err != nil || redirect.Path == "" {
		return nil, fmt.Errorf("%w: redirect uri %q", shared.ErrInvalidConfig, opts.Config.Credentials.Spotify.RedirectURI)
	}

	key := opts.SessionKey
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
		if key == nil {
			return nil, fmt.Errorf("%w: session key", shared.ErrRandomnessUnavailable)
		}
		opts.Logger.Warn("no session key configured, sessions end when the server stops")
	}

	// MaxAge 0 makes a session cookie: the token is dropped when the browser closes.
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   redirect.Scheme == "https",
	}

	a := &App{
		config:     opts.Config,
		sessions:   store,
		newService: opts.NewService,
		httpClient: opts.HTTPClient,
		logger:     shared.WithLogger(opts.Logger, "mode", "web"),
		router:     mux.NewRouter(),
	}
	a.routes(redirect.Path)
	return a, nil
}

func (a *App) routes(callbackPath string) {
	a.router.Use(
		mux.MiddlewareFunc(server.Recoverer(a.logger)),
		mux.MiddlewareFunc(server.RequestLogger(a.logger)),
	)

	a.router.HandleFunc("/", a.index).Methods(http.MethodGet)
	a.router.HandleFunc("/login", a.login).Methods(http.MethodGet)
	a.router.HandleFunc(callbackPath, a.callback).Methods(http.MethodGet)
	a.router.HandleFunc("/logout", a.logout).Methods(http.MethodPost)
	a.router.HandleFunc("/player/{action}", a.playerForm).Methods(http.MethodPost)

	api := a.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/profile", a.apiProfile).Methods(http.MethodGet)
	api.HandleFunc("/now", a.apiNow).Methods(http.MethodGet)
	api.HandleFunc("/player/{action}", a.apiPlayer).Methods(http.MethodPost)
}

// ServeHTTP implements [http.Handler].
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *App) authenticator(store *CookieStore, navigator pkce.Navigator) (*pkce.Authenticator, error) {
	sp := a.config.Credentials.Spotify
	return pkce.New(pkce.Options{
		AuthURL:       sp.AuthURL,
		TokenURL:      sp.TokenURL,
		VerifierBytes: a.config.Auth.VerifierBytes,
		Store:         store,
		Navigator:     navigator,
		HTTPClient:    a.httpClient,
		Logger:        a.logger,
	})
}

// player returns a [player.Player] for the browser's token, or [shared.ErrNotAuthenticated].
func (a *App) player(r *http.Request, store *CookieStore) (*player.Player, error) {
	token, err := store.Token(r.Context())
	if err != nil {
		return nil, err
	}

	svc := a.newService()
	if err := svc.Authenticate(r.Context(), token); err != nil {
		return nil, err
	}

	return player.New(svc, player.Options{
		SkipRefresh: a.config.Player.SkipRefresh(),
		Logger:      a.logger,
	}), nil
}

type pageData struct {
	LoggedIn bool
	Profile  *formatter.ProfileView
	Playback *formatter.PlaybackView
	Error    string
}

func (a *App) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		a.logger.Error("failed to render page", "error", err)
	}
}

// fail renders the page with err, logging the user out when the token is no longer usable.
func (a *App) fail(w http.ResponseWriter, store *CookieStore, status int, err error) {
	data := pageData{Error: err.Error()}
	if store != nil {
		if loggedOut(err) {
			_ = store.ClearToken(context.Background())
		}
		_, tokenErr := store.Token(context.Background())
		data.LoggedIn = tokenErr == nil
		if flushErr := store.Flush(); flushErr != nil {
			a.logger.Warn("failed to write session cookie", "error", flushErr)
		}
	}
	a.render(w, status, data)
}

func loggedOut(err error) bool {
	return errors.Is(err, shared.ErrNotAuthenticated) ||
		errors.Is(err, shared.ErrTokenExpired) ||
		errors.Is(err, shared.ErrUnauthorized)
}

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	store, err := OpenCookieStore(a.sessions, w, r)
	if err != nil {
		a.fail(w, nil, http.StatusInternalServerError, err)
		return
	}

	p, err := a.player(r, store)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		a.render(w, http.StatusOK, pageData{})
		return
	}
	if err != nil {
		a.fail(w, store, StatusFor(err), err)
		return
	}

	snapshot, err := p.Load(r.Context())
	if err != nil {
		a.fail(w, store, StatusFor(err), err)
		return
	}

	profile := formatter.NewProfileView(snapshot.Profile)
	playback := formatter.NewPlaybackView(snapshot.Playing, snapshot.Repeat, snapshot.Shuffle)
	a.render(w, http.StatusOK, pageData{LoggedIn: true, Profile: &profile, Playback: &playback})
}

// login starts an authorization and redirects the browser to Spotify.
func (a *App) login(w http.ResponseWriter, r *http.Request) {
	store, err := OpenCookieStore(a.sessions, w, r)
	if err != nil {
		a.fail(w, nil, http.StatusInternalServerError, err)
		return
	}

	navigator := pkce.NavigatorFunc(func(_ context.Context, authURL string) error {
		if err := store.Flush(); err != nil {
			return fmt.Errorf("failed to write session cookie: %w", err)
		}
		http.Redirect(w, r, authURL, http.StatusFound)
		return nil
	})

	auth, err := a.authenticator(store, navigator)
	if err != nil {
		a.fail(w, nil, http.StatusInternalServerError, err)
		return
	}

	sp := a.config.Credentials.Spotify
	if err := auth.Initiate(r.Context(), sp.ClientID, sp.RedirectURI); err != nil {
		a.fail(w, nil, http.StatusInternalServerError, err)
	}
}

// callback completes the authorization with the provider's redirect.
func (a *App) callback(w http.ResponseWriter, r *http.Request) {
	store, err := OpenCookieStore(a.sessions, w, r)
	if err != nil {
		a.fail(w, nil, http.StatusInternalServerError, err)
		return
	}

	auth, err := a.authenticator(store, pkce.NavigatorFunc(func(context.Context, string) error { return nil }))
	if err != nil {
		a.fail(w, nil, http.StatusInternalServerError, err)
		return
	}

	token, err := auth.HandleCallback(r.Context(), a.config.Credentials.Spotify.ClientID, r.URL.Query())
	if err != nil {
		a.fail(w, store, server.CallbackStatus(err), err)
		return
	}

	if err := store.SaveToken(r.Context(), token); err != nil {
		a.fail(w, store, http.StatusInternalServerError, err)
		return
	}
	if err := store.Flush(); err != nil {
		a.fail(w, nil, http.StatusInternalServerError, err)
		return
	}

	a.logger.Info("browser session authorized", "expiry", token.Expiry)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	store, err := OpenCookieStore(a.sessions, w, r)
	if err != nil {
		a.fail(w, nil, http.StatusInternalServerError, err)
		return
	}

	store.Clear()
	if err := store.Flush(); err != nil {
		a.fail(w, nil, http.StatusInternalServerError, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// playerForm applies an action posted by the page and goes back to it.
func (a *App) playerForm(w http.ResponseWriter, r *http.Request) {
	store, err := OpenCookieStore(a.sessions, w, r)
	if err != nil {
		a.fail(w, nil, http.StatusInternalServerError, err)
		return
	}

	if _, err := a.handleEvent(r, store); err != nil {
		a.fail(w, store, StatusFor(err), err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleEvent parses the {action} route variable and the "value" form field, loads the player and applies the event.
func (a *App) handleEvent(r *http.Request, store *CookieStore) (player.Snapshot, error) {
	ev, err := player.ParseEvent(mux.Vars(r)["action"], r.FormValue("value"))
	if err != nil {
		return player.Snapshot{}, err
	}

	p, err := a.player(r, store)
	if err != nil {
		return player.Snapshot{}, err
	}

	if _, err := p.Load(r.Context()); err != nil {
		return player.Snapshot{}, err
	}
	return p.Handle(r.Context(), ev)
}

// StatusFor maps a player or session error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case loggedOut(err):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNoActiveDevice):
		return http.StatusConflict
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
