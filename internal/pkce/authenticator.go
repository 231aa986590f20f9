package pkce

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// DefaultScopes are the capabilities the player needs: read the profile, read and modify playback state.
var DefaultScopes = []string{
	"user-read-private",
	"user-read-email",
	"user-read-playback-state",
	"user-modify-playback-state",
}

// Phase is the position of an authorization attempt in its lifecycle.
type Phase int

const (
	Idle Phase = iota
	AwaitingRedirect
	AwaitingCallback
	Exchanging
	Authenticated
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AwaitingRedirect:
		return "awaiting_redirect"
	case AwaitingCallback:
		return "awaiting_callback"
	case Exchanging:
		return "exchanging"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures an [Authenticator]. Store and Navigator are required.
type Options struct {
	AuthURL       string
	TokenURL      string
	Scopes        []string
	VerifierBytes int
	Store         Store
	Navigator     Navigator
	Random        io.Reader    // defaults to crypto/rand
	HTTPClient    *http.Client // used for the token request when set
	Logger        *log.Logger
	Now           func() time.Time
}

// Authenticator runs PKCE authorization attempts against a single [Store].
type Authenticator struct {
	authURL       string
	tokenURL      string
	scopes        []string
	verifierBytes int
	store         Store
	navigator     Navigator
	random        io.Reader
	httpClient    *http.Client
	logger        *log.Logger
	now           func() time.Time

	op    sync.Mutex // serializes Initiate/Exchange on the slot
	mu    sync.Mutex // guards phase
	phase Phase
}

// New creates an [Authenticator], filling Spotify endpoints and defaults for unset options.
func New(opts Options) (*Authenticator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: store is required", shared.ErrInvalidArgument)
	}
	if opts.Navigator == nil {
		return nil, fmt.Errorf("%w: navigator is required", shared.ErrInvalidArgument)
	}
	if opts.AuthURL == "" {
		opts.AuthURL = spotifyAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = DefaultScopes
	}
	if opts.VerifierBytes == 0 {
		opts.VerifierBytes = DefaultVerifierBytes
	}
	if opts.VerifierBytes < shared.MinVerifierBytes || opts.VerifierBytes > shared.MaxVerifierBytes {
		return nil, fmt.Errorf("%w: verifier bytes %d", shared.ErrInvalidArgument, opts.VerifierBytes)
	}
	if opts.Random == nil {
		opts.Random = rand.Reader
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Authenticator{
		authURL:       opts.AuthURL,
		tokenURL:      opts.TokenURL,
		scopes:        opts.Scopes,
		verifierBytes: opts.VerifierBytes,
		store:         opts.Store,
		navigator:     opts.Navigator,
		random:        opts.Random,
		httpClient:    opts.HTTPClient,
		logger:        opts.Logger,
		now:           opts.Now,
	}, nil
}

// State returns the current phase of the most recent attempt.
func (a *Authenticator) State() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Reset returns the authenticator to [Idle] and empties the slot.
func (a *Authenticator) Reset(ctx context.Context) error {
	a.op.Lock()
	defer a.op.Unlock()

	if err := a.store.ClearPending(ctx); err != nil {
		return fmt.Errorf("failed to clear pending authorization: %w", err)
	}
	a.transition(Idle)
	return nil
}

func (a *Authenticator) transition(next Phase) {
	a.mu.Lock()
	prev := a.phase
	a.phase = next
	a.mu.Unlock()

	a.logger.Debug("authorization phase", "from", prev, "to", next)
}

func (a *Authenticator) fail(err error) error {
	a.transition(Failed)
	a.logger.Warn("authorization failed", "error", err)
	return err
}

func (a *Authenticator) config(clientID, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Scopes:      a.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   a.authURL,
			TokenURL:  a.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Initiate starts a new attempt and navigates the user agent to the authorization endpoint.
//
// The new verifier replaces any pending one.
func (a *Authenticator) Initiate(ctx context.Context, clientID, redirectURI string) error {
	a.op.Lock()
	defer a.op.Unlock()

	a.transition(Idle)

	if clientID == "" {
		return a.fail(fmt.Errorf("%w: client id is required", shared.ErrInvalidArgument))
	}
	if _, err := url.ParseRequestURI(redirectURI); err != nil {
		return a.fail(fmt.Errorf("%w: redirect uri: %v", shared.ErrInvalidArgument, err))
	}

	verifier, err := GenerateVerifier(a.random, a.verifierBytes)
	if err != nil {
		return a.fail(err)
	}

	state, err := GenerateState(a.random)
	if err != nil {
		return a.fail(err)
	}

	pending := Pending{
		Verifier:    verifier,
		State:       state,
		RedirectURI: redirectURI,
		CreatedAt:   a.now(),
	}
	if err := a.store.SavePending(ctx, pending); err != nil {
		return a.fail(fmt.Errorf("failed to store pending authorization: %w", err))
	}

	authURL := a.config(clientID, redirectURI).AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	a.transition(AwaitingRedirect)

	a.logger.Info("redirecting to authorization endpoint", "endpoint", a.authURL, "scopes", len(a.scopes))
	if err := a.navigator.Navigate(ctx, authURL); err != nil {
		return a.fail(fmt.Errorf("failed to navigate to authorization endpoint: %w", err))
	}

	return nil
}

// HandleCallback validates the provider's redirect query and exchanges the returned code.
//
// The state comparison and the exchange run under the same lock as [Authenticator.Initiate],
// so a concurrent restart cannot swap the verifier between them.
func (a *Authenticator) HandleCallback(ctx context.Context, clientID string, query url.Values) (*oauth2.Token, error) {
	a.op.Lock()
	defer a.op.Unlock()

	a.transition(AwaitingCallback)

	if errParam := query.Get("error"); errParam != "" {
		return nil, a.fail(fmt.Errorf("%w: %s %s", shared.ErrAuthorizationDenied, errParam, query.Get("error_description")))
	}

	pending, err := a.store.Pending(ctx)
	if err != nil {
		return nil, a.fail(wrapMissing(err))
	}

	if query.Get("state") != pending.State {
		return nil, a.fail(shared.ErrStateMismatch)
	}

	return a.exchangeLocked(ctx, clientID, *pending, query.Get("code"))
}

// Exchange redeems code for an access token using the pending verifier.
//
// With no pending verifier it fails with [shared.ErrMissingVerifier] before any network call.
// The slot is cleared only when a token comes back.
func (a *Authenticator) Exchange(ctx context.Context, clientID, code string) (*oauth2.Token, error) {
	a.op.Lock()
	defer a.op.Unlock()

	pending, err := a.store.Pending(ctx)
	if err != nil {
		return nil, a.fail(wrapMissing(err))
	}

	return a.exchangeLocked(ctx, clientID, *pending, code)
}

// exchangeLocked expects a.op to be held.
func (a *Authenticator) exchangeLocked(ctx context.Context, clientID string, pending Pending, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, a.fail(shared.ErrMissingCode)
	}

	a.transition(Exchanging)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.tokenClient())

	token, err := a.config(clientID, pending.RedirectURI).Exchange(ctx, code, oauth2.VerifierOption(pending.Verifier))
	if err != nil {
		return nil, a.fail(classifyExchangeError(err))
	}

	if err := a.store.ClearPending(ctx); err != nil {
		a.logger.Warn("token issued but pending verifier was not cleared", "error", err)
	}

	a.transition(Authenticated)
	a.logger.Info("authorization complete", "token", shared.Redact(token.AccessToken), "expiry", token.Expiry)

	return token, nil
}

// maxTokenResponse bounds the token endpoint body read by [bufferedTransport].
const maxTokenResponse = 1 << 20

// tokenClient returns a copy of the configured client whose transport reads the whole
// response body before returning. A connection dropped mid-body then surfaces from
// [http.Client.Do] as a [*url.Error] instead of a decode failure.
func (a *Authenticator) tokenClient() *http.Client {
	client := &http.Client{}
	if a.httpClient != nil {
		c := *a.httpClient
		client = &c
	}

	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = bufferedTransport{base: base}
	return client
}

type bufferedTransport struct {
	base http.RoundTripper
}

func (t bufferedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponse))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, nil
}

func wrapMissing(err error) error {
	if errors.Is(err, shared.ErrMissingVerifier) {
		return err
	}
	return fmt.Errorf("failed to load pending authorization: %w", err)
}

// RejectedError carries the token endpoint's error payload.
type RejectedError struct {
	StatusCode  int
	ErrorCode   string
	Description string
	Body        []byte
}

func (e *RejectedError) Error() string {
	msg := fmt.Sprintf("%v: status %d", shared.ErrExchangeRejected, e.StatusCode)
	if e.ErrorCode != "" {
		msg += ": " + e.ErrorCode
	}
	if e.Description != "" {
		msg += " (" + e.Description + ")"
	}
	return msg
}

func (e *RejectedError) Unwrap() error {
	return shared.ErrExchangeRejected
}

func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		rejected := &RejectedError{
			ErrorCode:   retrieveErr.ErrorCode,
			Description: retrieveErr.ErrorDescription,
			Body:        retrieveErr.Body,
		}
		if retrieveErr.Response != nil {
			rejected.StatusCode = retrieveErr.Response.StatusCode
		}
		return rejected
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", shared.ErrExchangeFailed, err)
	}

	return fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
}
