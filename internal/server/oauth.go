package server

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"sync"

	"github.com/desertthunder/spx/internal/shared"
	"golang.org/x/oauth2"
)

// CallbackExchanger validates a provider redirect and redeems its code.
//
// [pkce.Authenticator] implements it.
type CallbackExchanger interface {
	HandleCallback(ctx context.Context, clientID string, query url.Values) (*oauth2.Token, error)
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { margin: 0 0 1rem 0; }
        h1.ok { color: #1DB954; }
        h1.fail { color: #c0392b; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        {{if .OK}}<h1 class="ok">✓ {{.Title}}</h1>{{else}}<h1 class="fail">✗ {{.Title}}</h1>{{end}}
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

type callbackView struct {
	OK      bool
	Title   string
	Message string
}

// CallbackHandler receives the provider redirect for the CLI login flow.
// Implements the Handler interface for registration with a Router.
type CallbackHandler struct {
	auth        CallbackExchanger
	clientID    string
	path        string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewCallbackHandler creates a handler serving path that completes the flow through auth.
func NewCallbackHandler(auth CallbackExchanger, clientID, path string) *CallbackHandler {
	if path == "" {
		path = "/callback"
	}
	return &CallbackHandler{
		auth:       auth,
		clientID:   clientID,
		path:       path,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP handles the OAuth callback request.
//
// Only the first request is processed; the outcome is sent through the result channel.
// A request whose state does not match the pending attempt, such as a stale tab from an
// earlier login, is answered with 400 and does not end the flow.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	token, err := h.auth.HandleCallback(r.Context(), h.clientID, r.URL.Query())
	if errors.Is(err, shared.ErrStateMismatch) {
		h.mu.Lock()
		h.callbackHit = false
		h.mu.Unlock()

		renderCallback(w, http.StatusBadRequest, callbackView{
			Title:   "Authorization Failed",
			Message: "This link belongs to an earlier login attempt. Finish the login in the most recent browser tab.",
		})
		return
	}
	if err != nil {
		h.Send(OAuthResult{err: err})
		renderCallback(w, CallbackStatus(err), callbackView{
			Title:   "Authorization Failed",
			Message: err.Error(),
		})
		return
	}

	h.Send(OAuthResult{Token: token})
	renderCallback(w, http.StatusOK, callbackView{
		OK:      true,
		Title:   "Authorization Successful",
		Message: "You can close this window and return to the terminal.",
	})
}

// CallbackStatus maps an authorization error to the HTTP status shown to the browser.
func CallbackStatus(err error) int {
	switch {
	case errors.Is(err, shared.ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrStateMismatch),
		errors.Is(err, shared.ErrMissingCode),
		errors.Is(err, shared.ErrMissingVerifier):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrExchangeRejected),
		errors.Is(err, shared.ErrExchangeFailed),
		errors.Is(err, shared.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func renderCallback(w http.ResponseWriter, status int, view callbackView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = callbackPage.Execute(w, view)
}

// Send sends the OAuth result through the channel (only once).
func (h *CallbackHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *CallbackHandler) Result() <-chan OAuthResult {
	return h.resultChan
}
