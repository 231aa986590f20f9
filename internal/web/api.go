package web

import (
	"encoding/json"
	"net/http"

	"github.com/desertthunder/spx/internal/formatter"
)

type apiError struct {
	Error string `json:"error"`
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("failed to write response", "error", err)
	}
}

func (a *App) writeError(w http.ResponseWriter, err error) {
	a.writeJSON(w, StatusFor(err), apiError{Error: err.Error()})
}

// apiProfile returns the [formatter.ProfileView] of the logged-in user.
func (a *App) apiProfile(w http.ResponseWriter, r *http.Request) {
	store, err := OpenCookieStore(a.sessions, w, r)
	if err != nil {
		a.writeError(w, err)
		return
	}

	token, err := store.Token(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}

	svc := a.newService()
	if err := svc.Authenticate(r.Context(), token); err != nil {
		a.writeError(w, err)
		return
	}

	user, err := svc.UserProfile(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, formatter.NewProfileView(user))
}

// apiNow returns the [formatter.PlaybackView] of the active device.
func (a *App) apiNow(w http.ResponseWriter, r *http.Request) {
	store, err := OpenCookieStore(a.sessions, w, r)
	if err != nil {
		a.writeError(w, err)
		return
	}

	p, err := a.player(r, store)
	if err != nil {
		a.writeError(w, err)
		return
	}

	snapshot, err := p.Load(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, formatter.NewPlaybackView(snapshot.Playing, snapshot.Repeat, snapshot.Shuffle))
}

// apiPlayer applies POST /api/player/{action}[?value=...] and returns the resulting playback view.
func (a *App) apiPlayer(w http.ResponseWriter, r *http.Request) {
	store, err := OpenCookieStore(a.sessions, w, r)
	if err != nil {
		a.writeError(w, err)
		return
	}

	snapshot, err := a.handleEvent(r, store)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, formatter.NewPlaybackView(snapshot.Playing, snapshot.Repeat, snapshot.Shuffle))
}
