package web

import (
	"context"
	"net/http"
	"time"

	"github.com/desertthunder/spx/internal/pkce"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/gorilla/sessions"
	"golang.org/x/oauth2"
)

const sessionName = "spx_session"

const (
	keyVerifier    = "verifier"
	keyState       = "state"
	keyRedirectURI = "redirect_uri"
	keyPendingAt   = "pending_at"
	keyAccessToken = "access_token"
	keyTokenType   = "token_type"
	keyScope       = "scope"
	keyExpiry      = "expiry"
)

// CookieStore keeps one browser's pending authorization and token in a signed session cookie.
// It implements [pkce.Store] and [pkce.TokenStore] for the request it was opened on.
//
// Changes are buffered; [CookieStore.Flush] writes the cookie and must run before the response header.
type CookieStore struct {
	session *sessions.Session
	w       http.ResponseWriter
	r       *http.Request
	dirty   bool
	now     func() time.Time
}

// OpenCookieStore loads the session cookie of r. An unreadable cookie yields an empty session.
func OpenCookieStore(store sessions.Store, w http.ResponseWriter, r *http.Request) (*CookieStore, error) {
	session, err := store.Get(r, sessionName)
	if session == nil {
		return nil, err
	}

	cs := &CookieStore{session: session, w: w, r: r, now: time.Now}
	if err != nil {
		// Signed with a previous key: start over and overwrite it on the next flush.
		cs.dirty = true
	}
	return cs, nil
}

func (s *CookieStore) set(kv map[string]any) {
	for k, v := range kv {
		s.session.Values[k] = v
	}
	s.dirty = true
}

func (s *CookieStore) del(keys ...string) {
	for _, k := range keys {
		delete(s.session.Values, k)
	}
	s.dirty = true
}

func (s *CookieStore) str(key string) string {
	v, _ := s.session.Values[key].(string)
	return v
}

func (s *CookieStore) unix(key string) time.Time {
	v, ok := s.session.Values[key].(int64)
	if !ok || v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0)
}

// Flush writes the session cookie if anything changed.
func (s *CookieStore) Flush() error {
	if !s.dirty {
		return nil
	}
	if err := s.session.Save(s.r, s.w); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Clear drops everything in the session.
func (s *CookieStore) Clear() {
	for k := range s.session.Values {
		delete(s.session.Values, k)
	}
	s.dirty = true
}

func (s *CookieStore) SavePending(_ context.Context, p pkce.Pending) error {
	s.set(map[string]any{
		keyVerifier:    p.Verifier,
		keyState:       p.State,
		keyRedirectURI: p.RedirectURI,
		keyPendingAt:   p.CreatedAt.Unix(),
	})
	return nil
}

func (s *CookieStore) Pending(_ context.Context) (*pkce.Pending, error) {
	verifier := s.str(keyVerifier)
	if verifier == "" {
		return nil, shared.ErrMissingVerifier
	}

	return &pkce.Pending{
		Verifier:    verifier,
		State:       s.str(keyState),
		RedirectURI: s.str(keyRedirectURI),
		CreatedAt:   s.unix(keyPendingAt),
	}, nil
}

func (s *CookieStore) ClearPending(_ context.Context) error {
	s.del(keyVerifier, keyState, keyRedirectURI, keyPendingAt)
	return nil
}

func (s *CookieStore) SaveToken(_ context.Context, token *oauth2.Token) error {
	scope, _ := token.Extra("scope").(string)

	var expiry int64
	if !token.Expiry.IsZero() {
		expiry = token.Expiry.Unix()
	}

	s.set(map[string]any{
		keyAccessToken: token.AccessToken,
		keyTokenType:   token.Type(),
		keyScope:       scope,
		keyExpiry:      expiry,
	})
	return nil
}

func (s *CookieStore) Token(_ context.Context) (*oauth2.Token, error) {
	var token *oauth2.Token
	if access := s.str(keyAccessToken); access != "" {
		token = &oauth2.Token{
			AccessToken: access,
			TokenType:   s.str(keyTokenType),
			Expiry:      s.unix(keyExpiry),
		}
	}
	return pkce.CheckToken(token, s.now())
}

func (s *CookieStore) ClearToken(_ context.Context) error {
	s.del(keyAccessToken, keyTokenType, keyScope, keyExpiry)
	return nil
}
