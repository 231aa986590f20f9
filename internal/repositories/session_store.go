package repositories

import (
	"context"
	"time"

	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/pkce"
	"github.com/desertthunder/spx/internal/shared"
	"golang.org/x/oauth2"
)

// SessionStore adapts one row of [SessionRepository] to [pkce.Store] and [pkce.TokenStore],
// so an authorization started by one process can be exchanged by another.
type SessionStore struct {
	repo      *SessionRepository
	sessionID string
	now       func() time.Time
}

// NewSessionStore binds a store to the session with sessionID.
func NewSessionStore(repo *SessionRepository, sessionID string) *SessionStore {
	return &SessionStore{repo: repo, sessionID: sessionID, now: time.Now}
}

// SessionID returns the ID of the bound session.
func (s *SessionStore) SessionID() string {
	return s.sessionID
}

func (s *SessionStore) modify(fn func(*models.Session)) error {
	session, err := s.repo.Get(s.sessionID)
	if err != nil {
		return err
	}
	fn(session)
	return s.repo.Update(session)
}

func (s *SessionStore) SavePending(_ context.Context, p pkce.Pending) error {
	return s.modify(func(session *models.Session) {
		session.Pending = &models.PendingAuth{
			Verifier:    p.Verifier,
			State:       p.State,
			RedirectURI: p.RedirectURI,
			CreatedAt:   p.CreatedAt,
		}
	})
}

func (s *SessionStore) Pending(_ context.Context) (*pkce.Pending, error) {
	session, err := s.repo.Get(s.sessionID)
	if err != nil {
		return nil, err
	}
	if session.Pending == nil {
		return nil, shared.ErrMissingVerifier
	}

	return &pkce.Pending{
		Verifier:    session.Pending.Verifier,
		State:       session.Pending.State,
		RedirectURI: session.Pending.RedirectURI,
		CreatedAt:   session.Pending.CreatedAt,
	}, nil
}

func (s *SessionStore) ClearPending(_ context.Context) error {
	return s.modify(func(session *models.Session) {
		session.Pending = nil
	})
}

func (s *SessionStore) SaveToken(_ context.Context, token *oauth2.Token) error {
	return s.modify(func(session *models.Session) {
		scope, _ := token.Extra("scope").(string)
		session.Token = &models.Token{
			AccessToken: token.AccessToken,
			TokenType:   token.Type(),
			Scope:       scope,
			Expiry:      token.Expiry,
		}
	})
}

func (s *SessionStore) Token(_ context.Context) (*oauth2.Token, error) {
	session, err := s.repo.Get(s.sessionID)
	if err != nil {
		return nil, err
	}

	var token *oauth2.Token
	if session.Token != nil {
		token = &oauth2.Token{
			AccessToken: session.Token.AccessToken,
			TokenType:   session.Token.TokenType,
			Expiry:      session.Token.Expiry,
		}
	}
	return pkce.CheckToken(token, s.now())
}

func (s *SessionStore) ClearToken(_ context.Context) error {
	return s.modify(func(session *models.Session) {
		session.Token = nil
	})
}
