package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/spx/internal/shared"
)

// PendingAuth is an authorization attempt that has been redirected but not yet exchanged.
type PendingAuth struct {
	Verifier    string
	State       string
	RedirectURI string
	CreatedAt   time.Time
}

// Token is the access token issued by the provider.
type Token struct {
	AccessToken string
	TokenType   string
	Scope       string
	Expiry      time.Time
}

// Valid reports whether the token is present and unexpired at now.
// A zero Expiry never expires.
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.Expiry.IsZero() || now.Before(t.Expiry)
}

// Session is one user agent's authorization state.
type Session struct {
	Base
	Pending *PendingAuth
	Token   *Token
}

// NewSession creates an empty session with the given sequence.
func NewSession(sequence int) *Session {
	return &Session{Base: newBase(sequence)}
}

// Authenticated reports whether the session holds a usable token.
func (s *Session) Authenticated(now time.Time) bool {
	return s.Token.Valid(now)
}

func (s *Session) Validate() error {
	if s.Pending != nil {
		if s.Pending.Verifier == "" {
			return fmt.Errorf("%w: pending authorization without verifier", shared.ErrInvalidInput)
		}
		if s.Pending.State == "" {
			return fmt.Errorf("%w: pending authorization without state", shared.ErrInvalidInput)
		}
	}
	if s.Token != nil && s.Token.AccessToken == "" {
		return fmt.Errorf("%w: token without access token", shared.ErrInvalidInput)
	}
	return nil
}
