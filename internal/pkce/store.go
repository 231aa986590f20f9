package pkce

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/spx/internal/shared"
	"golang.org/x/oauth2"
)

// Pending is the content of the single authorization slot between Initiate and Exchange.
type Pending struct {
	Verifier    string
	State       string
	RedirectURI string
	CreatedAt   time.Time
}

// Store is the session-scoped slot holding at most one [Pending] authorization.
type Store interface {
	// SavePending replaces whatever is pending.
	SavePending(ctx context.Context, p Pending) error
	// Pending returns the pending authorization or an error wrapping [shared.ErrMissingVerifier].
	Pending(ctx context.Context) (*Pending, error)
	// ClearPending empties the slot. Clearing an empty slot is not an error.
	ClearPending(ctx context.Context) error
}

// TokenStore keeps the access token issued by a successful exchange.
type TokenStore interface {
	SaveToken(ctx context.Context, token *oauth2.Token) error
	// Token returns [shared.ErrNotAuthenticated] when nothing is stored
	// and [shared.ErrTokenExpired] when the stored token is past its expiry.
	Token(ctx context.Context) (*oauth2.Token, error)
	ClearToken(ctx context.Context) error
}

// MemoryStore is a process-local [Store] and [TokenStore].
type MemoryStore struct {
	mu      sync.Mutex
	pending *Pending
	token   *oauth2.Token
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SavePending(_ context.Context, p Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = &p
	return nil
}

func (s *MemoryStore) Pending(_ context.Context) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || s.pending.Verifier == "" {
		return nil, shared.ErrMissingVerifier
	}

	p := *s.pending
	return &p, nil
}

func (s *MemoryStore) ClearPending(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	return nil
}

func (s *MemoryStore) SaveToken(_ context.Context, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	return nil
}

func (s *MemoryStore) Token(_ context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return CheckToken(s.token, time.Now())
}

func (s *MemoryStore) ClearToken(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
	return nil
}

// CheckToken applies the [TokenStore] expiry rules to token.
func CheckToken(token *oauth2.Token, now time.Time) (*oauth2.Token, error) {
	if token == nil || token.AccessToken == "" {
		return nil, shared.ErrNotAuthenticated
	}
	if !token.Expiry.IsZero() && !now.Before(token.Expiry) {
		return nil, shared.ErrTokenExpired
	}
	return token, nil
}
