package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/shared"
)

const sessionColumns = `
	id, sequence, verifier, state, redirect_uri, pending_at,
	access_token, token_type, scope, expires_at,
	created_at, updated_at, deleted_at
`

// SessionRepository implements [models.Repository] for [models.Session] persistence.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session into the database with generated ID and sequence
func (r *SessionRepository) Create(session *models.Session) error {
	sequence, err := NextSequence(r.db, "sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	session.SetID(shared.GenerateID())
	session.SetSequence(sequence)

	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	pending := pendingArgs(session.Pending)
	token := tokenArgs(session.Token)

	query := `
		INSERT INTO sessions (
			id, sequence, verifier, state, redirect_uri, pending_at,
			access_token, token_type, scope, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	args := []any{session.ID(), sequence}
	args = append(args, pending...)
	args = append(args, token...)
	args = append(args, session.CreatedAt(), session.UpdatedAt())

	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Get retrieves a session by ID, excluding soft-deleted sessions
func (r *SessionRepository) Get(id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ? AND deleted_at IS NULL`

	session, err := scanSession(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	return session, nil
}

// Current returns the most recently created live session.
func (r *SessionRepository) Current() (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE deleted_at IS NULL ORDER BY sequence DESC LIMIT 1`

	session, err := scanSession(r.db.QueryRow(query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	return session, nil
}

// CurrentOrCreate returns [SessionRepository.Current], creating an empty session when there is none.
func (r *SessionRepository) CurrentOrCreate() (*models.Session, error) {
	session, err := r.Current()
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, shared.ErrSessionNotFound) {
		return nil, err
	}

	session = models.NewSession(0)
	if err := r.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Update writes the pending slot and token of an existing session
func (r *SessionRepository) Update(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	session.SetUpdatedAt(now)

	query := `
		UPDATE sessions
		SET verifier = ?, state = ?, redirect_uri = ?, pending_at = ?,
			access_token = ?, token_type = ?, scope = ?, expires_at = ?,
			updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	args := pendingArgs(session.Pending)
	args = append(args, tokenArgs(session.Token)...)
	args = append(args, now, session.ID())

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return requireRow(result, session.ID())
}

// Delete soft-deletes a session by ID
func (r *SessionRepository) Delete(id string) error {
	query := `
		UPDATE sessions
		SET deleted_at = ?, verifier = NULL, state = NULL, access_token = NULL
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return requireRow(result, id)
}

// List retrieves live sessions ordered by sequence.
//
// The "authenticated" criterion (bool) filters on whether an access token is stored.
func (r *SessionRepository) List(criteria map[string]any) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE deleted_at IS NULL`

	if authenticated, ok := criteria["authenticated"].(bool); ok {
		if authenticated {
			query += " AND access_token IS NOT NULL"
		} else {
			query += " AND access_token IS NULL"
		}
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}

// PurgeExpired drops tokens that expired before now and returns how many sessions were touched.
func (r *SessionRepository) PurgeExpired(now time.Time) (int64, error) {
	query := `
		UPDATE sessions
		SET access_token = NULL, token_type = NULL, scope = NULL, expires_at = NULL, updated_at = ?
		WHERE deleted_at IS NULL AND access_token IS NOT NULL
			AND expires_at IS NOT NULL AND expires_at <= ?
	`

	result, err := r.db.Exec(query, now, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired tokens: %w", err)
	}

	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		id, verifier, state, redirectURI sql.NullString
		accessToken, tokenType, scope    sql.NullString
		sequence                         int
		pendingAt, expiresAt, deletedAt  sql.NullTime
		createdAt, updatedAt             time.Time
	)

	err := row.Scan(
		&id, &sequence, &verifier, &state, &redirectURI, &pendingAt,
		&accessToken, &tokenType, &scope, &expiresAt,
		&createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	session := models.NewSession(sequence)
	session.SetID(id.String)
	session.SetCreatedAt(createdAt)
	session.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		session.SetDeletedAt(&deletedAt.Time)
	}

	if verifier.Valid && verifier.String != "" {
		session.Pending = &models.PendingAuth{
			Verifier:    verifier.String,
			State:       state.String,
			RedirectURI: redirectURI.String,
			CreatedAt:   pendingAt.Time,
		}
	}

	if accessToken.Valid && accessToken.String != "" {
		session.Token = &models.Token{
			AccessToken: accessToken.String,
			TokenType:   tokenType.String,
			Scope:       scope.String,
			Expiry:      expiresAt.Time,
		}
	}

	return session, nil
}

func pendingArgs(p *models.PendingAuth) []any {
	if p == nil {
		return []any{nil, nil, nil, nil}
	}
	return []any{p.Verifier, p.State, p.RedirectURI, p.CreatedAt}
}

func tokenArgs(t *models.Token) []any {
	if t == nil {
		return []any{nil, nil, nil, nil}
	}

	var expiry any
	if !t.Expiry.IsZero() {
		expiry = t.Expiry.UTC()
	}
	return []any{t.AccessToken, t.TokenType, t.Scope, expiry}
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return nil
}
