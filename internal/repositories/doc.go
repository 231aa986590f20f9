// Package repositories implements SQLite persistence for spx sessions.
//
// Key Implementations:
//   - [SessionRepository] : CRUD over the sessions table with soft deletes and token expiry purging
//   - [SessionStore] : one session row exposed as a [pkce.Store] and [pkce.TokenStore]
//
// Sequence numbers provide stable, human-readable ordering (session #3) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
