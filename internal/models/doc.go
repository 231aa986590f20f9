// Package models defines the persistent entities of spx and the repository contract used to store them.
//
// There is one entity, [Session]. It holds the single pending-authorization slot ([PendingAuth])
// between the redirect to the provider and the token exchange, and the access token ([Token])
// once the exchange succeeds.
//
// All persistent entities implement [Model], providing ID, timestamps, validation and soft delete support.
// The [Repository] interface defines standard CRUD operations for database access.
package models
