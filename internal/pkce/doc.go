// Package pkce implements the OAuth 2.0 Authorization Code flow with Proof Key for Code Exchange (RFC 7636)
// for a public client that holds no client secret.
//
// # Flow
//
// [Authenticator.Initiate] draws a fresh code verifier, parks it in the injected [Store] together with a CSRF
// state token and the redirect URI, derives the S256 challenge and hands the authorization URL to a [Navigator].
// When the provider redirects back, [Authenticator.HandleCallback] surfaces provider-side errors, checks the state
// and calls [Authenticator.Exchange], which posts the stored verifier to the token endpoint.
//
// # Session state
//
// The [Store] is a single slot. A second Initiate before Exchange overwrites the first attempt, which then can no
// longer be redeemed. The slot is cleared only after a successful exchange; every failure leaves it untouched and
// the caller restarts from Initiate.
//
// Implementations:
//   - [MemoryStore] : process-local, used by `spx login` and tests
//   - repositories.SessionStore : SQLite row per session, survives across processes
//   - web.CookieStore : gorilla/sessions cookie, the browser-session analogue for `spx serve`
//
// # Errors
//
// All failures wrap sentinels from the shared package:
//   - [shared.ErrRandomnessUnavailable] : crypto/rand failed, there is no fallback
//   - [shared.ErrMissingVerifier] : nothing pending, no network call was made
//   - [shared.ErrExchangeFailed] : transport failure talking to the token endpoint
//   - [shared.ErrExchangeRejected] : non-2xx from the token endpoint, see [RejectedError]
//   - [shared.ErrMalformedResponse] : 2xx without a usable access_token
//   - [shared.ErrAuthorizationDenied], [shared.ErrStateMismatch], [shared.ErrMissingCode] : bad callbacks
//
// Nothing is retried internally. An authorization code is burned on first use, so recovery is always a new Initiate.
package pkce
