// Package server hosts the short-lived callback endpoint used by `spx login`.
//
// A [BasicRouter] (an [http.ServeMux] with method patterns) carries the [Middleware] stack:
// [Recoverer] and [RequestLogger], which the web app reuses on its gorilla/mux router.
// Middleware added first runs outermost.
//
// [CallbackHandler] answers the provider redirect. It passes the query to a
// [CallbackExchanger], normally the PKCE authenticator, and publishes exactly one
// [OAuthResult] on its Result channel. Later hits are refused with 400.
//
// [CallbackStatus] maps authorization errors to the status shown in the browser.
package server
