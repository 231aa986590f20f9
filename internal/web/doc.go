// Package web serves the player remote to a browser.
//
// # Routes
//
//	GET  /                      → Profile and playback page, or a login link
//	GET  /login                 → Start a PKCE authorization and redirect to Spotify
//	GET  <redirect_uri path>    → Complete the authorization, then redirect to /
//	POST /logout                → Clear the session cookie
//	POST /player/{action}       → Form post from the page, redirects back to /
//	GET  /api/profile           → JSON profile
//	GET  /api/now               → JSON playback state
//	POST /api/player/{action}   → Apply an action and return JSON playback state
//
// Actions are the [player.Action] names; volume, set-repeat and set-shuffle read their argument from the "value" field.
//
// # State Management
//
// Each browser holds its own pending verifier and access token in a signed gorilla/sessions cookie ([CookieStore]),
// so concurrent users never share an authorization slot. Nothing is kept server-side between requests.
package web
