// Package services defines the [Service] interface for the Spotify Web API and implements it with [SpotifyService].
//
// # Authentication
//
// [SpotifyService.Authenticate] takes the token produced by the PKCE exchange. Requests are sent
// through an [oauth2.Transport] built from a static token source: there is no refresh token, so an
// expired or revoked token surfaces as [shared.ErrUnauthorized] and the caller starts a new authorization.
//
// # Playback
//
// The [PlaybackService] subset covers the profile, the player state and the player commands.
// [SpotifyService.CurrentlyPlaying] maps 204 and 404 responses to [NothingPlaying] rather than an error.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrUnauthorized] : 401 from the API
//   - [shared.ErrNoActiveDevice] : player command with no active device
//   - [shared.ErrServiceUnavailable] : 429 or 5xx
//   - [shared.ErrAPIRequest] : any other failure, carried by [APIError]
//
// Requests are paced by a [rate.Limiter] configured from player.requests_per_second.
package services
