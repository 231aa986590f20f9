// Package player turns UI events into Spotify playback calls.
//
// Every front end (CLI commands, the Bubble Tea remote and the web app) builds an [Event] and hands
// it to [Player.Handle], then renders the returned [Snapshot]. The player owns the two pieces of
// client-side state the Web API does not echo back on every call: the repeat mode used for cycling
// and the shuffle flag used for toggling.
//
// Skips are followed by a short pause and a playback refresh, since the API reports the new track
// only after the device has switched.
package player
