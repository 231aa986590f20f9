// Package ui implements the interactive player remote using bubbletea's Elm architecture.
//
// The remote has three views:
//  1. [LoadingView] : Fetch the profile and playback state
//  2. [PlayerView] : Show the current track and send commands
//  3. [ErrorView] : Show a failure that stops the remote
//
// The [Model] turns key presses into [player.Event]s and runs them through a [player.Player] off the UI goroutine.
// Results come back as [Msg] values; a periodic tick refreshes playback state while the remote is idle.
//
// Keyboard bindings (n/p, +/-, r, s, u, ?, q) are listed with charmbracelet/bubbles/help.
package ui
