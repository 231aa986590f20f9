// package services defines interface Service for interacting with the Spotify Web API
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/spx/internal/shared"
	"golang.org/x/oauth2"
)

// PlaybackService is the set of Web API calls the player drives.
type PlaybackService interface {
	// UserProfile retrieves the authenticated user's profile.
	UserProfile(ctx context.Context) (*SpotifyUser, error)

	// CurrentlyPlaying retrieves the playback state of the active device.
	CurrentlyPlaying(ctx context.Context) (*CurrentlyPlaying, error)

	Next(ctx context.Context) error
	Previous(ctx context.Context) error

	// SetVolume sets the volume of the active device, percent in [0, 100].
	SetVolume(ctx context.Context, percent int) error

	SetRepeat(ctx context.Context, mode RepeatMode) error
	SetShuffle(ctx context.Context, on bool) error
}

// Service is a [PlaybackService] that accepts a bearer token.
type Service interface {
	PlaybackService

	// Authenticate installs the access token used for every request.
	Authenticate(ctx context.Context, token *oauth2.Token) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// RepeatMode is the player's repeat state.
type RepeatMode string

const (
	RepeatOff     RepeatMode = "off"
	RepeatContext RepeatMode = "context"
	RepeatTrack   RepeatMode = "track"
)

// Valid reports whether m is one of the three repeat modes.
func (m RepeatMode) Valid() bool {
	switch m {
	case RepeatOff, RepeatContext, RepeatTrack:
		return true
	}
	return false
}

// Cycle returns the mode after m in the order off, context, track.
func (m RepeatMode) Cycle() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatContext
	case RepeatContext:
		return RepeatTrack
	default:
		return RepeatOff
	}
}

// ParseRepeatMode parses a case-insensitive repeat mode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	m := RepeatMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: repeat mode must be off, context or track, got %q", shared.ErrInvalidArgument, s)
	}
	return m, nil
}
