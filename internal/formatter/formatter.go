// package formatter renders Spotify profiles and playback state as text and JSON views
package formatter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/desertthunder/spx/internal/services"
)

const (
	// NoImage is shown in place of a missing profile picture URL.
	NoImage = "No image available"
	// NothingPlaying is shown when the player has no current item.
	NothingPlaying = "Nothing is playing"
)

// ProfileView is the flattened profile shown by `spx profile` and the web page.
type ProfileView struct {
	DisplayName string `json:"display_name"`
	ID          string `json:"id"`
	Email       string `json:"email"`
	URI         string `json:"uri"`
	ExternalURL string `json:"external_url"`
	Href        string `json:"href"`
	ImageURL    string `json:"image_url"`
}

// NewProfileView flattens user; the first image wins and an empty ImageURL means there is none.
func NewProfileView(user *services.SpotifyUser) ProfileView {
	v := ProfileView{
		DisplayName: user.DisplayName,
		ID:          user.ID,
		Email:       user.Email,
		URI:         user.URI,
		ExternalURL: user.ExternalURLs.Spotify,
		Href:        user.Href,
	}
	if len(user.Images) > 0 {
		v.ImageURL = user.Images[0].URL
	}
	return v
}

// PlaybackView is the flattened playback state shown by `spx now`, the TUI and the web page.
type PlaybackView struct {
	Playing    bool   `json:"is_playing"`
	Track      string `json:"track"`
	Album      string `json:"album,omitempty"`
	AlbumImage string `json:"album_image,omitempty"`
	Device     string `json:"device"`
	DeviceType string `json:"device_type"`
	Volume     int    `json:"volume_percent"`
	ProgressMS int    `json:"progress_ms"`
	DurationMS int    `json:"duration_ms"`
	Repeat     string `json:"repeat"`
	Shuffle    bool   `json:"shuffle"`
}

// NewPlaybackView flattens playing with the player's repeat and shuffle state.
// A nil playing is rendered as [services.NothingPlaying].
func NewPlaybackView(playing *services.CurrentlyPlaying, repeat services.RepeatMode, shuffle bool) PlaybackView {
	if playing == nil {
		playing = services.NothingPlaying()
	}

	v := PlaybackView{
		Playing:    playing.IsPlaying,
		Track:      NothingPlaying,
		Device:     playing.Device.Name,
		DeviceType: playing.Device.Type,
		Volume:     playing.Device.VolumePercent,
		ProgressMS: playing.ProgressMS,
		Repeat:     string(repeat),
		Shuffle:    shuffle,
	}

	if item := playing.Item; item != nil {
		v.Track = TrackLine(item)
		v.Album = item.Album.Name
		v.DurationMS = item.DurationMS
		if len(item.Album.Images) > 0 {
			v.AlbumImage = item.Album.Images[0].URL
		}
	}

	return v
}

// ArtistNames joins artist names with ", ".
func ArtistNames(artists []services.SpotifyArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// TrackLine renders "<name> by <artist, artist>".
func TrackLine(track *services.SpotifyTrack) string {
	if track == nil {
		return NothingPlaying
	}
	if len(track.Artists) == 0 {
		return track.Name
	}
	return fmt.Sprintf("%s by %s", track.Name, ArtistNames(track.Artists))
}

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int) string {
	if ms < 0 {
		ms = 0
	}
	seconds := ms / 1000
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// OnOff renders a flag the way the player commands accept it.
func OnOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// ProfileText renders a profile as aligned key/value lines.
func ProfileText(v ProfileView) []byte {
	var buf bytes.Buffer

	image := v.ImageURL
	if image == "" {
		image = NoImage
	}

	buf.WriteString(fmt.Sprintf("Name:   %s\n", v.DisplayName))
	buf.WriteString(fmt.Sprintf("ID:     %s\n", v.ID))
	buf.WriteString(fmt.Sprintf("Email:  %s\n", v.Email))
	buf.WriteString(fmt.Sprintf("URI:    %s\n", v.URI))
	if v.ExternalURL != "" {
		buf.WriteString(fmt.Sprintf("Link:   %s\n", v.ExternalURL))
	}
	buf.WriteString(fmt.Sprintf("API:    %s\n", v.Href))
	buf.WriteString(fmt.Sprintf("Image:  %s\n", image))

	return buf.Bytes()
}

// PlaybackText renders the playback state as a short block.
func PlaybackText(v PlaybackView) []byte {
	var buf bytes.Buffer

	buf.WriteString(v.Track + "\n")
	if v.Track == NothingPlaying {
		buf.WriteString(fmt.Sprintf("Device: %s (%s)\n", v.Device, v.DeviceType))
		return buf.Bytes()
	}

	if v.Album != "" {
		buf.WriteString(fmt.Sprintf("Album:  %s\n", v.Album))
	}

	status := "paused"
	if v.Playing {
		status = "playing"
	}
	buf.WriteString(fmt.Sprintf("Status: %s %s / %s\n", status, FormatDuration(v.ProgressMS), FormatDuration(v.DurationMS)))
	buf.WriteString(fmt.Sprintf("Device: %s (%s) volume %d%%\n", v.Device, v.DeviceType, v.Volume))
	buf.WriteString(fmt.Sprintf("Repeat: %s  Shuffle: %s\n", v.Repeat, OnOff(v.Shuffle)))

	return buf.Bytes()
}
