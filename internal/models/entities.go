package models

import "time"

const (
	// FeaturedTracksSelector selects the user's saved tracks instead of a real playlist.
	FeaturedTracksSelector = "ft"
	// FeaturedTracksURI is the pseudo URI of the liked-songs entry; its third segment is [FeaturedTracksSelector].
	FeaturedTracksURI = "::" + FeaturedTracksSelector
)

// Playlist is a selectable entry on the playlist page.
type Playlist struct {
	ID             string
	URI            string
	Name           string
	FeaturedTracks bool   // true for the synthetic liked-songs entry
	ImageURL       string // 640px cover, empty when the provider has none
}

// FeaturedTracksPlaylist returns the synthetic entry standing for the user's liked songs.
func FeaturedTracksPlaylist() Playlist {
	return Playlist{FeaturedTracks: true, Name: "featured tracks", URI: FeaturedTracksURI}
}

// Track is a playable item.
type Track struct {
	Name string
	URI  string
}

// Device is a Spotify Connect endpoint able to receive play commands.
type Device struct {
	ID     string
	Type   string
	Name   string
	Active bool
}

// SessionCredential is the payload of the encrypted session token.
//
// ExpiresAt is in epoch milliseconds and already includes [ExpirySafetyMargin].
type SessionCredential struct {
	AccessToken  string `json:"authorization_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires"`
}

// ExpirySafetyMargin is subtracted from the provider-reported lifetime.
const ExpirySafetyMargin = 5 * time.Second

// ExpiryFrom computes the expiry for a token issued at now that lives expiresIn.
func ExpiryFrom(now time.Time, expiresIn time.Duration) int64 {
	return now.Add(expiresIn - ExpirySafetyMargin).UnixMilli()
}

// NeedsRefresh reports whether the access token expires within window of now.
func (c SessionCredential) NeedsRefresh(now time.Time, window time.Duration) bool {
	return now.Add(window).UnixMilli() > c.ExpiresAt
}
