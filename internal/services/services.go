package services

import (
	"context"
	"strings"
	"time"

	"github.com/teremich/spotify-true-random/internal/models"
)

// Provider is the process-wide side of the streaming service: the OAuth client and the means to
// open a [Library] for one user. Implementations must not hold per-user tokens.
type Provider interface {
	// AuthURL builds the authorization URL the browser is redirected to.
	AuthURL(state string) string

	// Exchange trades an authorization code for a credential.
	// Fails with [shared.ErrAuthExchange] when the provider rejects the code.
	Exchange(ctx context.Context, code string) (models.SessionCredential, error)

	// Refresh obtains a new access token. Fails with [shared.ErrRefresh].
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)

	// Library opens the user's library with the given credential. The credential is never stored.
	Library(ctx context.Context, cred models.SessionCredential) Library
}

// Library is one user's view of the provider, bound to a single access token for the duration of a request.
type Library interface {
	// Playlists lists every playlist of the user.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// Tracks lists every playable track behind a selector (a playlist ID or [models.FeaturedTracksSelector]).
	Tracks(ctx context.Context, selector string) ([]models.Track, error)

	// Devices lists the user's playback devices.
	Devices(ctx context.Context) ([]models.Device, error)

	// StartPlayback plays at most [MaxPlayURIs] tracks on the device, replacing what is playing.
	StartPlayback(ctx context.Context, uris []string, deviceID string) error

	// Enqueue appends one track to the device queue.
	Enqueue(ctx context.Context, uri, deviceID string) error
}

// RefreshResult is the outcome of a token refresh.
//
// RefreshToken is empty when the provider did not rotate it.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Apply returns cred updated with the refreshed token and a new expiry computed from now.
func (r *RefreshResult) Apply(cred models.SessionCredential, now time.Time) models.SessionCredential {
	cred.AccessToken = r.AccessToken
	if r.RefreshToken != "" {
		cred.RefreshToken = r.RefreshToken
	}
	cred.ExpiresAt = models.ExpiryFrom(now, r.ExpiresIn)
	return cred
}

// SelectorFromURI extracts the playlist selector from a provider URI:
// the third colon separated segment, so "spotify:playlist:abc" yields "abc" and "::ft" yields "ft".
//
// Values without two colons are returned unchanged, which lets callers pass a bare ID.
func SelectorFromURI(uri string) string {
	parts := strings.SplitN(uri, ":", 3)
	if len(parts) < 3 {
		return uri
	}
	return parts[2]
}
