// Spotify implementation of [Provider] and [Library] on top of github.com/zmb3/spotify/v2.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/teremich/spotify-true-random/internal/models"
	"github.com/teremich/spotify-true-random/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const (
	// MaxPlayURIs is the most tracks the provider accepts in a single play request.
	MaxPlayURIs = 50
	// DefaultPageSize is the page limit used for playlists and tracks.
	DefaultPageSize = 50

	defaultAPIBaseURL    = "https://api.spotify.com/v1/"
	defaultTokenLifetime = time.Hour
	coverWidth           = 640
	trackURIPrefix       = "spotify:track:"
)

// Scopes requested during authorization.
var Scopes = []string{
	"ugc-image-upload",
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"streaming",
	"app-remote-control",
	"user-read-email",
	"user-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-read-private",
	"playlist-modify-private",
	"user-library-modify",
	"user-library-read",
	"user-top-read",
	"user-read-playback-position",
	"user-read-recently-played",
	"user-follow-read",
	"user-follow-modify",
}

// SpotifyService implements [Provider] for the Spotify Web API.
//
// It owns the [oauth2.Config] and client settings only; user tokens are passed to every call.
type SpotifyService struct {
	config        *oauth2.Config
	apiBaseURL    string
	httpClient    *http.Client
	timeout       time.Duration
	pageSize      int
	retries       int
	retryInterval time.Duration
	logger        *log.Logger
	now           func() time.Time
}

// NewSpotifyService creates a service from the configured client credentials.
//
// Empty endpoint fields fall back to the public Spotify endpoints.
func NewSpotifyService(cfg shared.SpotifyConfig, redirectURI string) (*SpotifyService, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client id and secret are required", shared.ErrMissingCredentials)
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   lo.CoalesceOrEmpty(cfg.AuthURL, spotifyauth.AuthURL),
			TokenURL:  lo.CoalesceOrEmpty(cfg.TokenURL, spotifyauth.TokenURL),
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	baseURL := lo.CoalesceOrEmpty(cfg.APIBaseURL, defaultAPIBaseURL)
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &SpotifyService{
		config:        config,
		apiBaseURL:    baseURL,
		pageSize:      DefaultPageSize,
		retries:       3,
		retryInterval: 500 * time.Millisecond,
		logger:        log.Default(),
		now:           time.Now,
	}, nil
}

// SetHTTPClient sets the base client used for token and API calls. Tests point it at an httptest server.
func (s *SpotifyService) SetHTTPClient(c *http.Client) { s.httpClient = c }

// SetTimeout bounds every API call made through a [Library]. Zero means no timeout.
func (s *SpotifyService) SetTimeout(d time.Duration) { s.timeout = d }

// SetLogger replaces the service logger.
func (s *SpotifyService) SetLogger(l *log.Logger) { s.logger = l }

// SetPageSize sets the page limit, clamped to the provider maximum of 50.
func (s *SpotifyService) SetPageSize(n int) {
	s.pageSize = max(1, min(n, DefaultPageSize))
}

// SetEnqueueRetries configures how often a rate limited queue call is retried and the first backoff interval.
func (s *SpotifyService) SetEnqueueRetries(n int, interval time.Duration) {
	s.retries = max(0, n)
	s.retryInterval = interval
}

// AuthURL returns the Spotify authorization URL for state.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a [models.SessionCredential].
func (s *SpotifyService) Exchange(ctx context.Context, code string) (models.SessionCredential, error) {
	if code == "" {
		return models.SessionCredential{}, fmt.Errorf("%w: empty authorization code", shared.ErrAuthExchange)
	}

	tok, err := s.config.Exchange(s.withClient(ctx), code)
	if err != nil {
		return models.SessionCredential{}, fmt.Errorf("%w: %w", shared.ErrAuthExchange, err)
	}

	now := s.now()
	return models.SessionCredential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    models.ExpiryFrom(now, lifetime(tok, now)),
	}, nil
}

// Refresh obtains a new access token for refreshToken.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", shared.ErrRefresh)
	}

	src := s.config.TokenSource(s.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRefresh, err)
	}

	return &RefreshResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    lifetime(tok, s.now()),
	}, nil
}

// Library opens a Spotify client authorized with cred's access token.
//
// The token is used as is; refreshing is the caller's decision.
func (s *SpotifyService) Library(ctx context.Context, cred models.SessionCredential) Library {
	tok := &oauth2.Token{AccessToken: cred.AccessToken, TokenType: "Bearer"}

	httpClient := oauth2.NewClient(s.withClient(ctx), oauth2.StaticTokenSource(tok))
	httpClient.Timeout = s.timeout

	return &spotifyLibrary{
		api:           spotify.New(httpClient, spotify.WithBaseURL(s.apiBaseURL)),
		pageSize:      s.pageSize,
		retries:       s.retries,
		retryInterval: s.retryInterval,
		logger:        s.logger,
	}
}

func (s *SpotifyService) withClient(ctx context.Context) context.Context {
	if s.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// lifetime reports how long tok stays valid, preferring the provider's expires_in.
func lifetime(tok *oauth2.Token, now time.Time) time.Duration {
	if tok.ExpiresIn > 0 {
		return time.Duration(tok.ExpiresIn) * time.Second
	}
	if !tok.Expiry.IsZero() {
		return tok.Expiry.Sub(now)
	}
	return defaultTokenLifetime
}

// spotifyAPI is the subset of [spotify.Client] a library needs.
type spotifyAPI interface {
	CurrentUsersPlaylists(ctx context.Context, opts ...spotify.RequestOption) (*spotify.SimplePlaylistPage, error)
	CurrentUsersTracks(ctx context.Context, opts ...spotify.RequestOption) (*spotify.SavedTrackPage, error)
	GetPlaylistItems(ctx context.Context, playlistID spotify.ID, opts ...spotify.RequestOption) (*spotify.PlaylistItemPage, error)
	PlayerDevices(ctx context.Context) ([]spotify.PlayerDevice, error)
	PlayOpt(ctx context.Context, opt *spotify.PlayOptions) error
	QueueSongOpt(ctx context.Context, trackID spotify.ID, opt *spotify.PlayOptions) error
}

type spotifyLibrary struct {
	api           spotifyAPI
	pageSize      int
	retries       int
	retryInterval time.Duration
	logger        *log.Logger
}

// Playlists pages through the user's playlists until the provider reports no next page.
func (l *spotifyLibrary) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	offset := 0

	for {
		page, err := l.api.CurrentUsersPlaylists(ctx, spotify.Limit(l.pageSize), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("%w: playlists at offset %d: %w", shared.ErrAPIRequest, offset, err)
		}

		for _, p := range page.Playlists {
			// deleted or unavailable playlists come back as empty placeholders
			if p.ID == "" {
				continue
			}
			playlists = append(playlists, models.Playlist{
				ID:       string(p.ID),
				URI:      string(p.URI),
				Name:     p.Name,
				ImageURL: coverURL(p.Images),
			})
		}

		if page.Next == "" || len(page.Playlists) == 0 {
			break
		}
		offset += l.pageSize
	}

	l.logger.Debug("listed playlists", "count", len(playlists))
	return playlists, nil
}

func coverURL(images []spotify.Image) string {
	img, ok := lo.Find(images, func(img spotify.Image) bool { return int(img.Width) == coverWidth })
	if !ok {
		return ""
	}
	return img.URL
}

// trackPage fetches one page at offset and returns the playable tracks, the number of raw items
// on the page and the provider reported total.
type trackPage func(ctx context.Context, offset int) (tracks []models.Track, items int, total int, err error)

// Tracks pages through the selected collection. The cursor is the number of items fetched so far,
// and paging stops once it reaches the reported total or a page comes back empty.
func (l *spotifyLibrary) Tracks(ctx context.Context, selector string) ([]models.Track, error) {
	fetch := l.playlistItems(spotify.ID(selector))
	if selector == models.FeaturedTracksSelector {
		fetch = l.savedTracks
	}

	var tracks []models.Track
	fetched, pages := 0, 0

	for {
		page, items, total, err := fetch(ctx, fetched)
		if err != nil {
			return nil, fmt.Errorf("%w: tracks for %q at offset %d: %w", shared.ErrAPIRequest, selector, fetched, err)
		}
		pages++

		tracks = append(tracks, page...)
		fetched += items

		if items == 0 || fetched >= total {
			break
		}
	}

	l.logger.Debug("listed tracks", "selector", selector, "count", len(tracks), "pages", pages)
	return tracks, nil
}

func (l *spotifyLibrary) savedTracks(ctx context.Context, offset int) ([]models.Track, int, int, error) {
	page, err := l.api.CurrentUsersTracks(ctx, spotify.Limit(l.pageSize), spotify.Offset(offset))
	if err != nil {
		return nil, 0, 0, err
	}

	tracks := lo.FilterMap(page.Tracks, func(t spotify.SavedTrack, _ int) (models.Track, bool) {
		return models.Track{Name: t.Name, URI: string(t.URI)}, queueable(string(t.URI))
	})
	return tracks, len(page.Tracks), int(page.Total), nil
}

func (l *spotifyLibrary) playlistItems(id spotify.ID) trackPage {
	return func(ctx context.Context, offset int) ([]models.Track, int, int, error) {
		page, err := l.api.GetPlaylistItems(ctx, id, spotify.Limit(l.pageSize), spotify.Offset(offset))
		if err != nil {
			return nil, 0, 0, err
		}

		// episodes, local files and removed tracks advance the cursor but are not playable here
		tracks := lo.FilterMap(page.Items, func(item spotify.PlaylistItem, _ int) (models.Track, bool) {
			t := item.Track.Track
			if t == nil || item.IsLocal || !queueable(string(t.URI)) {
				return models.Track{}, false
			}
			return models.Track{Name: t.Name, URI: string(t.URI)}, true
		})
		return tracks, len(page.Items), int(page.Total), nil
	}
}

// queueable reports whether uri names a catalog track; local files (spotify:local:...) cannot be queued.
func queueable(uri string) bool {
	return strings.HasPrefix(uri, trackURIPrefix) && len(uri) > len(trackURIPrefix)
}

// Devices lists the user's playback devices in provider order.
func (l *spotifyLibrary) Devices(ctx context.Context) ([]models.Device, error) {
	devices, err := l.api.PlayerDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: devices: %w", shared.ErrAPIRequest, err)
	}

	return lo.Map(devices, func(d spotify.PlayerDevice, _ int) models.Device {
		return models.Device{ID: string(d.ID), Type: d.Type, Name: d.Name, Active: d.Active}
	}), nil
}

// StartPlayback plays the first [MaxPlayURIs] of uris on deviceID.
//
// A 404 from the player means there is no session to play into and wraps [shared.ErrNoActiveSession];
// every other failure wraps [shared.ErrPlaybackStart].
func (l *spotifyLibrary) StartPlayback(ctx context.Context, uris []string, deviceID string) error {
	uris = uris[:min(len(uris), MaxPlayURIs)]

	opt := &spotify.PlayOptions{
		DeviceID: deviceOpt(deviceID),
		URIs:     lo.Map(uris, func(u string, _ int) spotify.URI { return spotify.URI(u) }),
	}

	if err := l.api.PlayOpt(ctx, opt); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return fmt.Errorf("%w: %w", shared.ErrNoActiveSession, err)
		}
		return fmt.Errorf("%w: %w", shared.ErrPlaybackStart, err)
	}
	return nil
}

// Enqueue appends uri to the device queue, retrying with exponential backoff while the provider rate limits.
func (l *spotifyLibrary) Enqueue(ctx context.Context, uri, deviceID string) error {
	trackID := spotify.ID(strings.TrimPrefix(uri, trackURIPrefix))
	opt := &spotify.PlayOptions{DeviceID: deviceOpt(deviceID)}

	attempt := func() error {
		err := l.api.QueueSongOpt(ctx, trackID, opt)
		if err != nil && statusOf(err) != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		l.logger.Warn("queue rate limited, retrying", "uri", uri, "wait", wait)
	}

	if err := backoff.RetryNotify(attempt, l.retryPolicy(ctx), notify); err != nil {
		return fmt.Errorf("%w: %s: %w", shared.ErrEnqueue, uri, err)
	}
	return nil
}

func (l *spotifyLibrary) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.retryInterval
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = time.Minute
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(l.retries)), ctx)
}

func deviceOpt(deviceID string) *spotify.ID {
	if deviceID == "" {
		return nil
	}
	id := spotify.ID(deviceID)
	return &id
}

// statusOf returns the HTTP status carried by a provider error, or 0.
func statusOf(err error) int {
	var se spotify.Error
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
