package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthExchange = fmt.Errorf("authorization code exchange failed")
	ErrRefresh      = fmt.Errorf("token refresh failed")
	ErrInvalidState = fmt.Errorf("invalid or expired state parameter")
	ErrTokenDecode  = fmt.Errorf("session token could not be decoded")

	// Provider errors
	ErrAPIRequest      = fmt.Errorf("API request failed")
	ErrNoActiveDevice  = fmt.Errorf("no active playback device")
	ErrNoActiveSession = fmt.Errorf("no active playback session")
	ErrPlaybackStart   = fmt.Errorf("playback start failed")
	ErrEnqueue         = fmt.Errorf("adding track to queue failed")
	ErrEmptyPlaylist   = fmt.Errorf("playlist has no playable tracks")

	// Persistence errors
	ErrRunNotFound = fmt.Errorf("replay run not found")

	// Input validation errors
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
