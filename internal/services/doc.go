// Package services talks to the streaming provider.
//
// # Provider and Library
//
// [Provider] is the process-wide half: it builds the authorization URL, exchanges codes and refreshes
// tokens. It never stores a user's tokens. Anything that needs a token goes through a [Library],
// opened per request with [Provider.Library] and discarded with the request, so concurrent users
// cannot overwrite each other's credentials.
//
// # Spotify Implementation
//
// [SpotifyService] uses golang.org/x/oauth2 for the authorization code flow and
// github.com/zmb3/spotify/v2 for the Web API. Every [Library] gets its own client with a static
// token source and the configured timeout; request contexts are passed through so a cancelled
// request cancels the provider call.
//
// # Pagination
//
// Playlists are paged with offset/limit until the provider reports no next page.
// Tracks are paged with the running item count as the offset until it reaches the reported total.
// Either loop also stops on an empty page.
//
// # Error Handling
//
// Errors wrap the sentinels from the shared package:
//   - [shared.ErrAuthExchange] : the code was rejected
//   - [shared.ErrRefresh] : the refresh token was rejected
//   - [shared.ErrAPIRequest] : a listing call failed
//   - [shared.ErrNoActiveSession] : the player returned 404 on play
//   - [shared.ErrPlaybackStart] : any other play failure
//   - [shared.ErrEnqueue] : a queue call failed after retries
package services
