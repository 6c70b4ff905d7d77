// Package server is the web front of the shuffler: OAuth login, the playlist selection page and
// the replay endpoint.
//
// # Routes
//
//	GET /login            302 to the provider's authorize URL with a fresh state
//	GET /callback         code exchange, renders the selection page
//	GET /playlist/{uri}   decodes ?token=, shuffles and replays, 302 to /success
//	GET /success          confirmation page
//	GET /healthz          "ok"
//	GET /                 static files from server.static_dir
//
// The session token embedded in each selection link is the only state a browser carries; see
// package session.
//
// # Router Infrastructure
//
// [BasicRouter] wraps [http.ServeMux] and applies [Middleware] in the order it was added, so the
// first middleware is the outermost. [Server] installs request logging, panic recovery, Sentry
// reporting and a body size limit, in that order.
//
// Handlers implement [Handler], which adds the route patterns to [http.Handler] so a handler owns
// its route definitions.
package server
