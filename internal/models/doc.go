// Package models defines the entities of the shuffle-and-replay service.
//
// The package contains two categories of types:
//
// 1. Request-scoped values: built fresh for a single HTTP request and never stored
//   - [Playlist] : Playlist metadata shown on the selection page, including the liked-songs alias
//   - [Track] : A playable item (name and provider URI)
//   - [Device] : A playback device registered with the provider
//   - [SessionCredential] : Access/refresh tokens carried by the browser inside an encrypted token
//
// 2. Persistent entities: database-backed records
//   - [ReplayRun] : One execution of the shuffle-and-replay flow, kept as history
//
// Persistent entities implement the [Model] interface. The [Repository] interface defines standard CRUD operations for database access.
package models
