// Package services provides a thin authenticated client for the Spotify Web
// API on top of the OAuth flows.
//
// # Token Source
//
// [SpotifyClient] pulls a bearer token from a [TokenSource] before every
// request; any [oauth.Flow] satisfies the interface, so cached tokens are
// reused and refreshed transparently.
//
// # Rate Limiting
//
// Requests pass through a token-bucket limiter ([rate.Limiter]) tuned to stay
// under the Web API's rolling request window.
//
// # Scope
//
// Only a small response-model subset is typed here (profile, track,
// playlists). The full typed object hierarchy of the Web API is a separate
// concern and out of scope for this package.
package services
