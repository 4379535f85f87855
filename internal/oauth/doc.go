// Package oauth implements the client side of the three Spotify OAuth2.0
// grant flows: client credentials, authorization code, and PKCE.
//
// # Flows
//
// A [Flow] ties together the token cache, validator, and token endpoint
// transport. Callers construct one flow per credential set and call
// [Flow.AccessToken] whenever they need a bearer token:
//
//   - A cached token that is still valid is returned directly.
//   - An expired token with a refresh token triggers a refresh exchange.
//   - Anything else triggers a full grant-specific authentication,
//     which for the interactive flows blocks on a browser consent via
//     the local redirect listener (internal/server).
//
// Exactly one revalidation retry is performed after a fresh exchange.
// If a freshly issued token still fails validation the flow fails rather
// than looping.
//
// # Token cache
//
// Flows persist tokens through the narrow [CacheHandler] interface.
// Backends live in internal/cache; two flows built with the same grant
// type, client id, and user id share a cache entry (see [CacheKey]),
// so tokens are reused across process runs.
//
// # Errors
//
// Token endpoint failures surface as [*HTTPError]. A redirect callback
// whose state differs from the one sent surfaces as [*StateMismatchError],
// and a callback with neither a code nor an error surfaces as
// [ErrMissingCode]. Beyond the single revalidation pass, nothing is
// retried or swallowed; everything propagates to the caller of
// [Flow.AccessToken].
package oauth
