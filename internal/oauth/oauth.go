package oauth

import (
	"os"
	"strings"
)

const (
	// AuthorizeURL is the Spotify accounts endpoint that prompts the user for consent.
	AuthorizeURL = "https://accounts.spotify.com/authorize"
	// TokenURL is the Spotify accounts endpoint that issues and refreshes tokens.
	TokenURL = "https://accounts.spotify.com/api/token"
)

// envPrefix prefixes every credential environment variable (e.g. SPOTIFY_CLIENT_ID).
const envPrefix = "SPOTIFY_"

// Credentials is the immutable record of client registration values owned by a single [Flow].
//
// ClientSecret may be empty for PKCE flows, which authenticate with a code
// verifier instead. Scope is stored normalized (see [NormalizeScope]).
type Credentials struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	UserID        string
	Scope         string
	State         string
	CodeVerifier  string
	CodeChallenge string
}

// CredentialsFromEnv builds a [Credentials] from SPOTIFY_-prefixed environment
// variables: SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET, SPOTIFY_CLIENT_USERNAME,
// and SPOTIFY_REDIRECT_URI. Missing variables yield empty fields.
func CredentialsFromEnv() Credentials {
	return Credentials{
		ClientID:     envCredential("CLIENT_ID"),
		ClientSecret: envCredential("CLIENT_SECRET"),
		UserID:       envCredential("CLIENT_USERNAME"),
		RedirectURL:  envCredential("REDIRECT_URI"),
	}
}

func envCredential(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}

// CacheHandler is the two-method contract a token cache backend must satisfy.
//
// Find returns (nil, nil) on a cache miss. Save overwrites any existing
// record under the same key. Storage failures propagate unchanged.
type CacheHandler interface {
	Find(key string) (*Token, error)
	Save(key string, tok *Token) error
}

// CacheKey derives the deterministic cache entry key for a flow.
//
// Two flows with the same grant type, client id, and user id share an entry;
// empty ids are skipped rather than rendered as empty segments.
func CacheKey(grant GrantType, ids ...string) string {
	parts := []string{"ampyr", string(grant)}
	for _, id := range ids {
		if id != "" {
			parts = append(parts, id)
		}
	}
	return strings.Join(parts, "-")
}
