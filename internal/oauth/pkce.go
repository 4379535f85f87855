package oauth

import "golang.org/x/oauth2"

// challengeMethod is the only code challenge method the accounts service accepts.
const challengeMethod = "S256"

// NewVerifier generates a cryptographically random PKCE code verifier.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// ChallengeFromVerifier derives the url-safe, unpadded base64 SHA-256
// challenge sent on the authorize URL for PKCE flows.
func ChallengeFromVerifier(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}
