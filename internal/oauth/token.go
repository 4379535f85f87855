package oauth

import "time"

// ExpirationThreshold is the margin before real expiry at which a token is
// treated as expired, absorbing clock skew and request latency.
const ExpirationThreshold = 60 * time.Second

// defaultLifetime is assumed when the token endpoint omits expires_in.
const defaultLifetime = 3600

// Token is a single issued access token and its metadata, as cached between
// process runs. It is never patched in place; every successful exchange
// produces a new record that overwrites the previous one under the same key.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// SetExpiry stamps the absolute expiry time onto the token, computed from
// expires_in as received. Called once at receipt time; ExpiresAt is always
// present on a persisted token.
func (t *Token) SetExpiry(now time.Time) {
	lifetime := t.ExpiresIn
	if lifetime == 0 {
		lifetime = defaultLifetime
	}
	t.ExpiresAt = now.Unix() + lifetime
}

// Expired reports whether the token is within [ExpirationThreshold] of its
// absolute expiry.
func (t *Token) Expired(now time.Time) bool {
	return time.Duration(t.ExpiresAt-now.Unix())*time.Second < ExpirationThreshold
}

// TokenState classifies a cached token record against a required scope.
type TokenState int

const (
	// StateInvalid means the record is missing or covers the wrong scope; a
	// full re-authentication is required.
	StateInvalid TokenState = iota
	// StateExpired means the record matches the required scope but is within
	// the expiry threshold; a refresh is sufficient.
	StateExpired
	// StateValid means the record can be used as-is.
	StateValid
)

func (s TokenState) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Validate classifies tok against the required scope at the given instant.
//
// It is a total function: any (tok, scope) pair maps to exactly one state and
// nothing panics. A nil record is invalid, and so is a record whose scope
// does not cover a non-empty required scope. An empty required scope falls
// back to the record's own scope, so an unscoped record validates when
// nothing was requested; client-credentials tokens are issued without a
// scope.
func Validate(tok *Token, scope string, now time.Time) TokenState {
	if tok == nil {
		return StateInvalid
	}
	if scope == "" {
		scope = tok.Scope
	}
	if !scopeCovers(tok.Scope, scope) {
		return StateInvalid
	}
	if tok.Expired(now) {
		return StateExpired
	}
	return StateValid
}
