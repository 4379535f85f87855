package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/ampyr/internal/server"
	"github.com/desertthunder/ampyr/internal/shared"
)

// GrantType discriminates the three supported OAuth2.0 grant flows.
type GrantType string

const (
	GrantClientCredentials GrantType = "client_credentials"
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantPKCE              GrantType = "pkce"
)

// DefaultListenTimeout bounds how long an interactive flow waits for the user
// to complete browser consent before the redirect listener gives up.
const DefaultListenTimeout = 5 * time.Minute

// payloadFunc builds the grant-specific form payload for a full
// (non-refresh) token exchange. Interactive variants may block on the
// redirect listener.
type payloadFunc func(ctx context.Context) (url.Values, error)

// authorizeFunc blocks until the browser consent completes and the redirect
// callback is captured. Swappable in tests.
type authorizeFunc func(ctx context.Context, authorizeURL, addr string) (server.CallbackResult, error)

// Flow drives one OAuth2.0 grant flow end to end: cache lookup, validation,
// refresh or re-authentication, exchange, and persistence. Construct one per
// credential set with [NewClientCredentialsFlow], [NewAuthorizationFlow], or
// [NewPKCEFlow].
//
// A Flow owns its [Credentials] exclusively and is synchronous throughout.
// Two flows sharing a cache key are not safe against each other; the last
// writer wins.
type Flow struct {
	grant         GrantType
	creds         Credentials
	cache         CacheHandler
	client        *http.Client
	authorizeURL  string
	tokenURL      string
	listenTimeout time.Duration
	showDialog    bool
	authCode      string
	key           string
	payload       payloadFunc
	authorize     authorizeFunc
	now           func() time.Time
}

// FlowOpts carries the collaborators and knobs shared by all flow constructors.
type FlowOpts struct {
	Cache         CacheHandler  // required; token persistence backend
	Client        *http.Client  // defaults to http.DefaultClient
	AuthorizeURL  string        // defaults to [AuthorizeURL]
	TokenURL      string        // defaults to [TokenURL]
	ListenTimeout time.Duration // defaults to [DefaultListenTimeout]
	ShowDialog    bool          // force the consent dialog even when previously approved
	AuthCode      string        // pre-supplied authorization code, skips the listener
}

func newFlow(grant GrantType, creds Credentials, opts FlowOpts) (*Flow, error) {
	if opts.Cache == nil {
		return nil, fmt.Errorf("%w: cache handler is required", shared.ErrInvalidArgument)
	}

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	authorizeURL := opts.AuthorizeURL
	if authorizeURL == "" {
		authorizeURL = AuthorizeURL
	}

	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = TokenURL
	}

	timeout := opts.ListenTimeout
	if timeout == 0 {
		timeout = DefaultListenTimeout
	}

	creds.Scope = NormalizeScope(creds.Scope)

	f := &Flow{
		grant:         grant,
		creds:         creds,
		cache:         opts.Cache,
		client:        client,
		authorizeURL:  authorizeURL,
		tokenURL:      tokenURL,
		listenTimeout: timeout,
		showDialog:    opts.ShowDialog,
		authCode:      opts.AuthCode,
		key:           CacheKey(grant, creds.ClientID, creds.UserID),
		now:           time.Now,
	}

	f.authorize = func(ctx context.Context, authorizeURL, addr string) (server.CallbackResult, error) {
		return server.Listen(ctx, addr, authorizeURL, f.listenTimeout, nil)
	}

	return f, nil
}

// NewClientCredentialsFlow builds the server-to-server flow. It requires a
// client id and secret and involves no user interaction.
func NewClientCredentialsFlow(creds Credentials, opts FlowOpts) (*Flow, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client id and secret are required", shared.ErrMissingCredentials)
	}

	f, err := newFlow(GrantClientCredentials, creds, opts)
	if err != nil {
		return nil, err
	}

	f.payload = f.clientCredentialsPayload
	return f, nil
}

// NewAuthorizationFlow builds the interactive authorization code flow. A
// missing state is generated so the redirect callback can always be checked
// against it.
func NewAuthorizationFlow(creds Credentials, opts FlowOpts) (*Flow, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client id and secret are required", shared.ErrMissingCredentials)
	}
	if creds.RedirectURL == "" {
		return nil, fmt.Errorf("%w: redirect url is required for the authorization code flow", shared.ErrMissingCredentials)
	}

	if creds.State == "" {
		creds.State = shared.GenerateID()
	}

	f, err := newFlow(GrantAuthorizationCode, creds, opts)
	if err != nil {
		return nil, err
	}

	f.payload = f.authorizationCodePayload
	return f, nil
}

// NewPKCEFlow builds the interactive PKCE flow. No client secret is used; a
// code verifier is generated when absent and its challenge is always derived
// fresh from the verifier.
func NewPKCEFlow(creds Credentials, opts FlowOpts) (*Flow, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: client id is required", shared.ErrMissingCredentials)
	}
	if creds.RedirectURL == "" {
		return nil, fmt.Errorf("%w: redirect url is required for the PKCE flow", shared.ErrMissingCredentials)
	}

	if creds.CodeVerifier == "" {
		creds.CodeVerifier = NewVerifier()
	}
	creds.CodeChallenge = ChallengeFromVerifier(creds.CodeVerifier)

	if creds.State == "" {
		creds.State = shared.GenerateID()
	}

	f, err := newFlow(GrantPKCE, creds, opts)
	if err != nil {
		return nil, err
	}

	f.payload = f.pkcePayload
	return f, nil
}

// Grant returns the flow's grant type.
func (f *Flow) Grant() GrantType { return f.grant }

// Key returns the derived cache key the flow persists tokens under.
func (f *Flow) Key() string { return f.key }

// Credentials returns a copy of the flow's credential record.
func (f *Flow) Credentials() Credentials { return f.creds }

// AccessToken returns a usable bearer token, driving the full cache →
// validate → refresh-or-authenticate → persist cycle as needed.
func (f *Flow) AccessToken(ctx context.Context) (string, error) {
	tok, err := f.Token(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Token returns the full validated token record for the flow.
func (f *Flow) Token(ctx context.Context) (*Token, error) {
	return f.acquire(ctx, false)
}

// acquire looks up and validates the cached record, exchanging for a new one
// when it is expired or invalid. After persisting a fresh record it
// revalidates at most once; a freshly issued token that still fails
// validation is a fatal error rather than a retry loop.
func (f *Flow) acquire(ctx context.Context, retried bool) (*Token, error) {
	cached, err := f.cache.Find(f.key)
	if err != nil {
		return nil, err
	}

	state := Validate(cached, f.creds.Scope, f.now())
	if state == StateValid {
		return cached, nil
	}

	var payload url.Values
	if state == StateExpired && cached.RefreshToken != "" {
		payload = refreshPayload(cached.RefreshToken)
	} else {
		// An expired record without a refresh token re-authenticates in full.
		if payload, err = f.payload(ctx); err != nil {
			return nil, err
		}
	}

	fresh, err := Exchange(ctx, f.client, f.tokenURL, payload, f.authHeader())
	if err != nil {
		return nil, err
	}

	if fresh.Scope == "" {
		fresh.Scope = f.creds.Scope
	}

	if err := f.cache.Save(f.key, fresh); err != nil {
		return nil, err
	}

	if Validate(fresh, f.creds.Scope, f.now()) == StateValid {
		return fresh, nil
	}
	if retried {
		return nil, fmt.Errorf("%w: freshly issued token failed validation", shared.ErrAuthFailed)
	}

	return f.acquire(ctx, true)
}

// Refresh forces a refresh exchange for the cached record, bypassing the
// Valid short-circuit of [Flow.Token]. The refreshed record replaces the
// cached one. Fails with [shared.ErrNoRefreshToken] when no cached record
// carries a refresh token; client-credentials tokens never do.
func (f *Flow) Refresh(ctx context.Context) (*Token, error) {
	cached, err := f.cache.Find(f.key)
	if err != nil {
		return nil, err
	}

	if cached == nil || cached.RefreshToken == "" {
		return nil, fmt.Errorf("%w: nothing cached under %s to refresh", shared.ErrNoRefreshToken, f.key)
	}

	fresh, err := Exchange(ctx, f.client, f.tokenURL, refreshPayload(cached.RefreshToken), f.authHeader())
	if err != nil {
		return nil, err
	}

	if fresh.Scope == "" {
		fresh.Scope = cached.Scope
	}
	// The accounts service omits the refresh token when it is unchanged.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cached.RefreshToken
	}

	if err := f.cache.Save(f.key, fresh); err != nil {
		return nil, err
	}

	return fresh, nil
}

// A refresh sends only the grant type and the refresh token itself; PKCE
// refreshes carry no client authentication.
func refreshPayload(refreshToken string) url.Values {
	return url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
}

// authHeader returns the Basic authorization header for the token endpoint.
// PKCE flows authenticate with the code verifier instead and send no header.
func (f *Flow) authHeader() string {
	if f.grant == GrantPKCE {
		return ""
	}
	return BasicAuthHeader(f.creds.ClientID, f.creds.ClientSecret)
}

// AuthorizeURL renders the browser consent URL for the interactive flows.
// Empty-valued parameters are omitted entirely, never sent as empty strings.
// Returns "" for the client credentials flow, which has no consent step.
func (f *Flow) AuthorizeURL() string {
	if f.grant == GrantClientCredentials {
		return ""
	}

	q := url.Values{}
	setNonEmpty(q, "client_id", f.creds.ClientID)
	setNonEmpty(q, "redirect_uri", f.creds.RedirectURL)
	setNonEmpty(q, "scope", f.creds.Scope)
	setNonEmpty(q, "state", f.creds.State)

	if f.grant == GrantPKCE {
		setNonEmpty(q, "code_challenge", f.creds.CodeChallenge)
		q.Set("code_challenge_method", challengeMethod)
	} else if f.showDialog {
		q.Set("show_dialog", "true")
	}

	q.Set("response_type", "code")
	return f.authorizeURL + "?" + q.Encode()
}

func (f *Flow) clientCredentialsPayload(context.Context) (url.Values, error) {
	return url.Values{"grant_type": {"client_credentials"}}, nil
}

func (f *Flow) authorizationCodePayload(ctx context.Context) (url.Values, error) {
	code, err := f.obtainCode(ctx)
	if err != nil {
		return nil, err
	}

	v := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {f.creds.RedirectURL},
	}
	setNonEmpty(v, "scope", f.creds.Scope)
	setNonEmpty(v, "state", f.creds.State)
	return v, nil
}

func (f *Flow) pkcePayload(ctx context.Context) (url.Values, error) {
	code, err := f.obtainCode(ctx)
	if err != nil {
		return nil, err
	}

	return url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {f.creds.RedirectURL},
		"client_id":     {f.creds.ClientID},
		"code_verifier": {f.creds.CodeVerifier},
	}, nil
}

// obtainCode returns the authorization code for an interactive exchange,
// blocking on the redirect listener unless a code was pre-supplied. State and
// code checks happen here, before any token exchange.
func (f *Flow) obtainCode(ctx context.Context) (string, error) {
	if f.authCode != "" {
		return f.authCode, nil
	}

	addr, err := server.RedirectAddr(f.creds.RedirectURL)
	if err != nil {
		return "", err
	}

	result, err := f.authorize(ctx, f.AuthorizeURL(), addr)
	if err != nil {
		return "", err
	}
	if result.Err != nil {
		return "", result.Err
	}

	if f.creds.State != "" && result.State != f.creds.State {
		return "", &StateMismatchError{Local: f.creds.State, Remote: result.State}
	}

	if result.Code == "" {
		return "", ErrMissingCode
	}

	return result.Code, nil
}

func setNonEmpty(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
