package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/ampyr/internal/server"
	"github.com/desertthunder/ampyr/internal/shared"
	th "github.com/desertthunder/ampyr/internal/testing"
)

// fakeCache is an in-memory CacheHandler that counts saves.
type fakeCache struct {
	tokens  map[string]*Token
	saves   int
	findErr error
	saveErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{tokens: map[string]*Token{}}
}

func (c *fakeCache) Find(key string) (*Token, error) {
	if c.findErr != nil {
		return nil, c.findErr
	}
	return c.tokens[key], nil
}

func (c *fakeCache) Save(key string, tok *Token) error {
	if c.saveErr != nil {
		return c.saveErr
	}
	c.tokens[key] = tok
	c.saves++
	return nil
}

func requestBody(t *testing.T, req *http.Request) url.Values {
	t.Helper()
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("failed to read request body: %v", err)
	}
	v, err := url.ParseQuery(string(raw))
	if err != nil {
		t.Fatalf("failed to parse request body: %v", err)
	}
	return v
}

func tokenResponse(scope string, expiresIn int) *http.Response {
	body := fmt.Sprintf(`{"access_token": "fresh", "token_type": "Bearer", "scope": %q, "expires_in": %d}`,
		scope, expiresIn)
	return th.NewJSONResponse(http.StatusOK, body)
}

func TestNewFlowValidation(t *testing.T) {
	cache := newFakeCache()

	t.Run("client credentials requires id and secret", func(t *testing.T) {
		_, err := NewClientCredentialsFlow(Credentials{ClientID: "id"}, FlowOpts{Cache: cache})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("NewClientCredentialsFlow() error = %v, want ErrMissingCredentials", err)
		}
	})

	t.Run("authorization flow requires redirect url", func(t *testing.T) {
		_, err := NewAuthorizationFlow(Credentials{ClientID: "id", ClientSecret: "s"}, FlowOpts{Cache: cache})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("NewAuthorizationFlow() error = %v, want ErrMissingCredentials", err)
		}
	})

	t.Run("nil cache is rejected", func(t *testing.T) {
		_, err := NewClientCredentialsFlow(Credentials{ClientID: "id", ClientSecret: "s"}, FlowOpts{})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("NewClientCredentialsFlow() error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("state is generated when absent", func(t *testing.T) {
		f, err := NewAuthorizationFlow(Credentials{
			ClientID: "id", ClientSecret: "s", RedirectURL: "http://localhost:8080/callback",
		}, FlowOpts{Cache: cache})
		if err != nil {
			t.Fatalf("NewAuthorizationFlow() error = %v", err)
		}
		if f.Credentials().State == "" {
			t.Error("expected a generated state")
		}
	})

	t.Run("pkce derives challenge from verifier", func(t *testing.T) {
		f, err := NewPKCEFlow(Credentials{
			ClientID: "id", RedirectURL: "http://localhost:8080/callback",
		}, FlowOpts{Cache: cache})
		if err != nil {
			t.Fatalf("NewPKCEFlow() error = %v", err)
		}

		creds := f.Credentials()
		if creds.CodeVerifier == "" || creds.CodeChallenge == "" {
			t.Error("expected generated verifier and challenge")
		}
		if creds.CodeChallenge != ChallengeFromVerifier(creds.CodeVerifier) {
			t.Error("challenge does not match verifier")
		}
	})
}

func TestClientCredentialsFlow(t *testing.T) {
	creds := Credentials{ClientID: "id", ClientSecret: "secret", Scope: "user-read-email"}

	t.Run("empty cache exchanges once then reuses", func(t *testing.T) {
		cache := newFakeCache()
		rt := th.NewSeqRoundTripper(tokenResponse("user-read-email", 3600))
		f, err := NewClientCredentialsFlow(creds, FlowOpts{Cache: cache, Client: &http.Client{Transport: rt}})
		if err != nil {
			t.Fatalf("NewClientCredentialsFlow() error = %v", err)
		}

		tok, err := f.AccessToken(context.Background())
		if err != nil {
			t.Fatalf("AccessToken() error = %v", err)
		}
		if tok != "fresh" {
			t.Errorf("AccessToken() = %q, want %q", tok, "fresh")
		}

		if v := requestBody(t, rt.Requests[0]); v.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", v.Get("grant_type"))
		}
		if got := rt.Requests[0].Header.Get("Authorization"); got != BasicAuthHeader("id", "secret") {
			t.Errorf("Authorization = %q", got)
		}

		if _, err := f.AccessToken(context.Background()); err != nil {
			t.Fatalf("second AccessToken() error = %v", err)
		}
		if len(rt.Requests) != 1 {
			t.Errorf("requests = %d, want 1 (second call should hit the cache)", len(rt.Requests))
		}
	})

	t.Run("no scope requested and none issued", func(t *testing.T) {
		cache := newFakeCache()
		rt := th.NewSeqRoundTripper(th.NewJSONResponse(http.StatusOK,
			`{"access_token": "fresh", "token_type": "Bearer", "expires_in": 3600}`))
		unscoped := Credentials{ClientID: "id", ClientSecret: "secret"}
		f, err := NewClientCredentialsFlow(unscoped, FlowOpts{Cache: cache, Client: &http.Client{Transport: rt}})
		if err != nil {
			t.Fatalf("NewClientCredentialsFlow() error = %v", err)
		}

		tok, err := f.AccessToken(context.Background())
		if err != nil {
			t.Fatalf("AccessToken() error = %v", err)
		}
		if tok != "fresh" {
			t.Errorf("AccessToken() = %q, want %q", tok, "fresh")
		}
		if len(rt.Requests) != 1 {
			t.Errorf("requests = %d, want 1", len(rt.Requests))
		}
	})

	t.Run("expired record with refresh token refreshes", func(t *testing.T) {
		cache := newFakeCache()
		cache.tokens[CacheKey(GrantClientCredentials, "id")] = &Token{
			AccessToken:  "stale",
			RefreshToken: "refresh-me",
			Scope:        "user-read-email",
			ExpiresAt:    time.Now().Unix() + 10,
		}

		rt := th.NewSeqRoundTripper(tokenResponse("user-read-email", 3600))
		f, err := NewClientCredentialsFlow(creds, FlowOpts{Cache: cache, Client: &http.Client{Transport: rt}})
		if err != nil {
			t.Fatalf("NewClientCredentialsFlow() error = %v", err)
		}

		if _, err := f.Token(context.Background()); err != nil {
			t.Fatalf("Token() error = %v", err)
		}

		v := requestBody(t, rt.Requests[0])
		if v.Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", v.Get("grant_type"))
		}
		if v.Get("refresh_token") != "refresh-me" {
			t.Errorf("refresh_token = %q", v.Get("refresh_token"))
		}
	})

	t.Run("insufficient scope forces full reauthentication", func(t *testing.T) {
		cache := newFakeCache()
		cache.tokens[CacheKey(GrantClientCredentials, "id")] = &Token{
			AccessToken:  "narrow",
			RefreshToken: "refresh-me",
			Scope:        "user-read-email",
			ExpiresAt:    time.Now().Unix() + 3600,
		}

		wide := Credentials{ClientID: "id", ClientSecret: "secret", Scope: "user-read-email playlist-read-private"}
		rt := th.NewSeqRoundTripper(tokenResponse("user-read-email playlist-read-private", 3600))
		f, err := NewClientCredentialsFlow(wide, FlowOpts{Cache: cache, Client: &http.Client{Transport: rt}})
		if err != nil {
			t.Fatalf("NewClientCredentialsFlow() error = %v", err)
		}

		if _, err := f.Token(context.Background()); err != nil {
			t.Fatalf("Token() error = %v", err)
		}

		if v := requestBody(t, rt.Requests[0]); v.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q, scope mismatch should trigger a full exchange, not a refresh", v.Get("grant_type"))
		}
	})

	t.Run("exchange failure leaves the cache untouched", func(t *testing.T) {
		cache := newFakeCache()
		rt := th.NewSeqRoundTripper(th.NewJSONResponse(http.StatusBadRequest,
			`{"error": "invalid_client", "error_description": "Invalid client"}`))
		f, err := NewClientCredentialsFlow(creds, FlowOpts{Cache: cache, Client: &http.Client{Transport: rt}})
		if err != nil {
			t.Fatalf("NewClientCredentialsFlow() error = %v", err)
		}

		_, err = f.Token(context.Background())
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("Token() error = %v, want *HTTPError", err)
		}
		if cache.saves != 0 {
			t.Errorf("saves = %d, want 0", cache.saves)
		}
	})

	t.Run("revalidation failure is bounded to one retry", func(t *testing.T) {
		cache := newFakeCache()
		// Both responses are already inside the expiry threshold, so the fresh
		// record never validates.
		rt := th.NewSeqRoundTripper(tokenResponse("user-read-email", 30), tokenResponse("user-read-email", 30))
		f, err := NewClientCredentialsFlow(creds, FlowOpts{Cache: cache, Client: &http.Client{Transport: rt}})
		if err != nil {
			t.Fatalf("NewClientCredentialsFlow() error = %v", err)
		}

		_, err = f.Token(context.Background())
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("Token() error = %v, want ErrAuthFailed", err)
		}
		if len(rt.Requests) != 2 {
			t.Errorf("requests = %d, want exactly 2", len(rt.Requests))
		}
	})

	t.Run("cache write failure propagates", func(t *testing.T) {
		cache := newFakeCache()
		cache.saveErr = errors.New("disk full")
		rt := th.NewSeqRoundTripper(tokenResponse("user-read-email", 3600))
		f, err := NewClientCredentialsFlow(creds, FlowOpts{Cache: cache, Client: &http.Client{Transport: rt}})
		if err != nil {
			t.Fatalf("NewClientCredentialsFlow() error = %v", err)
		}

		if _, err := f.Token(context.Background()); err == nil {
			t.Error("Token() expected error")
		}
	})

	t.Run("cache read failure propagates", func(t *testing.T) {
		cache := newFakeCache()
		cache.findErr = errors.New("backend down")
		f, err := NewClientCredentialsFlow(creds, FlowOpts{Cache: cache})
		if err != nil {
			t.Fatalf("NewClientCredentialsFlow() error = %v", err)
		}

		if _, err := f.Token(context.Background()); err == nil {
			t.Error("Token() expected error")
		}
	})
}

func TestFlowRefresh(t *testing.T) {
	creds := Credentials{ClientID: "id", ClientSecret: "secret", Scope: "user-read-email"}
	key := CacheKey(GrantClientCredentials, "id")

	t.Run("forces the exchange past a valid record", func(t *testing.T) {
		cache := newFakeCache()
		cache.tokens[key] = &Token{
			AccessToken:  "still-valid",
			RefreshToken: "refresh-me",
			Scope:        "user-read-email",
			ExpiresAt:    time.Now().Unix() + 3600,
		}

		rt := th.NewSeqRoundTripper(th.NewJSONResponse(http.StatusOK,
			`{"access_token": "fresh", "token_type": "Bearer", "expires_in": 3600}`))
		f, err := NewClientCredentialsFlow(creds, FlowOpts{Cache: cache, Client: &http.Client{Transport: rt}})
		if err != nil {
			t.Fatalf("NewClientCredentialsFlow() error = %v", err)
		}

		tok, err := f.Refresh(context.Background())
		if err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}

		if tok.AccessToken != "fresh" {
			t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "fresh")
		}

		v := requestBody(t, rt.Requests[0])
		if v.Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", v.Get("grant_type"))
		}
		if v.Get("refresh_token") != "refresh-me" {
			t.Errorf("refresh_token = %q", v.Get("refresh_token"))
		}

		// Scope and refresh token carry over when the response omits them.
		if tok.Scope != "user-read-email" {
			t.Errorf("Scope = %q", tok.Scope)
		}
		if tok.RefreshToken != "refresh-me" {
			t.Errorf("RefreshToken = %q", tok.RefreshToken)
		}

		saved := cache.tokens[key]
		if saved == nil || saved.AccessToken != "fresh" {
			t.Errorf("cached record = %+v, want the refreshed one", saved)
		}
	})

	t.Run("nothing cached", func(t *testing.T) {
		f, err := NewClientCredentialsFlow(creds, FlowOpts{Cache: newFakeCache()})
		if err != nil {
			t.Fatalf("NewClientCredentialsFlow() error = %v", err)
		}

		if _, err := f.Refresh(context.Background()); !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("Refresh() error = %v, want ErrNoRefreshToken", err)
		}
	})

	t.Run("cached record has no refresh token", func(t *testing.T) {
		cache := newFakeCache()
		cache.tokens[key] = &Token{
			AccessToken: "no-refresh",
			Scope:       "user-read-email",
			ExpiresAt:   time.Now().Unix() + 3600,
		}

		f, err := NewClientCredentialsFlow(creds, FlowOpts{Cache: cache})
		if err != nil {
			t.Fatalf("NewClientCredentialsFlow() error = %v", err)
		}

		if _, err := f.Refresh(context.Background()); !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("Refresh() error = %v, want ErrNoRefreshToken", err)
		}
	})
}

func TestAuthorizationFlow(t *testing.T) {
	creds := Credentials{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/callback",
		Scope:        "user-read-email",
		State:        "expected-state",
	}

	t.Run("callback code is exchanged", func(t *testing.T) {
		cache := newFakeCache()
		rt := th.NewSeqRoundTripper(tokenResponse("user-read-email", 3600))
		f, err := NewAuthorizationFlow(creds, FlowOpts{Cache: cache, Client: &http.Client{Transport: rt}})
		if err != nil {
			t.Fatalf("NewAuthorizationFlow() error = %v", err)
		}

		f.authorize = func(ctx context.Context, authorizeURL, addr string) (server.CallbackResult, error) {
			return server.CallbackResult{Code: "auth-code", State: "expected-state"}, nil
		}

		if _, err := f.Token(context.Background()); err != nil {
			t.Fatalf("Token() error = %v", err)
		}

		v := requestBody(t, rt.Requests[0])
		if v.Get("grant_type") != "authorization_code" {
			t.Errorf("grant_type = %q", v.Get("grant_type"))
		}
		if v.Get("code") != "auth-code" {
			t.Errorf("code = %q", v.Get("code"))
		}
		if v.Get("redirect_uri") != creds.RedirectURL {
			t.Errorf("redirect_uri = %q", v.Get("redirect_uri"))
		}
	})

	t.Run("state mismatch fails before the exchange", func(t *testing.T) {
		cache := newFakeCache()
		rt := th.NewSeqRoundTripper()
		f, err := NewAuthorizationFlow(creds, FlowOpts{Cache: cache, Client: &http.Client{Transport: rt}})
		if err != nil {
			t.Fatalf("NewAuthorizationFlow() error = %v", err)
		}

		f.authorize = func(ctx context.Context, authorizeURL, addr string) (server.CallbackResult, error) {
			return server.CallbackResult{Code: "auth-code", State: "tampered"}, nil
		}

		_, err = f.Token(context.Background())
		var mismatch *StateMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("Token() error = %v, want *StateMismatchError", err)
		}
		if len(rt.Requests) != 0 {
			t.Errorf("requests = %d, want 0 (no exchange on mismatch)", len(rt.Requests))
		}
	})

	t.Run("callback error propagates", func(t *testing.T) {
		cache := newFakeCache()
		f, err := NewAuthorizationFlow(creds, FlowOpts{Cache: cache})
		if err != nil {
			t.Fatalf("NewAuthorizationFlow() error = %v", err)
		}

		f.authorize = func(ctx context.Context, authorizeURL, addr string) (server.CallbackResult, error) {
			return server.CallbackResult{Err: errors.New("access_denied")}, nil
		}

		if _, err := f.Token(context.Background()); err == nil {
			t.Error("Token() expected error")
		}
	})

	t.Run("missing code is rejected", func(t *testing.T) {
		cache := newFakeCache()
		f, err := NewAuthorizationFlow(creds, FlowOpts{Cache: cache})
		if err != nil {
			t.Fatalf("NewAuthorizationFlow() error = %v", err)
		}

		f.authorize = func(ctx context.Context, authorizeURL, addr string) (server.CallbackResult, error) {
			return server.CallbackResult{State: "expected-state"}, nil
		}

		if _, err := f.Token(context.Background()); !errors.Is(err, ErrMissingCode) {
			t.Errorf("Token() error = %v, want ErrMissingCode", err)
		}
	})

	t.Run("pre-supplied code skips the listener", func(t *testing.T) {
		cache := newFakeCache()
		rt := th.NewSeqRoundTripper(tokenResponse("user-read-email", 3600))
		f, err := NewAuthorizationFlow(creds, FlowOpts{
			Cache: cache, Client: &http.Client{Transport: rt}, AuthCode: "direct-code",
		})
		if err != nil {
			t.Fatalf("NewAuthorizationFlow() error = %v", err)
		}

		f.authorize = func(ctx context.Context, authorizeURL, addr string) (server.CallbackResult, error) {
			t.Fatal("listener should not run with a pre-supplied code")
			return server.CallbackResult{}, nil
		}

		if _, err := f.Token(context.Background()); err != nil {
			t.Fatalf("Token() error = %v", err)
		}
		if v := requestBody(t, rt.Requests[0]); v.Get("code") != "direct-code" {
			t.Errorf("code = %q", v.Get("code"))
		}
	})
}

func TestPKCEFlow(t *testing.T) {
	creds := Credentials{
		ClientID:    "id",
		RedirectURL: "http://localhost:8080/callback",
		Scope:       "user-read-email",
		State:       "expected-state",
	}

	cache := newFakeCache()
	rt := th.NewSeqRoundTripper(tokenResponse("user-read-email", 3600))
	f, err := NewPKCEFlow(creds, FlowOpts{Cache: cache, Client: &http.Client{Transport: rt}})
	if err != nil {
		t.Fatalf("NewPKCEFlow() error = %v", err)
	}

	f.authorize = func(ctx context.Context, authorizeURL, addr string) (server.CallbackResult, error) {
		return server.CallbackResult{Code: "auth-code", State: "expected-state"}, nil
	}

	if _, err := f.Token(context.Background()); err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	req := rt.Requests[0]
	if _, ok := req.Header["Authorization"]; ok {
		t.Error("PKCE exchange should not send an Authorization header")
	}

	v := requestBody(t, req)
	if v.Get("grant_type") != "authorization_code" {
		t.Errorf("grant_type = %q", v.Get("grant_type"))
	}
	if v.Get("client_id") != "id" {
		t.Errorf("client_id = %q", v.Get("client_id"))
	}
	if v.Get("code_verifier") != f.Credentials().CodeVerifier {
		t.Errorf("code_verifier = %q", v.Get("code_verifier"))
	}
}

func TestFlowAuthorizeURL(t *testing.T) {
	cache := newFakeCache()

	t.Run("client credentials has no consent step", func(t *testing.T) {
		f, err := NewClientCredentialsFlow(Credentials{ClientID: "id", ClientSecret: "s"}, FlowOpts{Cache: cache})
		if err != nil {
			t.Fatalf("NewClientCredentialsFlow() error = %v", err)
		}
		if got := f.AuthorizeURL(); got != "" {
			t.Errorf("AuthorizeURL() = %q, want empty", got)
		}
	})

	t.Run("authorization code parameters", func(t *testing.T) {
		f, err := NewAuthorizationFlow(Credentials{
			ClientID: "id", ClientSecret: "s", RedirectURL: "http://localhost:8080/callback",
			Scope: "user-read-email", State: "st",
		}, FlowOpts{Cache: cache, ShowDialog: true})
		if err != nil {
			t.Fatalf("NewAuthorizationFlow() error = %v", err)
		}

		u, err := url.Parse(f.AuthorizeURL())
		if err != nil {
			t.Fatalf("failed to parse authorize url: %v", err)
		}
		if !strings.HasPrefix(u.String(), AuthorizeURL) {
			t.Errorf("authorize url = %q", u.String())
		}

		q := u.Query()
		for key, want := range map[string]string{
			"client_id":     "id",
			"redirect_uri":  "http://localhost:8080/callback",
			"scope":         "user-read-email",
			"state":         "st",
			"show_dialog":   "true",
			"response_type": "code",
		} {
			if got := q.Get(key); got != want {
				t.Errorf("%s = %q, want %q", key, got, want)
			}
		}
		if q.Has("code_challenge") {
			t.Error("code_challenge should be absent")
		}
	})

	t.Run("empty parameters are omitted", func(t *testing.T) {
		f, err := NewAuthorizationFlow(Credentials{
			ClientID: "id", ClientSecret: "s", RedirectURL: "http://localhost:8080/callback", State: "st",
		}, FlowOpts{Cache: cache})
		if err != nil {
			t.Fatalf("NewAuthorizationFlow() error = %v", err)
		}

		q, err := url.Parse(f.AuthorizeURL())
		if err != nil {
			t.Fatalf("failed to parse authorize url: %v", err)
		}
		if q.Query().Has("scope") {
			t.Error("empty scope should be omitted, not sent blank")
		}
		if q.Query().Has("show_dialog") {
			t.Error("show_dialog should be absent when not requested")
		}
	})

	t.Run("pkce parameters", func(t *testing.T) {
		f, err := NewPKCEFlow(Credentials{
			ClientID: "id", RedirectURL: "http://localhost:8080/callback", State: "st",
		}, FlowOpts{Cache: cache})
		if err != nil {
			t.Fatalf("NewPKCEFlow() error = %v", err)
		}

		u, err := url.Parse(f.AuthorizeURL())
		if err != nil {
			t.Fatalf("failed to parse authorize url: %v", err)
		}

		q := u.Query()
		if q.Get("code_challenge") != f.Credentials().CodeChallenge {
			t.Errorf("code_challenge = %q", q.Get("code_challenge"))
		}
		if q.Get("code_challenge_method") != "S256" {
			t.Errorf("code_challenge_method = %q", q.Get("code_challenge_method"))
		}
		if q.Has("show_dialog") {
			t.Error("show_dialog is not part of the PKCE consent url")
		}
	})
}

func TestCacheKey(t *testing.T) {
	tc := []struct {
		name string
		got  string
		want string
	}{
		{"grant and client", CacheKey(GrantClientCredentials, "abc"), "ampyr-client_credentials-abc"},
		{"with user id", CacheKey(GrantAuthorizationCode, "abc", "user1"), "ampyr-authorization_code-abc-user1"},
		{"empty ids skipped", CacheKey(GrantPKCE, "abc", ""), "ampyr-pkce-abc"},
	}

	for _, c := range tc {
		t.Run(c.name, func(t *testing.T) {
			if c.got != c.want {
				t.Errorf("CacheKey() = %q, want %q", c.got, c.want)
			}
		})
	}
}
