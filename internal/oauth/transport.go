package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// BasicAuthHeader builds the Authorization header value for token requests:
// "Basic " + base64(client_id:client_secret).
func BasicAuthHeader(clientID, clientSecret string) string {
	raw := []byte(clientID + ":" + clientSecret)
	return "Basic " + base64.StdEncoding.EncodeToString(raw)
}

// Exchange performs a single token request against the authorization server.
//
// The payload is sent as a form-encoded POST with the given Authorization
// header (omitted entirely when authHeader is empty, as in PKCE flows). On a
// non-2xx response the body is parsed for the standard error/error_description
// pair and an [*HTTPError] is returned. On success the decoded token has its
// absolute expiry stamped before being returned.
//
// Exchange never retries and never persists; the caller owns cache writes.
func Exchange(ctx context.Context, client *http.Client, tokenURL string, payload url.Values, authHeader string) (*Token, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(payload.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPError(resp.StatusCode, body)
	}

	var tok Token
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	tok.SetExpiry(time.Now())
	return &tok, nil
}

// newHTTPError extracts error details from a failure response body, falling
// back to the raw text when the body is not JSON.
func newHTTPError(status int, body []byte) *HTTPError {
	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}

	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return &HTTPError{Status: status, Message: payload.Error, Reason: payload.ErrorDescription}
	}

	return &HTTPError{Status: status, Message: strings.TrimSpace(string(body))}
}
