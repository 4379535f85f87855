package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/ampyr/internal/shared"
)

// DefaultPort is used when the configured redirect URL carries no port.
const DefaultPort = 8080

// localHosts are the loopback aliases the listener will bind to. Anything
// else is rejected; the listener never exposes itself beyond the machine
// running the flow.
var localHosts = map[string]bool{
	"127.0.0.1": true,
	"localhost": true,
	"::1":       true,
}

// RedirectAddr derives the listen address from a registered redirect URL.
// The URL must be plain http on a loopback host; a missing port defaults to
// [DefaultPort].
func RedirectAddr(redirectURL string) (string, error) {
	parsed, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("invalid redirect url %q: %w", redirectURL, err)
	}

	if parsed.Scheme != "http" || !localHosts[parsed.Hostname()] {
		return "", fmt.Errorf("%w: redirect url %q is not a loopback http address", shared.ErrInvalidArgument, redirectURL)
	}

	port := parsed.Port()
	if port == "" {
		port = fmt.Sprintf("%d", DefaultPort)
	}

	return net.JoinHostPort(parsed.Hostname(), port), nil
}

// Listen blocks for exactly one redirect callback on addr.
//
// It opens the system browser pointed at authorizeURL (openBrowser defaults
// to [shared.OpenBrowser]), serves a single accept-and-handle cycle, and
// shuts the server down before returning. A user who never completes consent
// is bounded by timeout; zero or negative means wait until ctx is done.
func Listen(ctx context.Context, addr, authorizeURL string, timeout time.Duration, openBrowser func(string) error) (CallbackResult, error) {
	if openBrowser == nil {
		openBrowser = shared.OpenBrowser
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return CallbackResult{}, fmt.Errorf("failed to bind callback listener on %s: %w", addr, err)
	}

	handler := NewCallbackHandler()
	router := NewBasicRouter()
	router.Use(GETOnly)
	router.Handler(handler)

	srv := &http.Server{Handler: router}
	go srv.Serve(ln)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := openBrowser(authorizeURL); err != nil {
		return CallbackResult{}, fmt.Errorf("failed to open browser for consent: %w", err)
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case result := <-handler.Result():
		return result, nil
	case <-expired:
		return CallbackResult{}, fmt.Errorf("%w: no callback received within %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return CallbackResult{}, ctx.Err()
	}
}
