package server

import (
	"fmt"
	"net/http"
	"sync"
)

// CallbackResult carries what the authorization server sent back through the
// user's browser: an authorization code and state on success, or the error it
// reported. Consumed once by the flow that started the listener, then
// discarded.
type CallbackResult struct {
	Code  string
	State string
	Err   error
}

// CallbackHandler captures the OAuth redirect callback for interactive flows.
// Implements the [Handler] interface for registration with a [Router].
//
// The handler is strictly single-shot: the first GET is parsed and delivered
// through the result channel, and any replay is rejected with 400. It does
// not exchange the code itself; the flow owns the token exchange.
type CallbackHandler struct {
	resultChan  chan CallbackResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewCallbackHandler creates a new single-shot callback handler.
func NewCallbackHandler() *CallbackHandler {
	return &CallbackHandler{resultChan: make(chan CallbackResult, 1)}
}

// Routes returns the HTTP routes this handler serves. Both the bare root and
// /callback are accepted so either style of registered redirect URI works.
func (h *CallbackHandler) Routes() []string {
	return []string{"/", "/callback"}
}

// ServeHTTP handles the redirect callback request.
//
// Parses the query string for code, state, and error, sends the result
// through the result channel, and finalizes the connection with a success or
// failure page.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		err := fmt.Errorf("authorization failed: %s", errParam)
		if desc := query.Get("error_description"); desc != "" {
			err = fmt.Errorf("authorization failed: %s - %s", errParam, desc)
		}
		h.Send(CallbackResult{Err: err})
		writePage(w, http.StatusBadRequest, failurePage)
		return
	}

	h.Send(CallbackResult{
		Code:  query.Get("code"),
		State: query.Get("state"),
	})

	writePage(w, http.StatusOK, successPage)
}

// Send delivers the callback result through the channel (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the channel the single callback result arrives on.
//
// The channel receives exactly one result and is then closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

func writePage(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

const successPage = `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`

const failurePage = `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Failed</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #E22134; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✗ Authorization Failed</h1>
        <p>Consent was not granted. You can close this window and try again.</p>
    </div>
</body>
</html>
`
