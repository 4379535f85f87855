// Package server provides the loopback HTTP listener that captures the OAuth
// redirect callback for interactive flows.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally; [GETOnly] restricts the callback surface to GET.
//
// # Callback Capture
//
// [CallbackHandler] parses the code, state, and error query parameters from
// the browser redirect and delivers them through a channel as a
// [CallbackResult]. It processes exactly one callback; replays are rejected.
// The handler does not validate state or exchange the code; both belong to
// the flow that started the listener.
//
// # Single-Shot Listener
//
// [Listen] binds a loopback address derived from the registered redirect URL
// (see [RedirectAddr]), opens the system browser at the authorize URL, blocks
// for one callback or until the configured timeout, and then shuts the server
// down. It is not a long-running server: one accept-and-handle cycle per
// invocation.
package server
