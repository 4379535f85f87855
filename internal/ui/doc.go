// Package ui implements an interactive token inspector using bubbletea's Elm architecture.
//
// The TUI lists every record in the token cache with its validation state,
// time until expiry, and granted scope. From the list a record's access token
// can be copied to the clipboard or the cache entry deleted.
//
// The [Model] implements bubbletea's standard Init/Update/View pattern.
// Keyboard navigation uses vim-style bindings (j/k, enter, d, r, q) with
// contextual help displayed via charmbracelet/bubbles/help.
package ui
