package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/ampyr/internal/oauth"
)

var _ list.Item = tokenItem{}

// tokenItem wraps a cached token record to implement [list.Item].
type tokenItem struct {
	key   string
	token oauth.Token
}

func (i tokenItem) FilterValue() string { return i.key }
func (i tokenItem) Title() string       { return i.key }

func (i tokenItem) Description() string {
	now := time.Now()
	state := oauth.Validate(&i.token, "", now)

	desc := state.String()
	if state != oauth.StateInvalid {
		remaining := time.Duration(i.token.ExpiresAt-now.Unix()) * time.Second
		if remaining > 0 {
			desc = fmt.Sprintf("%s • expires in %s", desc, remaining.Round(time.Second))
		} else {
			desc = fmt.Sprintf("%s • expired %s ago", desc, (-remaining).Round(time.Second))
		}
	}
	if i.token.Scope != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.token.Scope)
	}
	return desc
}
