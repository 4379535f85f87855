package ui

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ampyr/internal/cache"
)

// Model is the token inspector TUI state: a list of cached token records
// with their validation state and expiry countdown.
type Model struct {
	store     cache.Store
	width     int
	height    int
	tokenList list.Model
	loaded    bool
	status    string
	err       error
	help      help.Model
	keys      keyMap
}

type tokensLoadedMsg struct {
	items []list.Item
	err   error
}

type statusMsg string

// NewModel creates a new TUI model reading from the given cache store.
func NewModel(store cache.Store) *Model {
	return &Model{
		store: store,
		help:  help.New(),
		keys:  newKeyMap(),
	}
}

// Init kicks off the initial cache scan.
func (m *Model) Init() tea.Cmd {
	return m.loadTokens()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.loaded {
			m.tokenList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case tokensLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.tokenList = list.New(msg.items, list.NewDefaultDelegate(), 0, 0)
		m.tokenList.Title = "Cached Tokens"
		m.tokenList.SetSize(m.width-4, m.height-8)
		m.loaded = true
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil
	}

	return m.updateList(msg)
}

// View renders the token list with a status line and contextual help.
func (m *Model) View() string {
	if m.err != nil {
		return styles.error.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}
	if !m.loaded {
		return styles.help.Render("Scanning token cache...")
	}

	view := m.tokenList.View()
	if m.status != "" {
		view = fmt.Sprintf("%s\n%s", view, styles.success.Render(m.status))
	}
	return fmt.Sprintf("%s\n\n%s", view, m.help.ShortHelpView(m.keys.ShortHelp()))
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.status = ""
		return m, m.loadTokens()
	case "enter":
		if item, ok := m.selected(); ok {
			return m, m.copyToken(item)
		}
	case "d":
		if item, ok := m.selected(); ok {
			return m, tea.Sequence(m.clearToken(item), m.loadTokens())
		}
	}

	return m.updateList(msg)
}

func (m *Model) selected() (tokenItem, bool) {
	if !m.loaded {
		return tokenItem{}, false
	}
	item, ok := m.tokenList.SelectedItem().(tokenItem)
	return item, ok
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !m.loaded {
		return m, nil
	}
	var cmd tea.Cmd
	m.tokenList, cmd = m.tokenList.Update(msg)
	return m, cmd
}

func (m *Model) loadTokens() tea.Cmd {
	return func() tea.Msg {
		keys, err := m.store.Keys()
		if err != nil {
			return tokensLoadedMsg{err: err}
		}

		items := make([]list.Item, 0, len(keys))
		for _, key := range keys {
			tok, err := m.store.Find(key)
			if err != nil {
				return tokensLoadedMsg{err: err}
			}
			if tok == nil {
				continue
			}
			items = append(items, tokenItem{key: key, token: *tok})
		}

		return tokensLoadedMsg{items: items}
	}
}

func (m *Model) copyToken(item tokenItem) tea.Cmd {
	return func() tea.Msg {
		if err := clipboard.WriteAll(item.token.AccessToken); err != nil {
			return statusMsg(fmt.Sprintf("copy failed: %v", err))
		}
		return statusMsg(fmt.Sprintf("access token for %s copied", item.key))
	}
}

func (m *Model) clearToken(item tokenItem) tea.Cmd {
	return func() tea.Msg {
		if err := m.store.Clear(item.key); err != nil {
			return statusMsg(fmt.Sprintf("delete failed: %v", err))
		}
		return statusMsg(fmt.Sprintf("%s deleted", item.key))
	}
}
