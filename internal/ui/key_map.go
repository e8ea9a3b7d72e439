package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	failures key.Binding
	cancel   key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		failures: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "failures only")),
		cancel:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "cancel")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "enter"), key.WithHelp("q", "quit")),
	}
}
