package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the remote.
type keyMap struct {
	next       key.Binding
	previous   key.Binding
	volumeUp   key.Binding
	volumeDown key.Binding
	repeat     key.Binding
	shuffle    key.Binding
	refresh    key.Binding
	help       key.Binding
	quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		next:       key.NewBinding(key.WithKeys("n", "right", "l"), key.WithHelp("n/→", "next")),
		previous:   key.NewBinding(key.WithKeys("p", "left", "h"), key.WithHelp("p/←", "previous")),
		volumeUp:   key.NewBinding(key.WithKeys("+", "=", "up", "k"), key.WithHelp("+/↑", "volume up")),
		volumeDown: key.NewBinding(key.WithKeys("-", "_", "down", "j"), key.WithHelp("-/↓", "volume down")),
		repeat:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "repeat")),
		shuffle:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "shuffle")),
		refresh:    key.NewBinding(key.WithKeys("u", "ctrl+r"), key.WithHelp("u", "refresh")),
		help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit:       key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.next, k.previous, k.repeat, k.shuffle, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.next, k.previous},
		{k.volumeUp, k.volumeDown},
		{k.repeat, k.shuffle},
		{k.refresh, k.help, k.quit},
	}
}
