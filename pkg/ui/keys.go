package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Start key.Binding
	Pause key.Binding
	Stop  key.Binding
	Clear key.Binding
	Help  key.Binding
	Quit  key.Binding
}

// DefaultKeyMap provides sensible default keybindings.
var DefaultKeyMap = KeyMap{
	Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
	Down:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
	Start: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "start")),
	Pause: key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "pause/resume")),
	Stop:  key.NewBinding(key.WithKeys("s", "x"), key.WithHelp("s", "stop")),
	Clear: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear finished")),
	Help:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Stop, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Start},
		{k.Pause, k.Stop, k.Clear},
		{k.Help, k.Quit},
	}
}
