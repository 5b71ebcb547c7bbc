package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the console.
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Toggle      key.Binding
	Approve     key.Binding
	Export      key.Binding
	Simulate    key.Binding
	TrafficUp   key.Binding
	TrafficDown key.Binding
	CapacityUp  key.Binding
	CapacityDn  key.Binding
	Reconnect   key.Binding
	Debug       key.Binding
	Filter      key.Binding
	Help        key.Binding
	Escape      key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev incident"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next incident"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "drawer"),
		),
		Approve: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "approve plan"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export"),
		),
		Simulate: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "simulate"),
		),
		TrafficUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+/-", "traffic"),
		),
		TrafficDown: key.NewBinding(
			key.WithKeys("-", "_"),
		),
		CapacityUp: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("[/]", "capacity"),
		),
		CapacityDn: key.NewBinding(
			key.WithKeys("["),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reconnect"),
		),
		Debug: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "event log"),
		),
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "filter log"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.Approve, k.Simulate, k.Debug, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle},
		{k.Approve, k.Export},
		{k.Simulate, k.TrafficUp, k.CapacityUp},
		{k.Reconnect, k.Debug, k.Filter, k.Escape, k.Quit},
	}
}
