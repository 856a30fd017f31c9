package main

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"dockdash/internal/state"
)

// intent is a user request decoded from a key press.
type intent int

const (
	intentNone intent = iota
	intentNext
	intentPrev
	intentFocus
	intentAction
	intentConfirm
	intentCancel
	intentOpen
	intentCopy
	intentHelp
	intentQuit
)

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Focus   key.Binding
	Start   key.Binding
	Stop    key.Binding
	Restart key.Binding
	Pause   key.Binding
	Unpause key.Binding
	Kill    key.Binding
	Remove  key.Binding
	Reset   key.Binding
	Inspect key.Binding
	Compose key.Binding
	Open    key.Binding
	OpenNth key.Binding
	Copy    key.Binding
	Confirm key.Binding
	Cancel  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Focus:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus")),
		Start:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "start")),
		Stop:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
		Pause:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
		Unpause: key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unpause")),
		Kill:    key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "kill")),
		Remove:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "remove")),
		Reset:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reset")),
		Inspect: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "inspect")),
		Compose: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "compose up")),
		Open:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		OpenNth: key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "open port")),
		Copy:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy url")),
		Confirm: key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y/enter", "confirm")),
		Cancel:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n/esc", "cancel")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Start, k.Stop, k.Restart, k.Inspect, k.Open, k.Focus, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Focus, k.Help, k.Quit},
		{k.Start, k.Stop, k.Restart, k.Pause, k.Unpause, k.Kill},
		{k.Remove, k.Reset, k.Inspect, k.Compose},
		{k.Open, k.OpenNth, k.Copy, k.Confirm, k.Cancel},
	}
}

// decoded is an intent plus its argument, when it has one.
type decoded struct {
	intent intent
	action state.ActionKind
	port   int
}

// decode maps a key press to an intent. While a confirmation is pending only
// confirm, cancel, and quit are recognized.
func (k keyMap) decode(msg tea.KeyMsg, confirming bool) decoded {
	if confirming {
		switch {
		case key.Matches(msg, k.Confirm):
			return decoded{intent: intentConfirm}
		case key.Matches(msg, k.Cancel):
			return decoded{intent: intentCancel}
		case msg.String() == "ctrl+c":
			return decoded{intent: intentQuit}
		}
		return decoded{}
	}

	actions := []struct {
		binding key.Binding
		kind    state.ActionKind
	}{
		{k.Start, state.ActionStart},
		{k.Stop, state.ActionStop},
		{k.Restart, state.ActionRestart},
		{k.Pause, state.ActionPause},
		{k.Unpause, state.ActionUnpause},
		{k.Kill, state.ActionKill},
		{k.Remove, state.ActionRemove},
		{k.Reset, state.ActionReset},
		{k.Inspect, state.ActionInspect},
		{k.Compose, state.ActionComposeUp},
	}

	switch {
	case key.Matches(msg, k.Quit):
		return decoded{intent: intentQuit}
	case key.Matches(msg, k.Help):
		return decoded{intent: intentHelp}
	case key.Matches(msg, k.Focus):
		return decoded{intent: intentFocus}
	case key.Matches(msg, k.Up):
		return decoded{intent: intentPrev}
	case key.Matches(msg, k.Down):
		return decoded{intent: intentNext}
	case key.Matches(msg, k.Open):
		return decoded{intent: intentOpen, port: -1}
	case key.Matches(msg, k.OpenNth):
		return decoded{intent: intentOpen, port: int(msg.String()[0] - '1')}
	case key.Matches(msg, k.Copy):
		return decoded{intent: intentCopy}
	case key.Matches(msg, k.Cancel):
		return decoded{intent: intentCancel}
	}
	for _, a := range actions {
		if key.Matches(msg, a.binding) {
			return decoded{intent: intentAction, action: a.kind}
		}
	}
	return decoded{}
}
