package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit      key.Binding
	Back      key.Binding
	Up        key.Binding
	Down      key.Binding
	Select    key.Binding
	Tab       key.Binding
	Analyze   key.Binding
	Refresh   key.Binding
	Clear     key.Binding
	AddNew    key.Binding
	Delete    key.Binding
	Reload    key.Binding
	Toggle    key.Binding
	ShowPicks key.Binding
}

var keys = keyMap{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Select:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Tab:       key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
	Analyze:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "analyze")),
	Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "re-run analysis")),
	Clear:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear analysis")),
	AddNew:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new holding")),
	Delete:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete holding")),
	Reload:    key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "reload")),
	Toggle:    key.NewBinding(key.WithKeys("1", "2", "3", "4", "5"), key.WithHelp("1-5", "toggle section")),
	ShowPicks: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "top picks")),
}

// formKeys are the keys the add-holding form handles itself; everything
// else goes to the focused text input.
var formKeys = struct {
	Up, Down, Enter, Tab, Esc key.Binding
}{
	Up:    key.NewBinding(key.WithKeys("up")),
	Down:  key.NewBinding(key.WithKeys("down")),
	Enter: key.NewBinding(key.WithKeys("enter")),
	Tab:   key.NewBinding(key.WithKeys("tab", "shift+tab")),
	Esc:   key.NewBinding(key.WithKeys("esc")),
}
