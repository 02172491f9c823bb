package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the table-mode bindings shown in the help bar.
type keyMap struct {
	quit        key.Binding
	toggleHelp  key.Binding
	moveUp      key.Binding
	moveDown    key.Binding
	moveTop     key.Binding
	moveBottom  key.Binding
	addTask     key.Binding
	editTask    key.Binding
	taskInfo    key.Binding
	deleteTask  key.Binding
	undoDelete  key.Binding
	dismissUndo key.Binding
	copyTask    key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		toggleHelp:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveUp:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		moveDown:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		moveTop:     key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		moveBottom:  key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		addTask:     key.NewBinding(key.WithKeys("n", "a"), key.WithHelp("n", "new task")),
		editTask:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit task")),
		taskInfo:    key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "task info")),
		deleteTask:  key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete task")),
		undoDelete:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo delete")),
		dismissUndo: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss undo")),
		copyTask:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy summary")),
	}
}

// ShortHelp lists the bindings for the collapsed help bar.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.addTask, k.editTask, k.taskInfo, k.deleteTask, k.undoDelete, k.copyTask, k.toggleHelp, k.quit,
	}
}

// FullHelp groups every binding for the expanded help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.addTask, k.editTask, k.taskInfo, k.copyTask, k.toggleHelp, k.quit},
		{k.moveUp, k.moveDown, k.moveTop, k.moveBottom},
		{k.deleteTask, k.undoDelete, k.dismissUndo},
	}
}
