package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
)

// Service is the store surface the TUI reads and mutates.
type Service interface {
	Load(context.Context)
	Snapshot() app.View
	Add(context.Context, domain.TaskInput) (domain.Task, error)
	Update(context.Context, string, domain.TaskPatch) (domain.Task, error)
	Delete(context.Context, string) (domain.Task, error)
	UndoDelete(context.Context) (domain.Task, bool)
	ClearLastDeleted()
	TitleTaken(title, exceptID string) bool
}

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeAddTask
	modeEditTask
	modeTaskInfo
	modeConfirmDelete
)

// taskFormFields stores task-form field keys in display/update order.
var taskFormFields = []string{"title", "revenue", "time", "priority", "status"}

// task-form field indexes used throughout keyboard/update logic.
const (
	taskFieldTitle = iota
	taskFieldRevenue
	taskFieldTime
	taskFieldPriority
	taskFieldStatus
)

type Model struct {
	svc Service

	ready  bool
	width  int
	height int

	status string

	help help.Model
	keys keyMap

	display       DisplayConfig
	confirmDelete bool
	copyText      ClipboardWriter

	view     app.View
	selected int

	mode           inputMode
	formInputs     []textinput.Model
	formFocus      int
	editingTaskID  string
	taskInfoTaskID string
	pendingDelete  string

	markdown *markdownRenderer
}

// loadedMsg carries the store snapshot after the one-shot load.
type loadedMsg struct {
	view app.View
}

// actionMsg carries message data through update handling.
type actionMsg struct {
	err         error
	status      string
	focusTaskID string
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:      svc,
		status:   "loading...",
		help:     h,
		keys:     newKeyMap(),
		display:  DefaultDisplayConfig(),
		copyText: systemClipboard,
		markdown: &markdownRenderer{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init starts the background load of the task store.
func (m Model) Init() tea.Cmd {
	return m.loadData
}

// Update routes messages to the load, key, and window handlers.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		m.view = msg.view
		m.clampSelection()
		if msg.view.Err != nil {
			m.status = "started empty: " + msg.view.Err.Error()
			return m, nil
		}
		if m.status == "" || m.status == "loading..." {
			m.status = "ready"
		}
		return m, nil

	case actionMsg:
		m.refresh()
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
			return m, nil
		}
		if msg.status != "" {
			m.status = msg.status
		}
		if msg.focusTaskID != "" {
			m.focusTaskByID(msg.focusTaskID)
		}
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		return m.handleNormalModeKey(msg)

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	default:
		return m, nil
	}
}

// loadData loads required data for the current operation.
func (m Model) loadData() tea.Msg {
	m.svc.Load(context.Background())
	return loadedMsg{view: m.svc.Snapshot()}
}

// refresh re-reads the derived view after a mutation.
func (m *Model) refresh() {
	m.view = m.svc.Snapshot()
	m.clampSelection()
}

// handleNormalModeKey handles table-mode keys.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		if m.help.ShowAll {
			m.status = "help"
		} else {
			m.status = "ready"
		}
		return m, nil
	case msg.String() == "esc":
		if m.help.ShowAll {
			m.help.ShowAll = false
			m.status = "ready"
		}
		return m, nil
	}
	if m.view.Loading {
		m.status = "still loading"
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.moveDown):
		if m.selected < len(m.view.Derived)-1 {
			m.selected++
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case key.Matches(msg, m.keys.moveTop):
		m.selected = 0
		return m, nil
	case key.Matches(msg, m.keys.moveBottom):
		m.selected = max(0, len(m.view.Derived)-1)
		return m, nil
	case key.Matches(msg, m.keys.addTask):
		return m, m.startTaskForm(nil)
	case key.Matches(msg, m.keys.editTask):
		task, ok := m.selectedTask()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		return m, m.startTaskForm(&task.Task)
	case key.Matches(msg, m.keys.taskInfo):
		task, ok := m.selectedTask()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.mode = modeTaskInfo
		m.taskInfoTaskID = task.ID
		m.status = "task info"
		return m, nil
	case key.Matches(msg, m.keys.deleteTask):
		return m.deleteSelectedTask()
	case key.Matches(msg, m.keys.undoDelete):
		return m, m.undoDeleteCmd()
	case key.Matches(msg, m.keys.dismissUndo):
		if m.view.LastDeleted == nil {
			m.status = "nothing to dismiss"
			return m, nil
		}
		m.svc.ClearLastDeleted()
		m.refresh()
		m.status = "undo dismissed"
		return m, nil
	case key.Matches(msg, m.keys.copyTask):
		return m.copySelectedTask()
	default:
		return m, nil
	}
}

// handleInputModeKey handles keys while a form, modal, or confirmation owns input.
func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeTaskInfo:
		switch {
		case msg.String() == "esc" || msg.String() == "q" || key.Matches(msg, m.keys.taskInfo):
			m.mode = modeNone
			m.taskInfoTaskID = ""
			m.status = "ready"
			return m, nil
		case key.Matches(msg, m.keys.editTask):
			task, ok := m.taskByID(m.taskInfoTaskID)
			m.taskInfoTaskID = ""
			if !ok {
				m.mode = modeNone
				m.status = "task info unavailable"
				return m, nil
			}
			return m, m.startTaskForm(&task.Task)
		case key.Matches(msg, m.keys.copyTask):
			return m.copySelectedTask()
		default:
			return m, nil
		}

	case modeConfirmDelete:
		switch strings.ToLower(msg.String()) {
		case "y", "enter":
			taskID := m.pendingDelete
			m.pendingDelete = ""
			m.mode = modeNone
			return m, m.deleteTaskCmd(taskID)
		case "n", "esc":
			m.pendingDelete = ""
			m.mode = modeNone
			m.status = "delete cancelled"
			return m, nil
		default:
			return m, nil
		}

	case modeAddTask, modeEditTask:
		switch {
		case msg.Code == tea.KeyEscape || msg.String() == "esc":
			m.closeTaskForm()
			m.status = "cancelled"
			return m, nil
		case msg.Code == tea.KeyTab || msg.String() == "tab" || msg.String() == "down":
			return m, m.focusTaskFormField(m.formFocus + 1)
		case msg.String() == "shift+tab" || msg.String() == "backtab" || msg.String() == "up":
			return m, m.focusTaskFormField(m.formFocus - 1)
		case msg.Code == tea.KeyEnter || msg.String() == "enter":
			return m.submitTaskForm()
		case m.formFocus == taskFieldPriority && (msg.String() == "left" || msg.String() == "right"):
			m.cycleFormPriority(msg.String() == "right")
			return m, nil
		default:
			var cmd tea.Cmd
			m.formInputs[m.formFocus], cmd = m.formInputs[m.formFocus].Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// handleMouseWheel moves the table selection.
func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.help.ShowAll || m.mode != modeNone {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseWheelUp:
		if m.selected > 0 {
			m.selected--
		}
	case tea.MouseWheelDown:
		if m.selected < len(m.view.Derived)-1 {
			m.selected++
		}
	}
	return m, nil
}

// deleteSelectedTask deletes the highlighted task, asking first when configured.
func (m Model) deleteSelectedTask() (tea.Model, tea.Cmd) {
	task, ok := m.selectedTask()
	if !ok {
		m.status = "no task selected"
		return m, nil
	}
	if m.confirmDelete {
		m.mode = modeConfirmDelete
		m.pendingDelete = task.ID
		m.status = "confirm delete"
		return m, nil
	}
	return m, m.deleteTaskCmd(task.ID)
}

func (m Model) deleteTaskCmd(taskID string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		task, err := svc.Delete(context.Background(), taskID)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: fmt.Sprintf("deleted %q", task.Title)}
	}
}

func (m Model) undoDeleteCmd() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		task, ok := svc.UndoDelete(context.Background())
		if !ok {
			return actionMsg{status: "nothing to undo"}
		}
		return actionMsg{status: fmt.Sprintf("restored %q", task.Title), focusTaskID: task.ID}
	}
}

// copySelectedTask copies a one-line summary. Clipboard failures only change the status line.
func (m Model) copySelectedTask() (tea.Model, tea.Cmd) {
	task, ok := m.selectedTask()
	if m.mode == modeTaskInfo {
		task, ok = m.taskByID(m.taskInfoTaskID)
	}
	if !ok {
		m.status = "no task selected"
		return m, nil
	}
	if err := m.copyText(taskSummary(task, m.display.Currency)); err != nil {
		m.status = "copy failed: " + err.Error()
		return m, nil
	}
	m.status = fmt.Sprintf("copied %q", task.Title)
	return m, nil
}

// selectedTask returns the highlighted ranked task.
func (m Model) selectedTask() (domain.DerivedTask, bool) {
	if len(m.view.Derived) == 0 {
		return domain.DerivedTask{}, false
	}
	return m.view.Derived[clamp(m.selected, 0, len(m.view.Derived)-1)], true
}

func (m Model) taskByID(taskID string) (domain.DerivedTask, bool) {
	for _, task := range m.view.Derived {
		if task.ID == taskID {
			return task, true
		}
	}
	return domain.DerivedTask{}, false
}

// rankOf returns the 1-based position of taskID in the ranked list, or 0.
func (m Model) rankOf(taskID string) int {
	for idx, task := range m.view.Derived {
		if task.ID == taskID {
			return idx + 1
		}
	}
	return 0
}

// focusTaskByID moves the selection to taskID when present.
func (m *Model) focusTaskByID(taskID string) {
	if rank := m.rankOf(taskID); rank > 0 {
		m.selected = rank - 1
	}
}

func (m *Model) clampSelection() {
	m.selected = clamp(m.selected, 0, len(m.view.Derived)-1)
}

// errStoreBusy is reported when a form is submitted before load completes.
var errStoreBusy = errors.New("store is still loading")

// clamp bounds v to [minV, maxV]; an inverted range yields minV.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}
