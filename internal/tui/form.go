package tui

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/evanschultz/tally/internal/domain"
)

// newModalInput constructs modal input.
func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

// startTaskForm opens the add form, or the edit form when task is set.
func (m *Model) startTaskForm(task *domain.Task) tea.Cmd {
	m.formFocus = 0
	m.taskInfoTaskID = ""
	m.formInputs = []textinput.Model{
		newModalInput("", "task title (required)", "", 120),
		newModalInput("", "revenue, e.g. 1200", "", 32),
		newModalInput("", "hours, e.g. 4.5", "", 32),
		newModalInput("", "High | Medium | Low", string(domain.PriorityMedium), 16),
		newModalInput("", "Todo | In Progress | Done", string(domain.StatusTodo), 32),
	}
	if task != nil {
		m.formInputs[taskFieldTitle].SetValue(task.Title)
		m.formInputs[taskFieldRevenue].SetValue(amountInputValue(task.Revenue))
		m.formInputs[taskFieldTime].SetValue(amountInputValue(task.TimeTaken))
		m.formInputs[taskFieldPriority].SetValue(string(task.Priority))
		m.formInputs[taskFieldStatus].SetValue(string(task.Status))
		m.mode = modeEditTask
		m.editingTaskID = task.ID
		m.status = "edit task"
	} else {
		m.mode = modeAddTask
		m.editingTaskID = ""
		m.status = "new task"
	}
	return m.focusTaskFormField(0)
}

// focusTaskFormField focuses task form field.
func (m *Model) focusTaskFormField(idx int) tea.Cmd {
	if len(m.formInputs) == 0 {
		return nil
	}
	idx = clamp(idx, 0, len(m.formInputs)-1)
	m.formFocus = idx
	for i := range m.formInputs {
		m.formInputs[i].Blur()
	}
	return m.formInputs[idx].Focus()
}

func (m *Model) closeTaskForm() {
	m.mode = modeNone
	m.formInputs = nil
	m.formFocus = 0
	m.editingTaskID = ""
}

// cycleFormPriority steps the priority field through the named levels.
func (m *Model) cycleFormPriority(lower bool) {
	current, _ := domain.ParsePriority(m.formInputs[taskFieldPriority].Value())
	idx := 0
	for i, p := range domain.Priorities {
		if p == current {
			idx = i
			break
		}
	}
	if lower {
		idx = (idx + 1) % len(domain.Priorities)
	} else {
		idx = (idx - 1 + len(domain.Priorities)) % len(domain.Priorities)
	}
	m.formInputs[taskFieldPriority].SetValue(string(domain.Priorities[idx]))
}

// titleWarning returns the advisory duplicate-title message for the form, if any.
func (m Model) titleWarning() string {
	if len(m.formInputs) == 0 {
		return ""
	}
	title := strings.TrimSpace(m.formInputs[taskFieldTitle].Value())
	if title == "" {
		return ""
	}
	if m.svc.TitleTaken(title, m.editingTaskID) {
		return fmt.Sprintf("another task is already titled %q (allowed)", title)
	}
	return ""
}

// taskFormValues trims the current form values by field key.
func (m Model) taskFormValues() map[string]string {
	out := make(map[string]string, len(taskFormFields))
	for i, name := range taskFormFields {
		if i < len(m.formInputs) {
			out[name] = strings.TrimSpace(m.formInputs[i].Value())
		}
	}
	return out
}

// submitTaskForm validates the form and dispatches add or update.
func (m Model) submitTaskForm() (tea.Model, tea.Cmd) {
	if m.view.Loading {
		m.status = "error: " + errStoreBusy.Error()
		return m, nil
	}
	vals := m.taskFormValues()
	if vals["title"] == "" {
		m.status = "title required"
		return m, m.focusTaskFormField(taskFieldTitle)
	}
	revenue, err := parseAmountInput(vals["revenue"], m.display.Currency)
	if err != nil {
		m.status = "revenue: " + err.Error()
		return m, m.focusTaskFormField(taskFieldRevenue)
	}
	timeTaken, err := parseAmountInput(vals["time"], "")
	if err != nil {
		m.status = "time: " + err.Error()
		return m, m.focusTaskFormField(taskFieldTime)
	}
	priority, _ := domain.ParsePriority(vals["priority"])
	status := domain.Status(vals["status"])
	duplicate := m.titleWarning() != ""

	svc := m.svc
	if m.mode == modeEditTask {
		taskID := m.editingTaskID
		title := vals["title"]
		patch := domain.TaskPatch{
			Title:     &title,
			Revenue:   revenue,
			TimeTaken: timeTaken,
		}
		if vals["priority"] != "" {
			patch.Priority = &priority
		}
		if vals["status"] != "" {
			patch.Status = &status
		}
		m.closeTaskForm()
		return m, func() tea.Msg {
			task, err := svc.Update(context.Background(), taskID, patch)
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: savedStatus("updated", task.Title, duplicate), focusTaskID: task.ID}
		}
	}

	if vals["status"] == "" {
		status = domain.StatusTodo
	}
	in := domain.TaskInput{
		Title:     vals["title"],
		Revenue:   revenue,
		TimeTaken: timeTaken,
		Priority:  priority,
		Status:    status,
	}
	m.closeTaskForm()
	return m, func() tea.Msg {
		task, err := svc.Add(context.Background(), in)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: savedStatus("added", task.Title, duplicate), focusTaskID: task.ID}
	}
}

func savedStatus(verb, title string, duplicate bool) string {
	if duplicate {
		return fmt.Sprintf("%s %q (duplicate title)", verb, title)
	}
	return fmt.Sprintf("%s %q", verb, title)
}
