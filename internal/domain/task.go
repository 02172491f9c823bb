package domain

import (
	"math"
	"strings"
)

// Priority is the user-facing importance of a task. Unknown values are kept as-is.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Priorities lists the named priority levels from highest to lowest.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Rank orders priorities for sorting. Anything unrecognized ranks below Low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// ParsePriority maps free-form input onto a named priority, case-insensitively.
func ParsePriority(raw string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high", "h":
		return PriorityHigh, true
	case "medium", "med", "m":
		return PriorityMedium, true
	case "low", "l":
		return PriorityLow, true
	default:
		return Priority(strings.TrimSpace(raw)), false
	}
}

// Status is an opaque workflow state. The store never interprets it.
type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Statuses lists the states offered by input surfaces.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

type Task struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Revenue   *float64 `json:"revenue"`
	TimeTaken *float64 `json:"timeTaken"`
	Priority  Priority `json:"priority"`
	Status    Status   `json:"status"`
}

type TaskInput struct {
	ID        string
	Title     string
	Revenue   *float64
	TimeTaken *float64
	Priority  Priority
	Status    Status
}

// TaskPatch carries the fields to overwrite. Nil fields are left untouched.
type TaskPatch struct {
	Title     *string   `json:"title,omitempty"`
	Revenue   *float64  `json:"revenue,omitempty"`
	TimeTaken *float64  `json:"timeTaken,omitempty"`
	Priority  *Priority `json:"priority,omitempty"`
	Status    *Status   `json:"status,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Revenue == nil && p.TimeTaken == nil && p.Priority == nil && p.Status == nil
}

func NewTask(in TaskInput) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	task := Task{
		ID:        in.ID,
		Title:     in.Title,
		Revenue:   copyAmount(in.Revenue),
		TimeTaken: copyAmount(in.TimeTaken),
		Priority:  Priority(strings.TrimSpace(string(in.Priority))),
		Status:    Status(strings.TrimSpace(string(in.Status))),
	}
	task.Title = strings.TrimSpace(task.Title)
	if err := task.Validate(); err != nil {
		return Task{}, err
	}
	return task, nil
}

// Apply merges the patch over a copy of t and returns the new record. The id never changes.
func (t Task) Apply(p TaskPatch) (Task, error) {
	next := t.Clone()
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
	}
	if p.Revenue != nil {
		next.Revenue = copyAmount(p.Revenue)
	}
	if p.TimeTaken != nil {
		next.TimeTaken = copyAmount(p.TimeTaken)
	}
	if p.Priority != nil {
		next.Priority = Priority(strings.TrimSpace(string(*p.Priority)))
	}
	if p.Status != nil {
		next.Status = Status(strings.TrimSpace(string(*p.Status)))
	}
	if err := next.Validate(); err != nil {
		return Task{}, err
	}
	return next, nil
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrInvalidID
	}
	if strings.TrimSpace(t.Title) == "" {
		return ErrInvalidTitle
	}
	if t.Revenue != nil && (*t.Revenue < 0 || !isFinite(*t.Revenue)) {
		return ErrInvalidRevenue
	}
	if t.TimeTaken != nil && (*t.TimeTaken < 0 || !isFinite(*t.TimeTaken)) {
		return ErrInvalidTimeTaken
	}
	return nil
}

// Clone returns a deep copy so callers cannot alias amounts held by the store.
func (t Task) Clone() Task {
	t.Revenue = copyAmount(t.Revenue)
	t.TimeTaken = copyAmount(t.TimeTaken)
	return t
}

// ROI is ComputeROI over the task's own figures.
func (t Task) ROI() float64 {
	return ComputeROI(t.Revenue, t.TimeTaken)
}

// Amount returns a pointer to v, for building inputs and patches.
func Amount(v float64) *float64 {
	return &v
}

// AmountValue dereferences an optional amount, treating missing as zero.
func AmountValue(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func copyAmount(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
