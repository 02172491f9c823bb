// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/evanschultz/tally/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports requests that collide with existing state.
var ErrConflict = errors.New("conflict")

// ErrUnavailable reports a store that has not finished loading.
var ErrUnavailable = errors.New("task store unavailable")

// TaskList is the ranked view returned to HTTP and MCP callers.
type TaskList struct {
	Tasks       []domain.DerivedTask `json:"tasks"`
	Metrics     domain.Metrics       `json:"metrics"`
	LastDeleted *domain.Task         `json:"last_deleted,omitempty"`
	Loading     bool                 `json:"loading"`
	LoadError   string               `json:"load_error,omitempty"`
	StateHash   string               `json:"state_hash"`
}

// AddTaskRequest captures input for new tasks. ID is optional.
type AddTaskRequest struct {
	ID        string   `json:"id,omitempty"`
	Title     string   `json:"title"`
	Revenue   *float64 `json:"revenue,omitempty"`
	TimeTaken *float64 `json:"timeTaken,omitempty"`
	Priority  string   `json:"priority,omitempty"`
	Status    string   `json:"status,omitempty"`
}

// UpdateTaskRequest captures a partial update. Nil fields are left untouched.
type UpdateTaskRequest struct {
	ID        string   `json:"-"`
	Title     *string  `json:"title,omitempty"`
	Revenue   *float64 `json:"revenue,omitempty"`
	TimeTaken *float64 `json:"timeTaken,omitempty"`
	Priority  *string  `json:"priority,omitempty"`
	Status    *string  `json:"status,omitempty"`
}

// UndoResult reports the outcome of an undo request.
type UndoResult struct {
	Restored bool         `json:"restored"`
	Task     *domain.Task `json:"task,omitempty"`
}

// TitleCheck reports whether a candidate title is already used.
type TitleCheck struct {
	Title  string   `json:"title"`
	Taken  bool     `json:"taken"`
	Titles []string `json:"titles"`
}

// TaskService captures the task operations exposed by both transports.
type TaskService interface {
	ListTasks(context.Context) (TaskList, error)
	GetTask(context.Context, string) (domain.Task, error)
	AddTask(context.Context, AddTaskRequest) (domain.Task, error)
	UpdateTask(context.Context, UpdateTaskRequest) (domain.Task, error)
	DeleteTask(context.Context, string) (domain.Task, error)
	UndoDelete(context.Context) (UndoResult, error)
	ClearLastDeleted(context.Context) error
	CheckTitle(context.Context, string, string) (TitleCheck, error)
	Metrics(context.Context) (domain.Metrics, error)
}
