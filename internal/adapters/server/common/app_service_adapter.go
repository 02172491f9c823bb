package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
)

// AppServiceAdapter maps transport contracts onto the app task store.
type AppServiceAdapter struct {
	store *app.Store
}

// NewAppServiceAdapter builds one common adapter over an app.Store instance.
func NewAppServiceAdapter(store *app.Store) *AppServiceAdapter {
	return &AppServiceAdapter{store: store}
}

// ListTasks returns the ranked view, metrics, and undo candidate.
func (a *AppServiceAdapter) ListTasks(_ context.Context) (TaskList, error) {
	if a == nil || a.store == nil {
		return TaskList{}, fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	view := a.store.Snapshot()
	out := TaskList{
		Tasks:       view.Derived,
		Metrics:     view.Metrics,
		LastDeleted: view.LastDeleted,
		Loading:     view.Loading,
	}
	if view.Err != nil {
		out.LoadError = view.Err.Error()
	}
	hash, err := computeStateHash(out)
	if err != nil {
		return TaskList{}, err
	}
	out.StateHash = hash
	return out, nil
}

// AddTask creates one task.
func (a *AppServiceAdapter) AddTask(ctx context.Context, in AddTaskRequest) (domain.Task, error) {
	if a == nil || a.store == nil {
		return domain.Task{}, fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	priority, _ := domain.ParsePriority(in.Priority)
	status := domain.Status(strings.TrimSpace(in.Status))
	if status == "" {
		status = domain.StatusTodo
	}
	task, err := a.store.Add(ctx, domain.TaskInput{
		ID:        in.ID,
		Title:     in.Title,
		Revenue:   in.Revenue,
		TimeTaken: in.TimeTaken,
		Priority:  priority,
		Status:    status,
	})
	if err != nil {
		return domain.Task{}, mapAppError("add task", err)
	}
	return task, nil
}

// UpdateTask merges a partial update over one task.
func (a *AppServiceAdapter) UpdateTask(ctx context.Context, in UpdateTaskRequest) (domain.Task, error) {
	if a == nil || a.store == nil {
		return domain.Task{}, fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return domain.Task{}, fmt.Errorf("update task: id is required: %w", ErrInvalidRequest)
	}
	patch := domain.TaskPatch{
		Title:     in.Title,
		Revenue:   in.Revenue,
		TimeTaken: in.TimeTaken,
	}
	if in.Priority != nil {
		priority, _ := domain.ParsePriority(*in.Priority)
		patch.Priority = &priority
	}
	if in.Status != nil {
		status := domain.Status(strings.TrimSpace(*in.Status))
		patch.Status = &status
	}
	if patch.Empty() {
		return domain.Task{}, fmt.Errorf("update task: no fields to update: %w", ErrInvalidRequest)
	}
	task, err := a.store.Update(ctx, id, patch)
	if err != nil {
		return domain.Task{}, mapAppError("update task", err)
	}
	return task, nil
}

// DeleteTask removes one task and makes it the undo candidate.
func (a *AppServiceAdapter) DeleteTask(ctx context.Context, id string) (domain.Task, error) {
	if a == nil || a.store == nil {
		return domain.Task{}, fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Task{}, fmt.Errorf("delete task: id is required: %w", ErrInvalidRequest)
	}
	task, err := a.store.Delete(ctx, id)
	if err != nil {
		return domain.Task{}, mapAppError("delete task", err)
	}
	return task, nil
}

// GetTask returns one task by id.
func (a *AppServiceAdapter) GetTask(_ context.Context, id string) (domain.Task, error) {
	if a == nil || a.store == nil {
		return domain.Task{}, fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	if !a.store.Ready() {
		return domain.Task{}, fmt.Errorf("get task: %w", errors.Join(ErrUnavailable, app.ErrNotReady))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Task{}, fmt.Errorf("get task: id is required: %w", ErrInvalidRequest)
	}
	task, err := a.store.Get(id)
	if err != nil {
		return domain.Task{}, mapAppError("get task", err)
	}
	return task, nil
}

// UndoDelete restores the undo candidate, if any.
func (a *AppServiceAdapter) UndoDelete(ctx context.Context) (UndoResult, error) {
	if a == nil || a.store == nil {
		return UndoResult{}, fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	if !a.store.Ready() {
		return UndoResult{}, fmt.Errorf("undo delete: %w", errors.Join(ErrUnavailable, app.ErrNotReady))
	}
	task, ok := a.store.UndoDelete(ctx)
	if !ok {
		return UndoResult{}, nil
	}
	return UndoResult{Restored: true, Task: &task}, nil
}

// ClearLastDeleted drops the undo candidate.
func (a *AppServiceAdapter) ClearLastDeleted(_ context.Context) error {
	if a == nil || a.store == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	a.store.ClearLastDeleted()
	return nil
}

// CheckTitle reports whether title is already used by a task other than exceptID.
func (a *AppServiceAdapter) CheckTitle(_ context.Context, title, exceptID string) (TitleCheck, error) {
	if a == nil || a.store == nil {
		return TitleCheck{}, fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	title = strings.TrimSpace(title)
	return TitleCheck{
		Title:  title,
		Taken:  a.store.TitleTaken(title, strings.TrimSpace(exceptID)),
		Titles: a.store.Titles(),
	}, nil
}

// Metrics returns aggregate figures for the current collection.
func (a *AppServiceAdapter) Metrics(_ context.Context) (domain.Metrics, error) {
	if a == nil || a.store == nil {
		return domain.Metrics{}, fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	return a.store.Snapshot().Metrics, nil
}

// computeStateHash fingerprints the ranked view so clients can detect changes cheaply.
func computeStateHash(list TaskList) (string, error) {
	payload := struct {
		Tasks       []domain.DerivedTask `json:"tasks"`
		LastDeleted string               `json:"last_deleted"`
	}{Tasks: list.Tasks}
	if list.LastDeleted != nil {
		payload.LastDeleted = list.LastDeleted.ID
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode state hash payload: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// mapAppError maps app and domain errors onto transport sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrDuplicateID):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, app.ErrNotReady):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnavailable, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidRevenue),
		errors.Is(err, domain.ErrInvalidTimeTaken),
		errors.Is(err, app.ErrInvalidExport),
		errors.Is(err, app.ErrInvalidImportMode):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
