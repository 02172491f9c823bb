package common

import (
	"context"
	"errors"
	"testing"

	"github.com/evanschultz/tally/internal/adapters/storage/sqlite"
	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
)

func newTestAdapter(t *testing.T) (*AppServiceAdapter, *app.Store) {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	store := app.NewStore(repo, app.StoreConfig{})
	store.Load(context.Background())
	return NewAppServiceAdapter(store), store
}

// TestAppServiceAdapterLifecycle verifies add, update, delete, and undo through transport contracts.
func TestAppServiceAdapterLifecycle(t *testing.T) {
	ctx := context.Background()
	adapter, _ := newTestAdapter(t)

	task, err := adapter.AddTask(ctx, AddTaskRequest{
		Title:     "Pitch deck",
		Revenue:   domain.Amount(100),
		TimeTaken: domain.Amount(4),
		Priority:  "high",
	})
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if task.Priority != domain.PriorityHigh || task.Status != domain.StatusTodo {
		t.Fatalf("expected normalized priority and default status, got %#v", task)
	}

	status := "Done"
	updated, err := adapter.UpdateTask(ctx, UpdateTaskRequest{ID: task.ID, Status: &status})
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if updated.Status != domain.StatusDone {
		t.Fatalf("unexpected status %q", updated.Status)
	}

	list, err := adapter.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(list.Tasks) != 1 || list.Tasks[0].ROI != 25 || list.StateHash == "" {
		t.Fatalf("unexpected list %#v", list)
	}

	if _, err := adapter.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	afterDelete, _ := adapter.ListTasks(ctx)
	if afterDelete.StateHash == list.StateHash {
		t.Fatal("expected state hash to change after delete")
	}
	if afterDelete.LastDeleted == nil || afterDelete.LastDeleted.ID != task.ID {
		t.Fatalf("expected last deleted task, got %#v", afterDelete.LastDeleted)
	}

	undo, err := adapter.UndoDelete(ctx)
	if err != nil || !undo.Restored || undo.Task.ID != task.ID {
		t.Fatalf("UndoDelete() = %#v, %v", undo, err)
	}
	undo, err = adapter.UndoDelete(ctx)
	if err != nil || undo.Restored {
		t.Fatalf("second UndoDelete() = %#v, %v", undo, err)
	}
	restored, _ := adapter.ListTasks(ctx)
	if restored.StateHash != list.StateHash {
		t.Fatal("expected state hash to match the pre-delete state after undo")
	}
}

// TestAppServiceAdapterErrorMapping verifies app failures surface as transport sentinels.
func TestAppServiceAdapterErrorMapping(t *testing.T) {
	ctx := context.Background()
	adapter, _ := newTestAdapter(t)

	if _, err := adapter.AddTask(ctx, AddTaskRequest{Title: " "}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("AddTask(blank) error = %v, want ErrInvalidRequest", err)
	}
	if _, err := adapter.AddTask(ctx, AddTaskRequest{ID: "x", Title: "one"}); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if _, err := adapter.AddTask(ctx, AddTaskRequest{ID: "x", Title: "two"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("AddTask(dup) error = %v, want ErrConflict", err)
	}
	if got, err := adapter.GetTask(ctx, " x "); err != nil || got.Title != "one" {
		t.Fatalf("GetTask(x) = %#v, %v", got, err)
	}
	if _, err := adapter.GetTask(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetTask(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := adapter.GetTask(ctx, " "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("GetTask(blank) error = %v, want ErrInvalidRequest", err)
	}
	if _, err := adapter.DeleteTask(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteTask(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := adapter.DeleteTask(ctx, ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("DeleteTask(blank) error = %v, want ErrInvalidRequest", err)
	}
	if _, err := adapter.UpdateTask(ctx, UpdateTaskRequest{ID: "x"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("UpdateTask(empty patch) error = %v, want ErrInvalidRequest", err)
	}
}

// TestAppServiceAdapterNotReady verifies mutations before load surface as unavailable.
func TestAppServiceAdapterNotReady(t *testing.T) {
	ctx := context.Background()
	adapter := NewAppServiceAdapter(app.NewStore(nil, app.StoreConfig{}))
	if _, err := adapter.AddTask(ctx, AddTaskRequest{Title: "x"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("AddTask() error = %v, want ErrUnavailable", err)
	}
	if _, err := adapter.UndoDelete(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("UndoDelete() error = %v, want ErrUnavailable", err)
	}
	if _, err := adapter.GetTask(ctx, "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("GetTask() error = %v, want ErrUnavailable", err)
	}
	list, err := adapter.ListTasks(ctx)
	if err != nil || !list.Loading {
		t.Fatalf("ListTasks() = %#v, %v", list, err)
	}
}

// TestAppServiceAdapterCheckTitle verifies advisory duplicate-title checks.
func TestAppServiceAdapterCheckTitle(t *testing.T) {
	ctx := context.Background()
	adapter, _ := newTestAdapter(t)
	task, _ := adapter.AddTask(ctx, AddTaskRequest{Title: "Quarterly Review"})

	check, err := adapter.CheckTitle(ctx, "quarterly review", "")
	if err != nil || !check.Taken || len(check.Titles) != 1 {
		t.Fatalf("CheckTitle() = %#v, %v", check, err)
	}
	check, _ = adapter.CheckTitle(ctx, "quarterly review", task.ID)
	if check.Taken {
		t.Fatal("expected own title to be excluded")
	}
}
