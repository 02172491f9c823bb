package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/evanschultz/tally/internal/domain"
)

// ExportVersion identifies the backup document format.
const ExportVersion = "tally.export.v1"

// Export is a portable copy of the task collection.
type Export struct {
	Version    string        `json:"version"`
	ExportedAt time.Time     `json:"exported_at"`
	Tasks      []domain.Task `json:"tasks"`
}

// ImportMode selects how an export is applied to the current collection.
type ImportMode string

const (
	ImportReplace ImportMode = "replace"
	ImportMerge   ImportMode = "merge"
)

// Export copies the current collection in insertion order.
func (s *Store) Export() Export {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Export{
		Version:    ExportVersion,
		ExportedAt: s.clock().UTC(),
		Tasks:      make([]domain.Task, len(s.tasks)),
	}
	for i, t := range s.tasks {
		out.Tasks[i] = t.Clone()
	}
	return out
}

// Validate checks version and every task record.
func (e *Export) Validate() error {
	if e.Version != "" && e.Version != ExportVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidExport, e.Version)
	}
	seen := make(map[string]struct{}, len(e.Tasks))
	for i, t := range e.Tasks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: tasks[%d]: %w", ErrInvalidExport, i, err)
		}
		id := strings.TrimSpace(t.ID)
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: duplicate task id %q", ErrInvalidExport, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Import applies exp. Replace swaps the whole collection; merge overwrites matching ids
// in place and appends the rest. The undo buffer is cleared either way.
func (s *Store) Import(ctx context.Context, exp Export, mode ImportMode) (int, error) {
	switch mode {
	case ImportReplace, ImportMerge:
	case "":
		mode = ImportReplace
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidImportMode, mode)
	}
	if err := exp.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireReady(); err != nil {
		return 0, err
	}

	incoming := make([]domain.Task, 0, len(exp.Tasks))
	for _, t := range exp.Tasks {
		task, err := domain.NewTask(domain.TaskInput{
			ID:        t.ID,
			Title:     t.Title,
			Revenue:   t.Revenue,
			TimeTaken: t.TimeTaken,
			Priority:  t.Priority,
			Status:    t.Status,
		})
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidExport, err)
		}
		incoming = append(incoming, task)
	}

	var next []domain.Task
	if mode == ImportReplace {
		next = incoming
	} else {
		next = slices.Clone(s.tasks)
		for _, t := range incoming {
			if idx := slices.IndexFunc(next, func(cur domain.Task) bool { return cur.ID == t.ID }); idx >= 0 {
				next[idx] = t
				continue
			}
			next = append(next, t)
		}
	}

	s.tasks = next
	s.lastDeleted = nil
	s.commit(ctx, "import_"+string(mode), "")
	return len(incoming), nil
}
