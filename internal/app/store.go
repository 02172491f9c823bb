package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/evanschultz/tally/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// DefaultStorageKey is the pinned key the task collection is stored under.
const DefaultStorageKey = "tally.tasks.v1"

// State is the store lifecycle position.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

// String returns a stable label for logs.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// IDGenerator returns unique identifiers for new tasks.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// StoreConfig holds configuration for the task store.
type StoreConfig struct {
	Key    string
	Locale language.Tag
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithIDGenerator overrides uuid-based ids.
func WithIDGenerator(gen IDGenerator) StoreOption {
	return func(s *Store) {
		if gen != nil {
			s.idGen = gen
		}
	}
}

// WithClock overrides the export timestamp source.
func WithClock(clock Clock) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger routes store events to logger.
func WithLogger(logger *log.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPersistErrorHandler is called with every failed best-effort write.
func WithPersistErrorHandler(fn func(error)) StoreOption {
	return func(s *Store) {
		s.onPersistErr = fn
	}
}

// View is a consistent copy of everything collaborators read from the store.
type View struct {
	Tasks       []domain.Task        `json:"tasks"`
	Derived     []domain.DerivedTask `json:"derivedSorted"`
	Metrics     domain.Metrics       `json:"metrics"`
	LastDeleted *domain.Task         `json:"lastDeleted"`
	Loading     bool                 `json:"loading"`
	Err         error                `json:"-"`
}

// Store owns the canonical task collection, its derived view, and the one-slot undo buffer.
type Store struct {
	kv           KVStore
	key          string
	locale       language.Tag
	idGen        IDGenerator
	clock        Clock
	logger       *log.Logger
	onPersistErr func(error)

	state atomic.Int32

	mu          sync.Mutex
	loadErr     error
	tasks       []domain.Task
	lastDeleted *domain.Task
	derived     []domain.DerivedTask
	metrics     domain.Metrics
}

// NewStore constructs a store over kv. Call Load before mutating.
func NewStore(kv KVStore, cfg StoreConfig, opts ...StoreOption) *Store {
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		key = DefaultStorageKey
	}
	locale := cfg.Locale
	if locale == language.Und {
		locale = domain.DefaultLocale
	}
	s := &Store{
		kv:     kv,
		key:    key,
		locale: locale,
		idGen:  uuid.NewString,
		clock:  time.Now,
		logger: log.New(io.Discard),
		tasks:  []domain.Task{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.recompute()
	return s
}

// Key returns the storage key in use.
func (s *Store) Key() string {
	return s.key
}

// State reports the lifecycle position without blocking on an in-flight load.
func (s *Store) State() State {
	return State(s.state.Load())
}

// Loading reports whether the collection is not ready yet.
func (s *Store) Loading() bool {
	return s.State() != StateReady
}

// Ready reports whether Load has completed.
func (s *Store) Ready() bool {
	return s.State() == StateReady
}

// Err returns the recoverable error recorded by Load, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// Load reads the persisted collection. Only the first call does any work.
// Read or decode failures leave an empty collection and are reported through Err.
func (s *Store) Load(ctx context.Context) {
	if !s.state.CompareAndSwap(int32(StateUninitialized), int32(StateLoading)) {
		s.logger.Debug("task store load skipped", "state", s.State())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read(ctx)
	if err != nil {
		s.logger.Warn("task store load recovered with empty collection", "key", s.key, "err", err)
		tasks = []domain.Task{}
	}
	s.loadErr = err
	s.tasks = tasks
	s.recompute()
	s.state.Store(int32(StateReady))
	s.logger.Info("task store ready", "key", s.key, "tasks", len(s.tasks))
}

// Add inserts a new task, assigning an id when the input carries none.
func (s *Store) Add(ctx context.Context, in domain.TaskInput) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireReady(); err != nil {
		return domain.Task{}, err
	}

	if strings.TrimSpace(in.ID) == "" {
		in.ID = s.idGen()
	}
	task, err := domain.NewTask(in)
	if err != nil {
		return domain.Task{}, err
	}
	if s.indexOf(task.ID) >= 0 {
		return domain.Task{}, fmt.Errorf("%w: %s", ErrDuplicateID, task.ID)
	}

	s.tasks = append(s.tasks, task)
	s.commit(ctx, "add", task.ID)
	return task.Clone(), nil
}

// Update merges patch over the task with id and stores the resulting record.
func (s *Store) Update(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireReady(); err != nil {
		return domain.Task{}, err
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return domain.Task{}, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	next, err := s.tasks[idx].Apply(patch)
	if err != nil {
		return domain.Task{}, err
	}

	tasks := slices.Clone(s.tasks)
	tasks[idx] = next
	s.tasks = tasks
	s.commit(ctx, "update", id)
	return next.Clone(), nil
}

// Delete removes the task with id and keeps it as the undo candidate.
func (s *Store) Delete(ctx context.Context, id string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireReady(); err != nil {
		return domain.Task{}, err
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return domain.Task{}, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	removed := s.tasks[idx]
	s.tasks = slices.Delete(slices.Clone(s.tasks), idx, idx+1)
	s.lastDeleted = &removed
	s.commit(ctx, "delete", id)
	return removed.Clone(), nil
}

// UndoDelete restores the undo candidate. It reports false when there was nothing to restore.
func (s *Store) UndoDelete(ctx context.Context) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requireReady() != nil || s.lastDeleted == nil {
		return domain.Task{}, false
	}

	restored := *s.lastDeleted
	s.lastDeleted = nil
	if s.indexOf(restored.ID) >= 0 {
		s.logger.Warn("undo skipped, id already present", "id", restored.ID)
		return domain.Task{}, false
	}
	s.tasks = append(slices.Clone(s.tasks), restored)
	s.commit(ctx, "undo_delete", restored.ID)
	return restored.Clone(), true
}

// ClearLastDeleted drops the undo candidate without restoring it.
func (s *Store) ClearLastDeleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDeleted = nil
}

// Snapshot returns copies of the raw collection, derived view, metrics and undo candidate.
func (s *Store) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := View{
		Tasks:   make([]domain.Task, len(s.tasks)),
		Derived: make([]domain.DerivedTask, len(s.derived)),
		Metrics: s.metrics,
		Loading: s.Loading(),
		Err:     s.loadErr,
	}
	for i, t := range s.tasks {
		view.Tasks[i] = t.Clone()
	}
	for i, d := range s.derived {
		view.Derived[i] = domain.DerivedTask{Task: d.Task.Clone(), ROI: d.ROI}
	}
	if s.lastDeleted != nil {
		last := s.lastDeleted.Clone()
		view.LastDeleted = &last
	}
	return view
}

// Get returns the task with id.
func (s *Store) Get(id string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return domain.Task{}, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	return s.tasks[idx].Clone(), nil
}

// Titles lists current titles in collection order for advisory uniqueness checks.
func (s *Store) Titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Title)
	}
	return out
}

// TitleTaken reports whether another task already uses title, ignoring case and outer spaces.
func (s *Store) TitleTaken(title, exceptID string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == exceptID {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(t.Title), title) {
			return true
		}
	}
	return false
}

// requireReady must be called with mu held.
func (s *Store) requireReady() error {
	if s.State() != StateReady {
		return ErrNotReady
	}
	return nil
}

func (s *Store) indexOf(id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.tasks, func(t domain.Task) bool { return t.ID == id })
}

// commit persists and rebuilds the derived view. Persistence failures do not roll back.
func (s *Store) commit(ctx context.Context, op, id string) {
	s.recompute()
	if err := s.write(ctx); err != nil {
		s.logger.Warn("task store write failed", "op", op, "id", id, "key", s.key, "err", err)
		if s.onPersistErr != nil {
			s.onPersistErr(err)
		}
		return
	}
	s.logger.Debug("task store committed", "op", op, "id", id, "tasks", len(s.tasks))
}

func (s *Store) recompute() {
	s.derived, s.metrics = domain.Derive(s.locale, s.tasks)
}

func (s *Store) read(ctx context.Context) ([]domain.Task, error) {
	if s.kv == nil {
		return []domain.Task{}, nil
	}
	raw, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageRead, err)
	}
	if !found || len(strings.TrimSpace(string(raw))) == 0 {
		return []domain.Task{}, nil
	}
	var decoded []domain.Task
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}
	return sanitizeLoaded(decoded, s.logger), nil
}

func (s *Store) write(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	encoded, err := json.Marshal(s.tasks)
	if err != nil {
		return fmt.Errorf("%w: encode tasks: %w", ErrStorageWrite, err)
	}
	if err := s.kv.Set(ctx, s.key, encoded); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return nil
}

// sanitizeLoaded drops records that fail task validation and keeps the first of any duplicated id.
// Surviving records pass the same checks as Apply and Import, so they stay editable and exportable.
func sanitizeLoaded(tasks []domain.Task, logger *log.Logger) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	seen := make(map[string]struct{}, len(tasks))
	dropped := 0
	for _, t := range tasks {
		t.ID = strings.TrimSpace(t.ID)
		t.Title = strings.TrimSpace(t.Title)
		if err := t.Validate(); err != nil {
			logger.Warn("dropping invalid persisted task", "id", t.ID, "err", err)
			dropped++
			continue
		}
		if _, ok := seen[t.ID]; ok {
			dropped++
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	if dropped > 0 {
		logger.Warn("dropped unusable persisted tasks", "dropped", dropped, "kept", len(out))
	}
	return out
}
