package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/evanschultz/tally/internal/adapters/server/common"
	"github.com/evanschultz/tally/internal/adapters/storage/sqlite"
	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
)

// stubTaskService provides deterministic task responses for handler tests.
type stubTaskService struct {
	list       common.TaskList
	task       domain.Task
	undo       common.UndoResult
	check      common.TitleCheck
	metrics    domain.Metrics
	err        error
	lastAdd    common.AddTaskRequest
	lastUpdate common.UpdateTaskRequest
	lastDelete string
	lastGet    string
	lastTitle  string
	lastExcept string
	cleared    bool
}

func (s *stubTaskService) ListTasks(context.Context) (common.TaskList, error) {
	return s.list, s.err
}

func (s *stubTaskService) GetTask(_ context.Context, id string) (domain.Task, error) {
	s.lastGet = id
	return s.task, s.err
}

func (s *stubTaskService) AddTask(_ context.Context, req common.AddTaskRequest) (domain.Task, error) {
	s.lastAdd = req
	return s.task, s.err
}

func (s *stubTaskService) UpdateTask(_ context.Context, req common.UpdateTaskRequest) (domain.Task, error) {
	s.lastUpdate = req
	return s.task, s.err
}

func (s *stubTaskService) DeleteTask(_ context.Context, id string) (domain.Task, error) {
	s.lastDelete = id
	return s.task, s.err
}

func (s *stubTaskService) UndoDelete(context.Context) (common.UndoResult, error) {
	return s.undo, s.err
}

func (s *stubTaskService) ClearLastDeleted(context.Context) error {
	s.cleared = true
	return s.err
}

func (s *stubTaskService) CheckTitle(_ context.Context, title, exceptID string) (common.TitleCheck, error) {
	s.lastTitle = title
	s.lastExcept = exceptID
	return s.check, s.err
}

func (s *stubTaskService) Metrics(context.Context) (domain.Metrics, error) {
	return s.metrics, s.err
}

// serve runs one request through the handler.
func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeEnvelope decodes one structured error envelope.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var out ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return out
}

// TestHandlerListTasksETag verifies list responses carry and honor the state hash.
func TestHandlerListTasksETag(t *testing.T) {
	svc := &stubTaskService{list: common.TaskList{StateHash: "abc123", Metrics: domain.Metrics{AverageROI: 4}}}
	handler := NewHandler(svc)

	rec := serve(handler, http.MethodGet, "/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("ETag"); got != `"abc123"` {
		t.Fatalf("ETag = %q", got)
	}
	var got common.TaskList
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Metrics.AverageROI != 4 {
		t.Fatalf("unexpected list body %#v", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("If-None-Match", `"abc123"`)
	cached := httptest.NewRecorder()
	handler.ServeHTTP(cached, req)
	if cached.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want %d", cached.Code, http.StatusNotModified)
	}
}

// TestHandlerRoutesRequests verifies request mapping for each task endpoint.
func TestHandlerRoutesRequests(t *testing.T) {
	svc := &stubTaskService{
		task:  domain.Task{ID: "t1", Title: "Alpha"},
		undo:  common.UndoResult{Restored: true},
		check: common.TitleCheck{Title: "Alpha", Taken: true},
	}
	handler := NewHandler(svc)

	rec := serve(handler, http.MethodPost, "/tasks", `{"title":"Alpha","revenue":10,"timeTaken":2,"priority":"High"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /tasks status = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.lastAdd.Title != "Alpha" || svc.lastAdd.Revenue == nil || *svc.lastAdd.Revenue != 10 {
		t.Fatalf("unexpected add request %#v", svc.lastAdd)
	}

	rec = serve(handler, http.MethodPatch, "/tasks/t1", `{"status":"Done"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH status = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.lastUpdate.ID != "t1" || svc.lastUpdate.Status == nil || *svc.lastUpdate.Status != "Done" || svc.lastUpdate.Title != nil {
		t.Fatalf("unexpected update request %#v", svc.lastUpdate)
	}

	rec = serve(handler, http.MethodGet, "/tasks/t1", "")
	if rec.Code != http.StatusOK || svc.lastGet != "t1" {
		t.Fatalf("GET /tasks/t1 status = %d, id %q", rec.Code, svc.lastGet)
	}

	rec = serve(handler, http.MethodDelete, "/tasks/t1/", "")
	if rec.Code != http.StatusOK || svc.lastDelete != "t1" {
		t.Fatalf("DELETE status = %d, id %q", rec.Code, svc.lastDelete)
	}

	rec = serve(handler, http.MethodPost, "/undo", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /undo status = %d", rec.Code)
	}

	rec = serve(handler, http.MethodDelete, "/undo", "")
	if rec.Code != http.StatusNoContent || !svc.cleared {
		t.Fatalf("DELETE /undo status = %d, cleared %t", rec.Code, svc.cleared)
	}

	rec = serve(handler, http.MethodGet, "/titles?title=alpha&except_id=t9", "")
	if rec.Code != http.StatusOK || svc.lastTitle != "alpha" || svc.lastExcept != "t9" {
		t.Fatalf("GET /titles status = %d, title %q, except %q", rec.Code, svc.lastTitle, svc.lastExcept)
	}

	rec = serve(handler, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d", rec.Code)
	}
}

// TestHandlerErrorMapping verifies structured status mapping for service errors.
func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid request",
			err:        errors.Join(common.ErrInvalidRequest, errors.New("bad input")),
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "not found",
			err:        errors.Join(common.ErrNotFound, errors.New("missing")),
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "conflict",
			err:        errors.Join(common.ErrConflict, errors.New("dup")),
			wantStatus: http.StatusConflict,
			wantCode:   "conflict",
		},
		{
			name:       "unavailable",
			err:        errors.Join(common.ErrUnavailable, errors.New("loading")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "service_unavailable",
		},
		{
			name:       "internal error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHandler(&stubTaskService{err: tc.err})
			rec := serve(handler, http.MethodDelete, "/tasks/t1", "")
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := decodeEnvelope(t, rec); got.Error.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", got.Error.Code, tc.wantCode)
			}
		})
	}
}

// TestHandlerRejectsMalformedRequests verifies strict body decoding and routing failures.
func TestHandlerRejectsMalformedRequests(t *testing.T) {
	handler := NewHandler(&stubTaskService{})

	cases := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "unknown field", method: http.MethodPost, target: "/tasks", body: `{"title":"x","owner":"me"}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "trailing content", method: http.MethodPost, target: "/tasks", body: `{"title":"x"}{}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "empty body", method: http.MethodPatch, target: "/tasks/t1", body: "", wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "unknown endpoint", method: http.MethodGet, target: "/projects", wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "nested task path", method: http.MethodDelete, target: "/tasks/a/b", wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "method not allowed", method: http.MethodPut, target: "/tasks", wantStatus: http.StatusMethodNotAllowed, wantCode: "method_not_allowed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(handler, tc.method, tc.target, tc.body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := decodeEnvelope(t, rec); got.Error.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", got.Error.Code, tc.wantCode)
			}
		})
	}

	rec := serve(handler, http.MethodPut, "/undo", "")
	if allow := rec.Header().Get("Allow"); allow != "POST, DELETE" {
		t.Fatalf("Allow = %q", allow)
	}
	rec = serve(handler, http.MethodPut, "/tasks/t1", "")
	if allow := rec.Header().Get("Allow"); allow != "GET, PATCH, DELETE" {
		t.Fatalf("Allow = %q", allow)
	}
}

// TestHandlerNilService verifies an unconfigured handler fails closed.
func TestHandlerNilService(t *testing.T) {
	rec := serve(NewHandler(nil), http.MethodGet, "/tasks", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

// TestHandlerEndToEnd verifies the add, delete, undo flow against a real store.
func TestHandlerEndToEnd(t *testing.T) {
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	store := app.NewStore(repo, app.StoreConfig{})
	store.Load(context.Background())
	handler := NewHandler(common.NewAppServiceAdapter(store))

	rec := serve(handler, http.MethodPost, "/tasks", `{"title":"A","revenue":100,"timeTaken":4,"priority":"High"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created domain.Task
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	rec = serve(handler, http.MethodGet, "/tasks/"+created.ID, "")
	var fetched domain.Task
	if err := json.NewDecoder(rec.Body).Decode(&fetched); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if rec.Code != http.StatusOK || fetched.ID != created.ID || fetched.Title != "A" {
		t.Fatalf("GET task status = %d, task %#v", rec.Code, fetched)
	}

	rec = serve(handler, http.MethodGet, "/tasks", "")
	var list common.TaskList
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(list.Tasks) != 1 || list.Tasks[0].ROI != 25 {
		t.Fatalf("unexpected list %#v", list)
	}

	if rec = serve(handler, http.MethodDelete, "/tasks/"+created.ID, ""); rec.Code != http.StatusOK {
		t.Fatalf("DELETE status = %d", rec.Code)
	}
	if rec = serve(handler, http.MethodDelete, "/tasks/"+created.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second DELETE status = %d, want 404", rec.Code)
	}
	if rec = serve(handler, http.MethodGet, "/tasks/"+created.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("GET deleted task status = %d, want 404", rec.Code)
	}

	rec = serve(handler, http.MethodPost, "/undo", "")
	var undo common.UndoResult
	if err := json.NewDecoder(rec.Body).Decode(&undo); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !undo.Restored || undo.Task == nil || undo.Task.ID != created.ID {
		t.Fatalf("unexpected undo result %#v", undo)
	}
	if view := store.Snapshot(); len(view.Tasks) != 1 || view.LastDeleted != nil {
		t.Fatalf("unexpected store view after undo %#v", view)
	}
}
