package httpapi

import (
	stdcontext "context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Paintersrp/tasktide/internal/api"
	"github.com/Paintersrp/tasktide/internal/metrics"
)

func TestNewServerRejectsTypedNilController(t *testing.T) {
	var ctrl api.Controller = (*mockController)(nil)
	_, err := NewServer(Config{Controller: ctrl})
	if err == nil {
		t.Fatalf("expected error when controller is typed nil")
	}
	if !strings.Contains(err.Error(), "mockController") {
		t.Fatalf("expected error to describe typed nil controller, got %v", err)
	}
}

func TestNormalizeAddr(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":           defaultAddr,
		":80":        "127.0.0.1:80",
		"0.0.0.0:80": "0.0.0.0:80",
		"[::]:80":    "[::]:80",
		"host:9000":  "host:9000",
		"[::1]:443":  "[::1]:443",
	}

	for input, expected := range tests {
		t.Run(fmt.Sprintf("%s->%s", input, expected), func(t *testing.T) {
			t.Parallel()
			if got := normalizeAddr(input); got != expected {
				t.Fatalf("normalizeAddr(%q)=%q, want %q", input, got, expected)
			}
		})
	}
}

func TestHandleTasks(t *testing.T) {
	var searched []string
	ctrl := &mockController{
		tasksFn: func(stdcontext.Context) (*api.BoardReport, error) {
			return &api.BoardReport{Tasks: []api.TaskReport{{PID: 7, Name: "notepad.exe", Remaining: "None"}}}, nil
		},
		searchFn: func(_ stdcontext.Context, q string) (*api.BoardReport, error) {
			searched = append(searched, q)
			return &api.BoardReport{Filter: q, Tasks: []api.TaskReport{}}, nil
		},
	}
	server := newTestServer(t, ctrl)

	rec := serve(server, http.MethodGet, "/api/v1/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}
	body := rec.Body.String()
	if got := gjson.Get(body, "tasks.0.name").String(); got != "notepad.exe" {
		t.Fatalf("expected notepad.exe, got %q in %s", got, body)
	}
	if len(searched) != 0 {
		t.Fatalf("plain listing must not search")
	}

	rec = serve(server, http.MethodGet, "/api/v1/tasks?q=+chrome+", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}
	if got := gjson.Get(rec.Body.String(), "filter").String(); got != "chrome" {
		t.Fatalf("expected filter chrome, got %q", got)
	}
	if len(searched) != 1 || searched[0] != "chrome" {
		t.Fatalf("unexpected searches %v", searched)
	}

	rec = serve(server, http.MethodGet, "/api/v1/tasks?q=", "")
	if len(searched) != 2 || searched[1] != "" {
		t.Fatalf("an empty query must clear the filter, got %v", searched)
	}
}

func TestHandleTasksError(t *testing.T) {
	ctrl := &mockController{
		tasksFn: func(stdcontext.Context) (*api.BoardReport, error) {
			return nil, errors.New("boom")
		},
	}
	rec := serve(newTestServer(t, ctrl), http.MethodGet, "/api/v1/tasks", "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if code := gjson.Get(rec.Body.String(), "code").String(); code != "internal_error" {
		t.Fatalf("expected internal_error code, got %q", code)
	}
}

func TestHandleTasksMethodNotAllowed(t *testing.T) {
	rec := serve(newTestServer(t, &mockController{}), http.MethodPost, "/api/v1/tasks", "")

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodGet {
		t.Fatalf("expected Allow header %q, got %q", http.MethodGet, allow)
	}
}

func TestHandleSelect(t *testing.T) {
	ctrl := &mockController{
		selectFn: func(_ stdcontext.Context, pid int32) (*api.BoardReport, error) {
			if pid == 404 {
				return nil, fmt.Errorf("%w: pid %d", api.ErrUnknownTask, pid)
			}
			return &api.BoardReport{Selected: &pid, Tasks: []api.TaskReport{}}, nil
		},
	}
	server := newTestServer(t, ctrl)

	rec := serve(server, http.MethodPost, "/api/v1/tasks/12/select", "")
	if rec.Code != http.StatusOK || gjson.Get(rec.Body.String(), "selected").Int() != 12 {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(server, http.MethodPost, "/api/v1/tasks/404/select", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	body := rec.Body.String()
	if gjson.Get(body, "code").String() != "unknown_task" {
		t.Fatalf("expected unknown_task code: %s", body)
	}
	if gjson.Get(body, "details.pid").Int() != 404 || !gjson.Get(body, "details.timestamp").Exists() {
		t.Fatalf("expected pid and timestamp details: %s", body)
	}
}

func TestHandleInvalidPID(t *testing.T) {
	server := newTestServer(t, &mockController{})
	for _, path := range []string{"/api/v1/tasks/abc/select", "/api/v1/tasks/-3/terminate", "/api/v1/tasks/99999999999/select"} {
		rec := serve(server, http.MethodPost, path, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rec.Code)
		}
		if code := gjson.Get(rec.Body.String(), "code").String(); code != "invalid_pid" {
			t.Fatalf("%s: expected invalid_pid, got %q", path, code)
		}
	}
}

func TestHandleDeadline(t *testing.T) {
	deadline := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
	var cleared []int32
	ctrl := &mockController{
		setDeadlineFn: func(_ stdcontext.Context, pid int32, expr string) (*api.DeadlineResult, error) {
			if expr == "soon" {
				return nil, fmt.Errorf("%w: %q", api.ErrInvalidDeadline, expr)
			}
			return &api.DeadlineResult{PID: pid, Deadline: deadline, Remaining: "30m 0s left"}, nil
		},
		clearDeadlineFn: func(_ stdcontext.Context, pid int32) error {
			cleared = append(cleared, pid)
			return nil
		},
	}
	server := newTestServer(t, ctrl)

	rec := serve(server, http.MethodPut, "/api/v1/tasks/5/deadline", `{"deadline":"30m"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if gjson.Get(body, "pid").Int() != 5 || gjson.Get(body, "remaining").String() != "30m 0s left" {
		t.Fatalf("unexpected body: %s", body)
	}
	if gjson.Get(body, "deadline").String() != "2024-01-01T10:30:00Z" {
		t.Fatalf("unexpected deadline: %s", body)
	}

	rec = serve(server, http.MethodPut, "/api/v1/tasks/5/deadline", `{"deadline":"soon"}`)
	if rec.Code != http.StatusBadRequest || gjson.Get(rec.Body.String(), "code").String() != "invalid_deadline" {
		t.Fatalf("expected invalid_deadline, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(server, http.MethodPut, "/api/v1/tasks/5/deadline", `{"when":"30m"}`)
	if rec.Code != http.StatusBadRequest || gjson.Get(rec.Body.String(), "code").String() != "invalid_request" {
		t.Fatalf("expected invalid_request, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(server, http.MethodDelete, "/api/v1/tasks/5/deadline", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if res := gjson.Get(rec.Body.String(), "deadline"); res.Type != gjson.Null {
		t.Fatalf("expected null deadline, got %s", rec.Body.String())
	}
	if len(cleared) != 1 || cleared[0] != 5 {
		t.Fatalf("unexpected clears %v", cleared)
	}

	rec = serve(server, http.MethodPost, "/api/v1/tasks/5/deadline", "")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "PUT, DELETE" {
		t.Fatalf("expected 405 with Allow PUT, DELETE, got %d %q", rec.Code, rec.Header().Get("Allow"))
	}
}

func TestHandleTerminate(t *testing.T) {
	ctrl := &mockController{
		terminateFn: func(_ stdcontext.Context, pid int32) (*api.TerminateResult, error) {
			if pid == 4 {
				return nil, fmt.Errorf("%w: terminate pid 4", api.ErrAccessDenied)
			}
			return &api.TerminateResult{PID: pid, CompletedAt: time.Unix(0, 0).UTC()}, nil
		},
	}
	server := newTestServer(t, ctrl)

	rec := serve(server, http.MethodPost, "/api/v1/tasks/77/terminate", "")
	if rec.Code != http.StatusOK || gjson.Get(rec.Body.String(), "terminate.pid").Int() != 77 {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(server, http.MethodPost, "/api/v1/tasks/4/terminate", "")
	if rec.Code != http.StatusForbidden || gjson.Get(rec.Body.String(), "code").String() != "access_denied" {
		t.Fatalf("expected access_denied, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleTick(t *testing.T) {
	ctrl := &mockController{
		tickFn: func(stdcontext.Context) (*api.TickResult, error) {
			return &api.TickResult{Terminated: []int32{1, 2}, Failed: []int32{}}, nil
		},
	}
	rec := serve(newTestServer(t, ctrl), http.MethodPost, "/api/v1/tick", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := gjson.Get(rec.Body.String(), "tick.terminated.#").Int(); got != 2 {
		t.Fatalf("expected two terminated pids, got %d", got)
	}
}

func TestClassifyCanceled(t *testing.T) {
	status, code := classifyError(fmt.Errorf("wrapped: %w", stdcontext.Canceled))
	if status != 499 || code != "context_canceled" {
		t.Fatalf("unexpected classification %d %q", status, code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, &mockController{})

	metrics.EmitBuildInfo()
	metrics.ObserveTermination("user", metrics.OutcomeTerminated)

	rec := serve(server, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics endpoint, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `tasktide_terminations_total{outcome="terminated",trigger="user"}`) {
		t.Fatalf("expected termination counter, got:\n%s", body)
	}
	if !strings.Contains(body, "tasktide_build_info{") {
		t.Fatalf("expected metrics output to include build info, got:\n%s", body)
	}
}

func TestMetricsEndpointDisabled(t *testing.T) {
	server, err := NewServer(Config{Controller: &mockController{}, DisableMetrics: true})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if rec := serve(server, http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with metrics disabled, got %d", rec.Code)
	}
}

func TestRunServesUntilCancelled(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctrl := &mockController{
		tasksFn: func(stdcontext.Context) (*api.BoardReport, error) {
			return &api.BoardReport{Tasks: []api.TaskReport{}}, nil
		},
	}
	server, err := NewServer(Config{Controller: ctrl, Listener: listener})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	resp, err := http.Get("http://" + server.Addr() + "/api/v1/tasks")
	if err != nil {
		t.Fatalf("GET tasks: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}

type mockController struct {
	tasksFn         func(stdcontext.Context) (*api.BoardReport, error)
	searchFn        func(stdcontext.Context, string) (*api.BoardReport, error)
	selectFn        func(stdcontext.Context, int32) (*api.BoardReport, error)
	setDeadlineFn   func(stdcontext.Context, int32, string) (*api.DeadlineResult, error)
	clearDeadlineFn func(stdcontext.Context, int32) error
	terminateFn     func(stdcontext.Context, int32) (*api.TerminateResult, error)
	tickFn          func(stdcontext.Context) (*api.TickResult, error)
}

func (m *mockController) Tasks(ctx stdcontext.Context) (*api.BoardReport, error) {
	if m.tasksFn != nil {
		return m.tasksFn(ctx)
	}
	return nil, nil
}

func (m *mockController) Search(ctx stdcontext.Context, q string) (*api.BoardReport, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return nil, nil
}

func (m *mockController) Select(ctx stdcontext.Context, pid int32) (*api.BoardReport, error) {
	if m.selectFn != nil {
		return m.selectFn(ctx, pid)
	}
	return nil, nil
}

func (m *mockController) SetDeadline(ctx stdcontext.Context, pid int32, expr string) (*api.DeadlineResult, error) {
	if m.setDeadlineFn != nil {
		return m.setDeadlineFn(ctx, pid, expr)
	}
	return nil, nil
}

func (m *mockController) ClearDeadline(ctx stdcontext.Context, pid int32) error {
	if m.clearDeadlineFn != nil {
		return m.clearDeadlineFn(ctx, pid)
	}
	return nil
}

func (m *mockController) Terminate(ctx stdcontext.Context, pid int32) (*api.TerminateResult, error) {
	if m.terminateFn != nil {
		return m.terminateFn(ctx, pid)
	}
	return nil, nil
}

func (m *mockController) Tick(ctx stdcontext.Context) (*api.TickResult, error) {
	if m.tickFn != nil {
		return m.tickFn(ctx)
	}
	return nil, nil
}

func newTestServer(t *testing.T, ctrl api.Controller) *Server {
	t.Helper()
	server, err := NewServer(Config{Controller: ctrl})
	if err != nil {
		t.Fatalf("failed creating server: %v", err)
	}
	return server
}

func serve(server *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}
