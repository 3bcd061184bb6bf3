package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// mockAPI is a hand-rolled mock of the remote assistant service.
type mockAPI struct {
	t *testing.T

	createThreadFunc  func(ctx context.Context, seedText string) (string, error)
	appendMessageFunc func(ctx context.Context, threadID, text string) error
	startRunFunc      func(ctx context.Context, threadID, assistantID string) (string, error)
	runStatusFunc     func(ctx context.Context, threadID, runID string) (string, error)
	latestReplyFunc   func(ctx context.Context, threadID string) (string, error)

	mu               sync.Mutex
	appendCalls      []string
	startRunCalls    int
	runStatusCalls   int
	latestReplyCalls int
}

func (m *mockAPI) CreateThread(ctx context.Context, seedText string) (string, error) {
	if m.createThreadFunc == nil {
		m.t.Fatal("CreateThread called but not configured")
	}
	return m.createThreadFunc(ctx, seedText)
}

func (m *mockAPI) AppendMessage(ctx context.Context, threadID, text string) error {
	m.mu.Lock()
	m.appendCalls = append(m.appendCalls, text)
	m.mu.Unlock()
	if m.appendMessageFunc == nil {
		return nil
	}
	return m.appendMessageFunc(ctx, threadID, text)
}

func (m *mockAPI) StartRun(ctx context.Context, threadID, assistantID string) (string, error) {
	m.mu.Lock()
	m.startRunCalls++
	m.mu.Unlock()
	if m.startRunFunc == nil {
		return "run-1", nil
	}
	return m.startRunFunc(ctx, threadID, assistantID)
}

func (m *mockAPI) RunStatus(ctx context.Context, threadID, runID string) (string, error) {
	m.mu.Lock()
	m.runStatusCalls++
	m.mu.Unlock()
	if m.runStatusFunc == nil {
		return "completed", nil
	}
	return m.runStatusFunc(ctx, threadID, runID)
}

func (m *mockAPI) LatestReply(ctx context.Context, threadID string) (string, error) {
	m.mu.Lock()
	m.latestReplyCalls++
	m.mu.Unlock()
	if m.latestReplyFunc == nil {
		return "hello back", nil
	}
	return m.latestReplyFunc(ctx, threadID)
}

var _ API = (*mockAPI)(nil)

func newTestDriver(api *mockAPI, attempts int) *Driver {
	return NewDriver(api, attempts, time.Millisecond, zap.NewNop())
}

func TestStartNewTurn_CompletedRun(t *testing.T) {
	t.Parallel()

	api := &mockAPI{t: t}
	driver := newTestDriver(api, 10)

	reply, err := driver.StartNewTurn(context.Background(), "thread-1", "asst-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "hello back" {
		t.Errorf("expected reply %q, got %q", "hello back", reply)
	}
	if len(api.appendCalls) != 0 {
		t.Errorf("StartNewTurn must not append a message, got %d appends", len(api.appendCalls))
	}
}

func TestContinueTurn_AppendsBeforeRun(t *testing.T) {
	t.Parallel()

	api := &mockAPI{t: t}
	driver := newTestDriver(api, 10)

	if _, err := driver.ContinueTurn(context.Background(), "thread-1", "asst-1", "hi there"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.appendCalls) != 1 || api.appendCalls[0] != "hi there" {
		t.Errorf("expected one append of %q, got %v", "hi there", api.appendCalls)
	}
	if api.startRunCalls != 1 {
		t.Errorf("expected one run start, got %d", api.startRunCalls)
	}
}

func TestWaitForRun_BoundedPolling(t *testing.T) {
	t.Parallel()

	api := &mockAPI{t: t}
	api.runStatusFunc = func(ctx context.Context, threadID, runID string) (string, error) {
		return "in_progress", nil
	}
	driver := newTestDriver(api, 10)

	reply, err := driver.StartNewTurn(context.Background(), "thread-1", "asst-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The driver proceeds after exhausting its budget, never waits forever.
	if api.runStatusCalls != 10 {
		t.Errorf("expected exactly 10 status queries, got %d", api.runStatusCalls)
	}
	if reply != "hello back" {
		t.Errorf("expected reply despite active run, got %q", reply)
	}
}

func TestWaitForRun_StopsOnTerminalStatus(t *testing.T) {
	t.Parallel()

	statuses := []string{"queued", "in_progress", "completed"}
	api := &mockAPI{t: t}
	api.runStatusFunc = func(ctx context.Context, threadID, runID string) (string, error) {
		api.mu.Lock()
		n := api.runStatusCalls
		api.mu.Unlock()
		return statuses[n-1], nil
	}
	driver := newTestDriver(api, 10)

	if _, err := driver.StartNewTurn(context.Background(), "thread-1", "asst-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.runStatusCalls != 3 {
		t.Errorf("expected 3 status queries, got %d", api.runStatusCalls)
	}
}

func TestWaitForRun_StatusErrorSurfaces(t *testing.T) {
	t.Parallel()

	api := &mockAPI{t: t}
	api.runStatusFunc = func(ctx context.Context, threadID, runID string) (string, error) {
		return "", ErrRemoteCall
	}
	driver := newTestDriver(api, 10)

	_, err := driver.StartNewTurn(context.Background(), "thread-1", "asst-1")
	if !errors.Is(err, ErrRemoteCall) {
		t.Fatalf("expected ErrRemoteCall, got %v", err)
	}
	if api.latestReplyCalls != 0 {
		t.Errorf("reply must not be fetched after a status error, got %d fetches", api.latestReplyCalls)
	}
}

func TestRunAndFetch_NoReplySentinel(t *testing.T) {
	t.Parallel()

	api := &mockAPI{t: t}
	api.latestReplyFunc = func(ctx context.Context, threadID string) (string, error) {
		return "", nil
	}
	driver := newTestDriver(api, 10)

	reply, err := driver.StartNewTurn(context.Background(), "thread-1", "asst-1")
	if err != nil {
		t.Fatalf("an empty thread is not an error, got %v", err)
	}
	if reply != NoReplySentinel {
		t.Errorf("expected sentinel %q, got %q", NoReplySentinel, reply)
	}
}

func TestContinueTurn_AppendErrorPropagates(t *testing.T) {
	t.Parallel()

	api := &mockAPI{t: t}
	api.appendMessageFunc = func(ctx context.Context, threadID, text string) error {
		return ErrRemoteCall
	}
	driver := newTestDriver(api, 10)

	_, err := driver.ContinueTurn(context.Background(), "thread-1", "asst-1", "hi")
	if !errors.Is(err, ErrRemoteCall) {
		t.Fatalf("expected ErrRemoteCall, got %v", err)
	}
	if api.startRunCalls != 0 {
		t.Errorf("run must not start after a failed append, got %d starts", api.startRunCalls)
	}
	if !strings.Contains(err.Error(), "thread-1") {
		t.Errorf("error should name the thread, got %q", err)
	}
}
