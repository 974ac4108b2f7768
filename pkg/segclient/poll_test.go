package segclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func sequenceBackend(t *testing.T, replies ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/task_status/") {
			http.NotFound(w, r)
			return
		}
		n := int(calls.Add(1)) - 1
		if n >= len(replies) {
			n = len(replies) - 1
		}
		_, _ = w.Write([]byte(replies[n]))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestWaitForTaskReturnsDoneState(t *testing.T) {
	srv, calls := sequenceBackend(t,
		`{"status":"queued","task_id":"t1"}`,
		`{"status":"processing","task_id":"t1"}`,
		`{"status":"done","result":{"3":"b64"},"frames":{"3":"done"}}`,
	)
	c := New(Options{BaseURL: srv.URL})

	state, err := c.WaitForTask(context.Background(), "t1", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForTask: %v", err)
	}
	if state.Status != StatusDone || state.TaskID != "t1" {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.Frames["3"] != "done" || string(state.Result) != `{"3":"b64"}` {
		t.Fatalf("unexpected result %+v", state)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 polls, got %d", got)
	}
}

func TestWaitForTaskReportsFailure(t *testing.T) {
	srv, _ := sequenceBackend(t, `{"status":"error","result":"Image file does not exist: /v"}`)
	c := New(Options{BaseURL: srv.URL})

	_, err := c.WaitForTask(context.Background(), "t2", 10*time.Millisecond)
	var failed *TaskFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected *TaskFailedError, got %v", err)
	}
	if failed.TaskID != "t2" || !strings.Contains(err.Error(), "Image file does not exist") {
		t.Fatalf("unexpected failure %v", err)
	}
}

func TestWaitForTaskUnknownStatus(t *testing.T) {
	srv, _ := sequenceBackend(t, `{"status":"exploded"}`)
	c := New(Options{BaseURL: srv.URL})

	_, err := c.WaitForTask(context.Background(), "t3", 10*time.Millisecond)
	if !errors.Is(err, ErrUnknownTaskStatus) {
		t.Fatalf("expected ErrUnknownTaskStatus, got %v", err)
	}
}

func TestWaitForTaskHonoursContext(t *testing.T) {
	srv, _ := sequenceBackend(t, `{"status":"queued"}`)
	c := New(Options{BaseURL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	state, err := c.WaitForTask(ctx, "t4", 10*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if state.Status != StatusQueued && state.Status != "" {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestWaitForTaskStopsOnRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"Task ID not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()
	c := New(Options{BaseURL: srv.URL})

	_, err := c.WaitForTask(context.Background(), "missing", 10*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("expected 404 status error, got %v", err)
	}
}

func TestStatusHelpers(t *testing.T) {
	if !StatusDone.Terminal() || !StatusError.Terminal() {
		t.Fatalf("done and error must be terminal")
	}
	if StatusQueued.Terminal() || StatusProcessing.Terminal() {
		t.Fatalf("queued and processing must not be terminal")
	}
	if Status("weird").Known() || !StatusProcessing.Known() {
		t.Fatalf("Known mismatch")
	}
}

func TestDecodeEmptyBody(t *testing.T) {
	if _, err := Decode[TaskTicket](nil); err == nil {
		t.Fatalf("expected error for empty body")
	}
}
