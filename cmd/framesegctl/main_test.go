package main

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Adda-Baaj/frameseg/internal/stubserver"
	"github.com/Adda-Baaj/frameseg/pkg/segclient"
)

func setupBackend(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	stub := stubserver.New(stubserver.Options{AutoComplete: true})
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	t.Setenv("BACKEND_URL", srv.URL)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("POLL_INTERVAL_MS", "10")
	t.Setenv("JOURNAL_TYPE", "bbolt")
	t.Setenv("JOURNAL_PATH", filepath.Join(t.TempDir(), "tasks.db"))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRunUsageErrors(t *testing.T) {
	cases := [][]string{
		nil,
		{"explode"},
	}
	for _, args := range cases {
		if err := run(args, &bytes.Buffer{}); !errors.Is(err, errUsage) {
			t.Fatalf("run(%v): expected usage error, got %v", args, err)
		}
	}
}

func TestRunCommandArgumentErrors(t *testing.T) {
	setupBackend(t)

	cases := [][]string{
		{"status"},
		{"status", "a", "b"},
		{"segment"},
		{"frame-url", "--folder", "/x"},
		{"scan", "--bogus"},
	}
	for _, args := range cases {
		if err := run(args, &bytes.Buffer{}); !errors.Is(err, errUsage) {
			t.Fatalf("run(%v): expected usage error, got %v", args, err)
		}
	}
}

func TestRunScanPrintsBody(t *testing.T) {
	setupBackend(t)
	frames := t.TempDir()
	writeFile(t, frames, "0001.jpg", "x")

	var out bytes.Buffer
	if err := run([]string{"scan", frames}, &out); err != nil {
		t.Fatalf("scan: %v", err)
	}
	res, err := segclient.Decode[segclient.ScanResult]([]byte(strings.TrimSpace(out.String())))
	if err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if res.FrameCount != 1 || res.Frames[0].Filename != "0001.jpg" {
		t.Fatalf("unexpected scan result %+v", res)
	}
}

func TestRunFrameURL(t *testing.T) {
	setupBackend(t)

	var out bytes.Buffer
	if err := run([]string{"frame-url", "--folder", "a b/c", "--file", "d&e.png"}, &out); err != nil {
		t.Fatalf("frame-url: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out.String()), "/frame_image?folder_path=a%20b%2Fc&filename=d%26e.png") {
		t.Fatalf("unexpected url %q", out.String())
	}
}

func TestRunSegmentWatchAndList(t *testing.T) {
	setupBackend(t)
	payload := writeFile(t, t.TempDir(), "req.yaml", "video_path: /videos/a\nfilename: 0001.jpg\nframe_idx: 0\n")

	var out bytes.Buffer
	if err := run([]string{"segment", "--file", payload}, &out); err != nil {
		t.Fatalf("segment: %v", err)
	}
	ticket, err := segclient.Decode[segclient.TaskTicket]([]byte(strings.TrimSpace(out.String())))
	if err != nil {
		t.Fatalf("decode ticket %q: %v", out.String(), err)
	}
	if ticket.TaskID == "" {
		t.Fatalf("expected task id in %q", out.String())
	}

	out.Reset()
	if err := run([]string{"watch", ticket.TaskID, "--timeout", "5s"}, &out); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !strings.Contains(out.String(), `"status": "done"`) {
		t.Fatalf("expected done state, got %q", out.String())
	}

	out.Reset()
	if err := run([]string{"tasks"}, &out); err != nil {
		t.Fatalf("tasks: %v", err)
	}
	line := strings.TrimSpace(out.String())
	if !strings.HasPrefix(line, ticket.TaskID+"\tsegment_frame\tdone\t") {
		t.Fatalf("unexpected task listing %q", line)
	}
}

func TestRunStatusUnknownTask(t *testing.T) {
	setupBackend(t)

	err := run([]string{"status", "missing"}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for unknown task")
	}
	if errors.Is(err, errUsage) {
		t.Fatalf("expected backend error, got usage error %v", err)
	}
}

func TestRunDevelopmentDefaultsNeedBackendURL(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	t.Setenv("APP_ENV", "development")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("JOURNAL_TYPE", "none")

	err := run([]string{"scan", "--folder", t.TempDir()}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected an error without a reachable backend url")
	}
	if errors.Is(err, errUsage) || !strings.Contains(err.Error(), "BACKEND_URL") {
		t.Fatalf("expected a hint to set BACKEND_URL, got %v", err)
	}
}
