package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func runCommand(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()

	c := newCLI()
	command := c.rootCmd()

	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(&out)
	command.SetArgs(append(args, "--server-url", serverURL))

	err := command.Execute()

	return out.String(), err
}

func TestCLI(t *testing.T) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /jobs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"job-1","status":"running","createdAt":"2025-06-01T10:00:00Z","pid":123}]`))
	})

	mux.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "job-1" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"job not found"}`))
			return
		}

		w.Write([]byte(`{"id":"job-1","status":"failed","createdAt":"2025-06-01T10:00:00Z","error":"exit status 1"}`))
	})

	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"sess-1","status":"completed","startTime":"2025-06-01T10:00:00Z","messages":[]}]`))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	t.Run("Test list output", func(t *testing.T) {
		out, err := runCommand(t, ts.URL, "list")
		if err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		if !strings.Contains(out, "job-1") || !strings.Contains(out, "running") {
			t.Errorf("expected job row in output: got '%s'", out)
		}
	})

	t.Run("Test status output includes error", func(t *testing.T) {
		out, err := runCommand(t, ts.URL, "status", "job-1")
		if err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		if !strings.Contains(out, "exit status 1") {
			t.Errorf("expected error column in output: got '%s'", out)
		}
	})

	t.Run("Test server error is surfaced", func(t *testing.T) {
		_, err := runCommand(t, ts.URL, "status", "unknown")
		if err == nil || !strings.Contains(err.Error(), "job not found") {
			t.Errorf("expected 'job not found' error: got '%v'", err)
		}
	})

	t.Run("Test sessions output", func(t *testing.T) {
		out, err := runCommand(t, ts.URL, "sessions")
		if err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		if !strings.Contains(out, "sess-1") || !strings.Contains(out, "completed") {
			t.Errorf("expected session row in output: got '%s'", out)
		}
	})
}
