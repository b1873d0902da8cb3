package sessionlog_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/agentdash/agentdash/internal/sessionlog"
)

const metadataLine = `{"type":"metadata","session_id":"abc-123","start_time":"2025-06-01T10:00:00"}`

func writeSessionFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)

	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("expected not to receive error: got '%v'", err)
	}

	return path
}

func newTestReader(t *testing.T) (*sessionlog.Reader, string) {
	t.Helper()

	dir := t.TempDir()

	return sessionlog.NewReader(dir, nil), dir
}

func TestParse(t *testing.T) {
	t.Run("Test well-formed session", func(t *testing.T) {
		reader, dir := newTestReader(t)

		path := writeSessionFile(t, dir, "session_20250601_abc-123.jsonl",
			metadataLine,
			`{"entry_type":"message","timestamp":"2025-06-01T10:00:01","data":{"type":"message","role":"user","content":"do the thing"}}`,
			`{"entry_type":"thinking","timestamp":"2025-06-01T10:00:02","data":{"content":"considering options"}}`,
			`{"entry_type":"message","timestamp":"2025-06-01T10:00:03","data":{"type":"tool_call","role":"assistant","tool_name":"search","tool_input":{"q":"thing"},"tool_id":"t1"}}`,
			`{"entry_type":"message","timestamp":"2025-06-01T10:00:04","data":{"type":"tool_result","role":"tool","tool_id":"t1","content":"found it"}}`,
			`{"entry_type":"system_event","timestamp":"2025-06-01T10:00:05","data":{"type":"iteration_start","details":{"iteration":2}}}`,
		)

		record, err := reader.Parse(path)
		if err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		if record.ID != "abc-123" {
			t.Errorf("expected id: got '%s', want 'abc-123'", record.ID)
		}

		if record.Status != sessionlog.StatusActive {
			t.Errorf(
				"expected status: got '%s', want '%s'",
				record.Status,
				sessionlog.StatusActive,
			)
		}

		if len(record.Messages) != 5 {
			t.Fatalf("expected 5 entries: got '%d'", len(record.Messages))
		}

		wantKinds := []sessionlog.Kind{
			sessionlog.KindMessage,
			sessionlog.KindThinking,
			sessionlog.KindMessage,
			sessionlog.KindMessage,
			sessionlog.KindSystemEvent,
		}

		for i, want := range wantKinds {
			if got := record.Messages[i].Kind; got != want {
				t.Errorf(
					"expected entry %d kind: got '%s', want '%s'",
					i,
					got,
					want,
				)
			}
		}

		if got := record.Messages[2].Message.ToolName; got != "search" {
			t.Errorf("expected tool name: got '%s', want 'search'", got)
		}

		last := record.Messages[len(record.Messages)-1]
		if !record.EndTime.Equal(last.Timestamp) {
			t.Errorf(
				"expected endTime to match last entry: got '%v', want '%v'",
				record.EndTime,
				last.Timestamp,
			)
		}
	})

	t.Run("Test malformed trailing line is tolerated", func(t *testing.T) {
		reader, dir := newTestReader(t)

		path := writeSessionFile(t, dir, "session_20250601_abc-123.jsonl",
			metadataLine,
			`{"entry_type":"message","timestamp":"2025-06-01T10:00:01","data":{"type":"message","role":"user","content":"hi"}}`,
			`{"entry_type":"message","timestamp":"2025-06-01T10:00:02","data":{"type":"message","role":"assi`,
		)

		record, err := reader.Parse(path)
		if err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		if len(record.Messages) != 1 {
			t.Errorf("expected 1 entry: got '%d'", len(record.Messages))
		}
	})

	t.Run("Test missing metadata fails", func(t *testing.T) {
		reader, dir := newTestReader(t)

		path := writeSessionFile(t, dir, "session_20250601_no-meta.jsonl",
			`{"entry_type":"message","timestamp":"2025-06-01T10:00:01","data":{"type":"message","role":"user","content":"hi"}}`,
		)

		if _, err := reader.Parse(path); !errors.Is(err, sessionlog.ErrMissingMetadata) {
			t.Errorf("expected ErrMissingMetadata: got '%v'", err)
		}
	})

	t.Run("Test error status and message", func(t *testing.T) {
		reader, dir := newTestReader(t)

		path := writeSessionFile(t, dir, "session_20250601_abc-123.jsonl",
			metadataLine,
			`{"entry_type":"system_event","timestamp":"2025-06-01T10:00:01","data":{"type":"error","details":{"message":"boom"}}}`,
		)

		record, err := reader.Parse(path)
		if err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		if record.Status != sessionlog.StatusError {
			t.Errorf(
				"expected status: got '%s', want '%s'",
				record.Status,
				sessionlog.StatusError,
			)
		}

		if record.Error != "boom" {
			t.Errorf("expected error: got '%s', want 'boom'", record.Error)
		}
	})

	t.Run("Test error takes precedence over completion", func(t *testing.T) {
		reader, dir := newTestReader(t)

		path := writeSessionFile(t, dir, "session_20250601_abc-123.jsonl",
			metadataLine,
			`{"entry_type":"system_event","timestamp":"2025-06-01T10:00:01","data":{"type":"error","details":{"message":"first failure"}}}`,
			`{"entry_type":"system_event","timestamp":"2025-06-01T10:00:02","data":{"type":"error","details":{"message":"second failure"}}}`,
			`{"entry_type":"system_event","timestamp":"2025-06-01T10:00:03","data":{"type":"task_complete","details":{}}}`,
		)

		record, err := reader.Parse(path)
		if err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		if record.Status != sessionlog.StatusError {
			t.Errorf(
				"expected status: got '%s', want '%s'",
				record.Status,
				sessionlog.StatusError,
			)
		}

		if record.Error != "first failure" {
			t.Errorf(
				"expected first error to be kept: got '%s'",
				record.Error,
			)
		}
	})

	t.Run("Test completion markers", func(t *testing.T) {
		for _, eventType := range []string{"task_complete", "shutdown"} {
			reader, dir := newTestReader(t)

			path := writeSessionFile(t, dir, "session_20250601_abc-123.jsonl",
				metadataLine,
				`{"entry_type":"system_event","timestamp":"2025-06-01T10:00:01","data":{"type":"`+eventType+`","details":{}}}`,
			)

			record, err := reader.Parse(path)
			if err != nil {
				t.Fatalf("expected not to receive error: got '%v'", err)
			}

			if record.Status != sessionlog.StatusCompleted {
				t.Errorf(
					"expected status for '%s': got '%s', want '%s'",
					eventType,
					record.Status,
					sessionlog.StatusCompleted,
				)
			}
		}
	})

	t.Run("Test summary and unknown entries are not retained", func(t *testing.T) {
		reader, dir := newTestReader(t)

		path := writeSessionFile(t, dir, "session_20250601_abc-123.jsonl",
			metadataLine,
			`{"entry_type":"message","timestamp":"2025-06-01T10:00:01","data":{"type":"message","role":"user","content":"hi"}}`,
			`{"entry_type":"summary","timestamp":"2025-06-01T10:00:02","data":{"message_count":1}}`,
			`{"entry_type":"telemetry","timestamp":"2025-06-01T10:00:03","data":{}}`,
			`{"entry_type":"message","timestamp":"2025-06-01T10:00:04","data":{"type":"resumption","role":"user"}}`,
		)

		record, err := reader.Parse(path)
		if err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		if len(record.Messages) != 1 {
			t.Errorf("expected 1 entry: got '%d'", len(record.Messages))
		}
	})

	t.Run("Test parse is idempotent", func(t *testing.T) {
		reader, dir := newTestReader(t)

		path := writeSessionFile(t, dir, "session_20250601_abc-123.jsonl",
			metadataLine,
			`{"entry_type":"message","timestamp":"2025-06-01T10:00:01","data":{"type":"message","role":"user","content":"hi"}}`,
			`{"entry_type":"system_event","timestamp":"2025-06-01T10:00:02","data":{"type":"task_complete","details":{}}}`,
		)

		first, err := reader.Parse(path)
		if err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		second, err := reader.Parse(path)
		if err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		if !reflect.DeepEqual(first, second) {
			t.Errorf(
				"expected identical records: got '%+v' and '%+v'",
				first,
				second,
			)
		}
	})
}

func TestList(t *testing.T) {
	reader, dir := newTestReader(t)

	writeSessionFile(t, dir, "session_20250601_older.jsonl",
		`{"type":"metadata","session_id":"older","start_time":"2025-06-01T09:00:00"}`,
	)
	writeSessionFile(t, dir, "session_20250601_newer.jsonl",
		`{"type":"metadata","session_id":"newer","start_time":"2025-06-01T11:00:00"}`,
	)

	// A file without metadata must not abort the enumeration of the others.
	writeSessionFile(t, dir, "session_20250601_broken.jsonl",
		`{"entry_type":"message","timestamp":"2025-06-01T10:00:01","data":{"type":"message"}}`,
	)

	// Files outside the naming convention are ignored.
	writeSessionFile(t, dir, "job_xyz.log", "not a session")

	records, err := reader.List()
	if err != nil {
		t.Fatalf("expected not to receive error: got '%v'", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records: got '%d'", len(records))
	}

	if records[0].ID != "newer" || records[1].ID != "older" {
		t.Errorf(
			"expected startTime descending: got '%s', '%s'",
			records[0].ID,
			records[1].ID,
		)
	}
}

func TestGet(t *testing.T) {
	reader, dir := newTestReader(t)

	writeSessionFile(t, dir, "session_20250601_abc-123.jsonl", metadataLine)

	t.Run("Test get by id", func(t *testing.T) {
		record, err := reader.Get("abc-123")
		if err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		if record.ID != "abc-123" {
			t.Errorf("expected id: got '%s', want 'abc-123'", record.ID)
		}
	})

	t.Run("Test get unknown id", func(t *testing.T) {
		if _, err := reader.Get("nope"); !errors.Is(err, sessionlog.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound: got '%v'", err)
		}
	})

	t.Run("Test get empty id", func(t *testing.T) {
		if _, err := reader.Get(""); !errors.Is(err, sessionlog.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound: got '%v'", err)
		}
	})
}

func TestListEmptyDirectory(t *testing.T) {
	reader := sessionlog.NewReader(filepath.Join(t.TempDir(), "missing"), nil)

	records, err := reader.List()
	if err != nil {
		t.Fatalf("expected not to receive error: got '%v'", err)
	}

	if len(records) != 0 {
		t.Errorf("expected no records: got '%d'", len(records))
	}
}
