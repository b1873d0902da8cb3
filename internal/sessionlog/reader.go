// Package sessionlog parses the append-only JSONL execution logs written by
// agent worker processes into structured, status-annotated session records.
//
// A session file may still be written to by a live worker while it is read.
// The reader never locks, truncates, or rewrites the file; it tolerates a
// partial trailing line and skips malformed lines with a warning.
package sessionlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

var (
	ErrMissingMetadata = errors.New("session log has no metadata line")
	ErrSessionNotFound = errors.New("session not found")
)

// Status is the derived state of a session.
type Status string

const (
	// StatusActive indicates no completion or error marker has been logged;
	// the session is presumed still running.
	StatusActive Status = "active"

	// StatusCompleted indicates the worker logged an explicit completion
	// event (task_complete or shutdown).
	StatusCompleted Status = "completed"

	// StatusError indicates the worker logged an error event. Error takes
	// precedence over completion.
	StatusError Status = "error"
)

// Record is a read-only view of one session log, recomputed from disk on
// every read. Messages preserve file order, which is execution order.
type Record struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime,omitzero"`
	Error     string    `json:"error,omitempty"`
	Messages  []Entry   `json:"messages"`
}

// Reader reads session logs from a directory.
type Reader struct {
	dir    string
	logger *slog.Logger
}

// NewReader creates a Reader over the given session logs directory.
func NewReader(dir string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Reader{dir: dir, logger: logger}
}

// rawLine is the superset of shapes a log line can take: the metadata line
// carries type/session_id/start_time, entry lines carry entry_type/
// timestamp/data.
type rawLine struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	StartTime string          `json:"start_time"`
	EntryType string          `json:"entry_type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Parse reads one session log into a Record. Each line is parsed
// independently; a line that fails to parse is skipped with a warning, never
// fatally, because a live worker may be mid-append. A file without a
// metadata line yields no record and fails with ErrMissingMetadata.
func (r *Reader) Parse(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	record := &Record{
		Status:   StatusActive,
		Messages: []Entry{},
	}

	foundMetadata := false
	sawCompletion := false

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}

		var line rawLine
		if err := json.Unmarshal(text, &line); err != nil {
			r.logger.Warn("skipping malformed log line",
				"path", path, "line", lineNo, "err", err)
			continue
		}

		if line.Type == "metadata" {
			if foundMetadata {
				r.logger.Warn("duplicate metadata line",
					"path", path, "line", lineNo)
				continue
			}

			record.ID = line.SessionID
			record.StartTime = parseTimestamp(line.StartTime)
			foundMetadata = true
			continue
		}

		entry, ok := r.parseEntry(line, path, lineNo)
		if !ok {
			continue
		}

		record.Messages = append(record.Messages, entry)
		record.EndTime = entry.Timestamp

		if entry.Kind == KindSystemEvent {
			switch entry.Event.Type {
			case eventError:
				if record.Status != StatusError {
					record.Status = StatusError
					record.Error = errorText(entry.Event)
				}
			case eventTaskComplete, eventShutdown:
				sawCompletion = true
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if !foundMetadata {
		return nil, ErrMissingMetadata
	}

	// Error beats completed beats active.
	if record.Status != StatusError && sawCompletion {
		record.Status = StatusCompleted
	}

	return record, nil
}

// parseEntry matches the tagged variant keyed by (entry_type, data.type).
// Unrecognized combinations are an explicit case, skipped with a warning
// rather than falling through ad hoc checks.
func (r *Reader) parseEntry(line rawLine, path string, lineNo int) (Entry, bool) {
	entry := Entry{
		Kind:      Kind(line.EntryType),
		Timestamp: parseTimestamp(line.Timestamp),
	}

	switch line.EntryType {
	case "message":
		var msg Message
		if err := json.Unmarshal(line.Data, &msg); err != nil {
			r.logger.Warn("skipping malformed message entry",
				"path", path, "line", lineNo, "err", err)
			return Entry{}, false
		}

		switch msg.Type {
		case "", "message", "tool_call", "tool_result":
		default:
			r.logger.Warn("skipping unrecognized message type",
				"path", path, "line", lineNo, "type", msg.Type)
			return Entry{}, false
		}

		entry.Message = &msg

	case "thinking":
		var thinking Thinking
		if err := json.Unmarshal(line.Data, &thinking); err != nil {
			r.logger.Warn("skipping malformed thinking entry",
				"path", path, "line", lineNo, "err", err)
			return Entry{}, false
		}

		entry.Thinking = &thinking

	case "system_event":
		var event SystemEvent
		if err := json.Unmarshal(line.Data, &event); err != nil {
			r.logger.Warn("skipping malformed system event",
				"path", path, "line", lineNo, "err", err)
			return Entry{}, false
		}

		entry.Event = &event

	case "summary":
		// Final roll-up written at session end. Not part of the transcript.
		return Entry{}, false

	default:
		r.logger.Warn("skipping unrecognized entry type",
			"path", path, "line", lineNo, "entry_type", line.EntryType)
		return Entry{}, false
	}

	return entry, true
}

// List parses every file in the logs directory matching the session naming
// convention and returns the records sorted by start time descending. One
// file failing to parse never aborts the enumeration of the others.
func (r *Reader) List() ([]Record, error) {
	paths, err := filepath.Glob(filepath.Join(r.dir, "session_*.jsonl"))
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(paths))

	for _, path := range paths {
		record, err := r.Parse(path)
		if err != nil {
			r.logger.Warn("skipping unparseable session log",
				"path", path, "err", err)
			continue
		}

		records = append(records, *record)
	}

	slices.SortFunc(records, func(a, b Record) int {
		return b.StartTime.Compare(a.StartTime)
	})

	return records, nil
}

// Get resolves a session by locating a log file whose name contains id. If
// more than one file matches, which one is chosen is unspecified.
func (r *Reader) Get(id string) (*Record, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}

	paths, err := filepath.Glob(filepath.Join(r.dir, "session_*.jsonl"))
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		if !strings.Contains(filepath.Base(path), id) {
			continue
		}

		return r.Parse(path)
	}

	return nil, ErrSessionNotFound
}

// timestampLayouts covers RFC 3339 as well as the timezone-less ISO 8601
// format the worker writes.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}

	return time.Time{}
}

// errorText extracts the human-readable message from an error event's
// details, falling back to the raw details when no message field is present.
func errorText(event *SystemEvent) string {
	var details struct {
		Message string `json:"message"`
	}

	if err := json.Unmarshal(event.Details, &details); err == nil &&
		details.Message != "" {
		return details.Message
	}

	return string(event.Details)
}
