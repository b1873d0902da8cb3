package sessionlog

import (
	"encoding/json"
	"time"
)

// Kind tags the variant carried by an Entry.
type Kind string

const (
	KindMessage     Kind = "message"
	KindThinking    Kind = "thinking"
	KindSystemEvent Kind = "system_event"
)

// Entry is one structured unit within a session log, in file order. Exactly
// one of Message, Thinking, or Event is set, according to Kind.
type Entry struct {
	Kind      Kind         `json:"entry_type"`
	Timestamp time.Time    `json:"timestamp"`
	Message   *Message     `json:"message,omitempty"`
	Thinking  *Thinking    `json:"thinking,omitempty"`
	Event     *SystemEvent `json:"event,omitempty"`
}

// Message is a conversation message logged by the worker. Type distinguishes
// plain messages from tool calls and tool results; the tool fields are only
// set for the latter two.
type Message struct {
	Type      string          `json:"type"`
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`
	ToolID    string          `json:"tool_id,omitempty"`
	HasImage  bool            `json:"has_image,omitempty"`
}

// Thinking is a model thinking block.
type Thinking struct {
	Content   string `json:"content"`
	Signature string `json:"signature,omitempty"`
}

// SystemEvent is an out-of-band event logged by the worker, e.g. error,
// task_complete, shutdown, tool_use.
type SystemEvent struct {
	Type    string          `json:"type"`
	Details json.RawMessage `json:"details,omitempty"`
}

const (
	// eventError marks a failed session; its details carry the message.
	eventError = "error"

	// eventTaskComplete and eventShutdown mark explicit completion.
	eventTaskComplete = "task_complete"
	eventShutdown     = "shutdown"
)
