// Package ingest implements the hook handler's nine-stage pipeline (spec
// §4.4), invoked once per host-assistant event by cmd/memhook. Grounded on
// the teacher's single-purpose binary shape (formerly cmd/golem) and the
// memory-core plugin's tool-call routing, generalized to the full pipeline.
package ingest

// EventType is the closed set of hook events the host assistant emits.
type EventType string

const (
	EventSessionStart        EventType = "SessionStart"
	EventPreToolUse          EventType = "PreToolUse"
	EventPostToolUse         EventType = "PostToolUse"
	EventPostToolUseFailure  EventType = "PostToolUseFailure"
	EventStop                EventType = "Stop"
	EventSessionEnd          EventType = "SessionEnd"
)

// Event is the JSON document the host writes to the hook's standard input.
// Unknown fields are rejected by validate.DecodeStrict at the decode site,
// not here.
type Event struct {
	EventType EventType              `json:"event_type"`
	SessionID string                 `json:"session_id"`
	ToolName  string                 `json:"tool_name,omitempty"`
	ToolInput map[string]interface{} `json:"tool_input,omitempty"`
	ToolOutput string                `json:"tool_output,omitempty"`
	CWD       string                 `json:"cwd"`
}

// Outcome reports what the pipeline did with one event, for logging and for
// cmd/memhook to decide whether to print session-start context to stdout.
type Outcome struct {
	Stored           bool
	ObservationID    string
	Rejected         bool
	RejectReason     string
	SessionStartText string
}
