// Package logbus implements the Event Bus and Log Capture adapter: a
// bounded ring buffer of canonical LogEvents with replay-on-connect and
// idempotent ingestion from the external automation engine (spec §4.2).
package logbus

import (
	"encoding/json"
	"fmt"
	"time"
)

// Level is the severity of a LogEvent.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelResult  Level = "result"
)

// EventType classifies a LogEvent (spec §3).
type EventType string

const (
	EventLog             EventType = "log"
	EventAgentStart      EventType = "agent_start"
	EventAgentStep       EventType = "agent_step"
	EventAgentAction     EventType = "agent_action"
	EventAgentResult     EventType = "agent_result"
	EventAgentComplete   EventType = "agent_complete"
	EventAgentError      EventType = "agent_error"
	EventAgentPause      EventType = "agent_pause"
	EventAgentResume     EventType = "agent_resume"
	EventAgentStop       EventType = "agent_stop"
	EventUserHelpNeeded  EventType = "user_help_needed"
)

// LogEvent is one immutable entry in the event stream. Once published its
// fields never change; the wire form is canonical JSON (snake_case,
// ISO-8601 timestamps with millisecond precision).
type LogEvent struct {
	Timestamp  time.Time              `json:"timestamp"`
	Level      Level                  `json:"level"`
	EventType  EventType              `json:"event_type"`
	LoggerName string                 `json:"logger_name"`
	Message    string                 `json:"message"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type wireLogEvent struct {
	Timestamp  string                 `json:"timestamp"`
	Level      Level                  `json:"level"`
	EventType  EventType              `json:"event_type"`
	LoggerName string                 `json:"logger_name"`
	Message    string                 `json:"message"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// MarshalJSON renders the timestamp with millisecond precision as required
// by spec §4.2, and sanitizes metadata so unserializable values never fail
// the marshal (spec §8: coerce to a JSON-string representation or drop the
// field with an annotation, rather than reject the event).
func (e LogEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireLogEvent{
		Timestamp:  e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:      e.Level,
		EventType:  e.EventType,
		LoggerName: e.LoggerName,
		Message:    e.Message,
		Metadata:   sanitizeMetadata(e.Metadata),
	})
}

// sanitizeMetadata ensures every value is JSON-representable. A value that
// fails to marshal on its own is coerced to its string representation
// rather than dropping the whole event.
func sanitizeMetadata(meta map[string]interface{}) map[string]interface{} {
	if meta == nil {
		return nil
	}
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		if _, err := json.Marshal(v); err != nil {
			out[k] = fmt.Sprintf("%v", v)
			continue
		}
		out[k] = v
	}
	return out
}
