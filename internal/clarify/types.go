// Package clarify implements the Task Manager's AWAITING_HELP side channel:
// a single-slot rendezvous between a paused agent asking for human guidance
// and the one user_help_response that resolves it.
package clarify

import "time"

// Request describes why the agent paused and what it showed the user.
// It is the same information carried on the agent_needs_help wire event.
type Request struct {
	PendingID        string    `json:"pending_id"`
	Reason           string    `json:"reason"`
	Summary          string    `json:"summary"`
	AttemptedActions []string  `json:"attempted_actions"`
	DurationSeconds  float64   `json:"duration_seconds"`
	Suggestion       string    `json:"suggestion"`
	CreatedAt        time.Time `json:"created_at"`
}

// Response is the user's guidance, or a marker that the wait resolved
// without one (explicit timeout).
type Response struct {
	PendingID   string    `json:"pending_id"`
	Guidance    string    `json:"guidance"`
	TimedOut    bool      `json:"timed_out"`
	RespondedAt time.Time `json:"responded_at"`
}

// pendingWait is the single in-flight slot.
type pendingWait struct {
	request    *Request
	responseCh chan *Response
	createdAt  time.Time
}
