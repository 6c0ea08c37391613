// Package agentclient defines the Task Manager's boundary with the
// external AI-driven browser-automation engine (spec §4.3 "External
// engine contract").
package agentclient

import (
	"context"
	"time"
)

// State is the engine-reported status carried on each step callback.
type State string

const (
	StateRunning    State = "running"
	StatePaused     State = "paused"
	StateTerminated State = "terminated"
	StateFailed     State = "failed"
)

// Action is a tagged variant describing one step the engine took or is
// about to take. Custom carries engine-defined extensions the Task
// Manager never inspects beyond forwarding (spec §9 design notes).
type Action struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// StepEvent is what the engine hands back on every step_callback.
type StepEvent struct {
	State        State
	ActionOutput Action
	StepNumber   int
	Success      bool
	ErrorMessage string
	Duration     time.Duration
	Timestamp    time.Time
}

// StepCallback is invoked by the engine after every step.
type StepCallback func(ctx context.Context, event StepEvent)

// DoneCallback is invoked exactly once when the engine reaches a
// terminal state.
type DoneCallback func(ctx context.Context, success bool, errMessage string)

// CreateParams are the inputs to building a new Agent.
type CreateParams struct {
	Task         string
	CDPEndpoint  string
	InitialPlan  []Action
	StepCallback StepCallback
	DoneCallback DoneCallback
}

// Agent is the minimal command surface the Task Manager drives. All
// methods are idempotent request intents honored at the engine's next
// step boundary (spec §4.3).
type Agent interface {
	Run(ctx context.Context, maxSteps int) error
	Pause()
	Resume()
	Stop()
	// SubmitGuidance forwards human guidance gathered during AWAITING_HELP
	// to the engine's next step (spec §4.3 "forward guidance ... via a
	// side channel").
	SubmitGuidance(text string)
}

// Engine builds Agents. Swappable so a real browser-automation engine and
// the local development Engine implement the same boundary.
type Engine interface {
	Create(ctx context.Context, params CreateParams) (Agent, error)
}
