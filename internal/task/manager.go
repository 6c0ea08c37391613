// Package task implements the Task Manager: the single process-global
// task slot and its state machine (spec §4.3).
package task

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kandev/kandev/internal/agentclient"
	"github.com/kandev/kandev/internal/agentclient/tools"
	"github.com/kandev/kandev/internal/clarify"
	"github.com/kandev/kandev/internal/common/logger"
	"github.com/kandev/kandev/internal/logbus"
	"github.com/kandev/kandev/internal/stuck"
	ws "github.com/kandev/kandev/internal/wsproto"
	"go.uber.org/zap"
)

// abandonTimeout is the hard stop_task cancellation ceiling (spec §5
// "Cancellation semantics": 2 minutes).
const abandonTimeout = 2 * time.Minute

// Broadcaster is the narrow fan-out contract the Task Manager needs from
// the gateway; satisfied by *gateway.Registry.
type Broadcaster interface {
	Broadcast(msg *ws.Message)
}

// StartRequest is the payload shape shared by start_task and
// start_clarified_task (spec §4.1).
type StartRequest struct {
	Task        string `json:"task"`
	CDPEndpoint string `json:"cdp_endpoint,omitempty"`
	IsExtension bool   `json:"is_extension,omitempty"`
}

// Manager owns the single active task and its state machine. It runs
// the engine against its own long-lived context, not the context of
// whichever client request happened to start the task, since tasks
// survive client disconnection (spec §5).
type Manager struct {
	mu    sync.Mutex
	state State

	currentTask string
	cdpEndpoint string
	agent       agentclient.Agent

	ctx      context.Context
	engine   agentclient.Engine
	detector *stuck.Detector
	help     *clarify.Store
	capture  *logbus.Capture
	bus      Broadcaster
	logger   *logger.Logger
}

// NewManager creates an IDLE Task Manager. ctx is the server's root
// context; it bounds the lifetime of the engine, not any single request.
func NewManager(ctx context.Context, engine agentclient.Engine, detectorCfg stuck.Config, helpTimeout time.Duration, capture *logbus.Capture, bus Broadcaster, log *logger.Logger) *Manager {
	return &Manager{
		state:    StateIdle,
		ctx:      ctx,
		engine:   engine,
		detector: stuck.NewDetector(detectorCfg),
		help:     clarify.NewStore(helpTimeout),
		capture:  capture,
		bus:      bus,
		logger:   log.WithFields(zap.String("component", "task_manager")),
	}
}

// Status returns the current authoritative projection.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return projectStatus(m.state, m.currentTask, m.cdpEndpoint, m.currentTask != "")
}

func (m *Manager) broadcastStatus() {
	msg, err := ws.NewNotification(ws.ActionStatus, m.Status())
	if err != nil {
		m.logger.Error("failed to build status notification", zap.Error(err))
		return
	}
	m.bus.Broadcast(msg)
}

func (m *Manager) broadcast(action string, payload interface{}) {
	msg, err := ws.NewNotification(action, payload)
	if err != nil {
		m.logger.Error("failed to build notification", zap.String("action", action), zap.Error(err))
		return
	}
	m.bus.Broadcast(msg)
}

// StartTask validates and accepts a start_task/start_clarified_task
// request (spec §4.3 "Start-task validation"). The incoming ctx only
// bounds the validation call itself; the engine runs against the
// Manager's own root context so the task outlives this request.
func (m *Manager) StartTask(ctx context.Context, req StartRequest) (success bool, errMessage string) {
	m.mu.Lock()

	task := strings.TrimSpace(req.Task)
	if task == "" {
		m.mu.Unlock()
		return false, "task is required"
	}
	if req.IsExtension && req.CDPEndpoint == "" {
		m.mu.Unlock()
		return false, "cdp_endpoint is required for extension tasks"
	}
	if m.state != StateIdle && m.state != StateTerminal {
		m.mu.Unlock()
		return false, fmt.Sprintf("cannot start task in state %s", m.state)
	}

	m.state = StateStarting
	m.currentTask = task
	m.cdpEndpoint = req.CDPEndpoint
	m.detector.Reset()
	m.mu.Unlock()

	m.broadcast(ws.ActionTaskStarted, map[string]interface{}{"message": "Task is starting..."})

	plan := buildInitialPlan(task)

	agent, err := m.engine.Create(m.ctx, agentclient.CreateParams{
		Task:         task,
		CDPEndpoint:  req.CDPEndpoint,
		InitialPlan:  plan,
		StepCallback: m.onStep,
		DoneCallback: m.onDone,
	})
	if err != nil {
		m.mu.Lock()
		m.state = StateTerminal
		m.mu.Unlock()
		m.capture.AgentError(err.Error(), nil)
		m.broadcast(ws.ActionTaskResult, map[string]interface{}{
			"task":    task,
			"success": false,
			"error":   err.Error(),
		})
		m.broadcastStatus()
		return true, "" // accepted; failure surfaces via task_result per spec §7 item 3
	}

	m.mu.Lock()
	m.agent = agent
	m.state = StateRunning
	m.mu.Unlock()

	m.broadcastStatus()
	m.capture.AgentStart(task)

	go m.runAgent(m.ctx, agent)

	return true, ""
}

// buildInitialPlan implements shopping task auto-injection (spec §4.3).
func buildInitialPlan(task string) []agentclient.Action {
	if !tools.IsShoppingTask(task) {
		return nil
	}
	plan := tools.ShoppingPlan(task)
	actions := make([]agentclient.Action, len(plan))
	for i, a := range plan {
		actions[i] = agentclient.Action{Name: a.Name, Params: a.Params}
	}
	return actions
}

func (m *Manager) runAgent(ctx context.Context, agent agentclient.Agent) {
	if err := agent.Run(ctx, 1000); err != nil {
		m.logger.Warn("agent run ended with error", zap.Error(err))
	}
}

// onStep is the engine's synchronous step callback; it records the step
// to the Stuck Detector and may transition RUNNING -> AWAITING_HELP.
func (m *Manager) onStep(ctx context.Context, event agentclient.StepEvent) {
	m.capture.AgentStep(event.StepNumber, event.ActionOutput.Name, event.Success)

	report := m.detector.Record(stuck.ActionRecord{
		ActionName:   event.ActionOutput.Name,
		Timestamp:    event.Timestamp,
		Duration:     event.Duration,
		Success:      event.Success,
		ErrorMessage: event.ErrorMessage,
		StepNumber:   event.StepNumber,
	})

	if !report.IsStuck {
		return
	}

	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return
	}
	m.state = StateAwaitingHelp
	agent := m.agent
	m.mu.Unlock()

	agent.Pause()
	m.capture.UserHelpNeeded(string(report.Reason), report.Summary)
	m.broadcastStatus()

	req := &clarify.Request{
		Reason:           string(report.Reason),
		Summary:          report.Summary,
		AttemptedActions: report.AttemptedActions,
		DurationSeconds:  report.DurationSeconds,
		Suggestion:       report.Suggestion,
	}
	pendingID := m.help.Open(req)

	m.broadcast(ws.ActionAgentNeedsHelp, map[string]interface{}{
		"reason":            report.Reason,
		"summary":           report.Summary,
		"attempted_actions": report.AttemptedActions,
		"duration_seconds":  report.DurationSeconds,
		"suggestion":        report.Suggestion,
	})

	go m.awaitGuidance(ctx, pendingID, agent)
}

// awaitGuidance blocks on the single-slot rendezvous and resumes the
// engine whether or not guidance arrived (spec §4.3, §7 item 6).
func (m *Manager) awaitGuidance(ctx context.Context, pendingID string, agent agentclient.Agent) {
	resp, err := m.help.Wait(ctx, pendingID)
	if err != nil {
		return
	}

	if resp.TimedOut {
		m.logger.Warn("help wait timed out, resuming without guidance")
		m.capture.Warning("help wait timed out")
	} else {
		agent.SubmitGuidance(resp.Guidance)
	}

	m.mu.Lock()
	if m.state == StateAwaitingHelp {
		m.state = StateRunning
	}
	m.mu.Unlock()

	agent.Resume()
	m.broadcastStatus()
}

// RespondToHelp resolves the single pending help wait with user guidance
// (spec §4.1 user_help_response).
func (m *Manager) RespondToHelp(guidance string) error {
	if err := m.help.Respond(guidance); err != nil {
		return err
	}
	m.broadcast(ws.ActionHelpResponseReceived, map[string]interface{}{"message": "Guidance received."})
	return nil
}

// onDone is invoked exactly once when the engine reaches a terminal
// state.
func (m *Manager) onDone(ctx context.Context, success bool, errMessage string) {
	m.mu.Lock()
	task := m.currentTask
	m.state = StateTerminal
	m.agent = nil
	m.currentTask = ""
	m.cdpEndpoint = ""
	m.mu.Unlock()

	if success {
		m.capture.AgentComplete(task)
	} else {
		m.capture.AgentError(errMessage, nil)
	}

	payload := map[string]interface{}{"task": task, "success": success}
	if errMessage != "" {
		payload["error"] = errMessage
	}
	m.broadcast(ws.ActionTaskResult, payload)
	m.broadcastStatus()
}

// StopTask transitions RUNNING/PAUSED/AWAITING_HELP to STOPPING,
// cooperatively cancelling the agent. Idempotent once in
// STOPPING/TERMINAL (spec §8 round-trip law).
func (m *Manager) StopTask() (success bool, message string) {
	m.mu.Lock()
	state := m.state
	agent := m.agent
	m.mu.Unlock()

	switch state {
	case StateStopping, StateTerminal, StateIdle:
		return true, "Task already stopped."
	}

	m.mu.Lock()
	m.state = StateStopping
	m.mu.Unlock()

	agent.Stop()
	m.capture.AgentStop()
	m.broadcastStatus()

	go m.enforceAbandonTimeout()

	return true, "Task stopping."
}

// enforceAbandonTimeout forces TERMINAL if the engine never honors
// stop_task within the hard cancellation ceiling (spec §5).
func (m *Manager) enforceAbandonTimeout() {
	time.Sleep(abandonTimeout)

	m.mu.Lock()
	stillStopping := m.state == StateStopping
	m.mu.Unlock()

	if !stillStopping {
		return
	}
	m.onDone(m.ctx, false, "abandoned")
}

// PauseTask transitions RUNNING -> PAUSED.
func (m *Manager) PauseTask() (success bool, message string) {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return false, "not running"
	}
	m.state = StatePaused
	agent := m.agent
	m.mu.Unlock()

	agent.Pause()
	m.broadcastStatus()
	return true, "Task paused."
}

// ResumeTask transitions PAUSED -> RUNNING.
func (m *Manager) ResumeTask() (success bool, message string) {
	m.mu.Lock()
	if m.state != StatePaused {
		m.mu.Unlock()
		return false, "not paused"
	}
	m.state = StateRunning
	agent := m.agent
	m.mu.Unlock()

	agent.Resume()
	m.broadcastStatus()
	return true, "Task resumed."
}
