package logbus

import "time"

// Capture adapts structured records from the external automation engine
// into canonical LogEvents and publishes them onto the Bus. It is the
// single place that knows how to name the engine's event types.
type Capture struct {
	bus    *Bus
	logger string
}

// NewCapture returns a Capture that publishes through bus, tagging events
// with loggerName (e.g. "agent").
func NewCapture(bus *Bus, loggerName string) *Capture {
	return &Capture{bus: bus, logger: loggerName}
}

func (c *Capture) emit(level Level, eventType EventType, message string, metadata map[string]interface{}) {
	c.bus.Publish(LogEvent{
		Timestamp:  time.Now(),
		Level:      level,
		EventType:  eventType,
		LoggerName: c.logger,
		Message:    message,
		Metadata:   metadata,
	})
}

// Log publishes a plain log line at the given level.
func (c *Capture) Log(level Level, message string, metadata map[string]interface{}) {
	c.emit(level, EventLog, message, metadata)
}

// AgentStart records the beginning of a new task run.
func (c *Capture) AgentStart(task string) {
	c.emit(LevelInfo, EventAgentStart, "Agent started: "+task, map[string]interface{}{"task": task})
}

// AgentStep records one step_callback outcome.
func (c *Capture) AgentStep(stepNumber int, action string, success bool) {
	level := LevelInfo
	if !success {
		level = LevelWarning
	}
	c.emit(level, EventAgentStep, action, map[string]interface{}{
		"step_number": stepNumber,
		"action":      action,
		"success":     success,
	})
}

// AgentAction records a discrete action the engine took.
func (c *Capture) AgentAction(name string, params map[string]interface{}) {
	meta := map[string]interface{}{"action": name}
	for k, v := range params {
		meta[k] = v
	}
	c.emit(LevelInfo, EventAgentAction, "Action: "+name, meta)
}

// AgentResult records an intermediate result emitted by the engine.
func (c *Capture) AgentResult(message string, metadata map[string]interface{}) {
	c.emit(LevelResult, EventAgentResult, message, metadata)
}

// AgentComplete records successful task completion.
func (c *Capture) AgentComplete(task string) {
	c.emit(LevelInfo, EventAgentComplete, "Task completed: "+task, map[string]interface{}{"task": task})
}

// AgentError records an engine runtime error (spec §7 item 4: no automatic
// recovery happens here, only observability).
func (c *Capture) AgentError(message string, metadata map[string]interface{}) {
	c.emit(LevelError, EventAgentError, message, metadata)
}

// AgentPause/AgentResume/AgentStop record lifecycle transitions driven by
// the Task Manager.
func (c *Capture) AgentPause()  { c.emit(LevelInfo, EventAgentPause, "Agent paused", nil) }
func (c *Capture) AgentResume() { c.emit(LevelInfo, EventAgentResume, "Agent resumed", nil) }
func (c *Capture) AgentStop()   { c.emit(LevelInfo, EventAgentStop, "Agent stopped", nil) }

// UserHelpNeeded records the stuck-detector's request for human guidance.
func (c *Capture) UserHelpNeeded(reason, summary string) {
	c.emit(LevelWarning, EventUserHelpNeeded, summary, map[string]interface{}{"reason": reason})
}

// Warning publishes a bare warning-level log line, used for e.g. the
// help-wait timeout notice (spec §7 item 6).
func (c *Capture) Warning(message string) {
	c.emit(LevelWarning, EventLog, message, nil)
}
