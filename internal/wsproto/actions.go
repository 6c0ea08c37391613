package wsproto

// Action constants for the /extension namespace WebSocket protocol.
// Names mirror the wire event names from the spec (snake_case), not the
// dotted action style the teacher used for its board/task CRUD surface,
// since these are what a real client sends on the wire.
const (
	// Client -> server
	ActionExtensionConnect  = "extension_connect"
	ActionGetStatus         = "get_status"
	ActionStartTask         = "start_task"
	ActionStartClarified    = "start_clarified_task"
	ActionStopTask          = "stop_task"
	ActionPauseTask         = "pause_task"
	ActionResumeTask        = "resume_task"
	ActionChatMessage       = "chat_message"
	ActionResetConversation = "reset_conversation"
	ActionUserHelpResponse  = "user_help_response"

	// Server -> client (notifications)
	ActionStatus               = "status"
	ActionLogEvent             = "log_event"
	ActionTaskStarted          = "task_started"
	ActionTaskActionResult     = "task_action_result"
	ActionTaskResult           = "task_result"
	ActionChatResponse         = "chat_response"
	ActionConversationReset    = "conversation_reset"
	ActionAgentNeedsHelp       = "agent_needs_help"
	ActionHelpResponseReceived = "help_response_received"
	ActionErrorEvent           = "error"

	// Health
	ActionHealthCheck = "health.check"
)

// Error codes for protocol-level errors (spec §7 item 1).
const (
	ErrorCodeBadRequest    = "BAD_REQUEST"
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeInternalError = "INTERNAL_ERROR"
	ErrorCodeUnknownAction = "UNKNOWN_ACTION"
	ErrorCodeNoPendingHelp = "NO_PENDING_HELP"
)
