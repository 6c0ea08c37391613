// Package extension wires the /extension namespace's wire actions (spec
// §4.1) to the Task Manager, Conversation Manager, and Event Bus.
package extension

import (
	"context"
	"errors"

	"github.com/kandev/kandev/internal/clarify"
	"github.com/kandev/kandev/internal/common/logger"
	"github.com/kandev/kandev/internal/conversation"
	"github.com/kandev/kandev/internal/logbus"
	"github.com/kandev/kandev/internal/task"
	ws "github.com/kandev/kandev/internal/wsproto"
	"go.uber.org/zap"
)

// ReplayWindow is the number of log events replayed on extension_connect
// (spec §4.1, §4.2: K=50).
const ReplayWindow = 50

// Register binds every /extension action to the dispatcher.
func Register(d *ws.Dispatcher, taskMgr *task.Manager, convMgr *conversation.Manager, bus *logbus.Bus, log *logger.Logger) {
	log = log.WithFields(zap.String("component", "extension_handlers"))

	d.RegisterFunc(ws.ActionExtensionConnect, func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		// status must precede the replayed log_events (spec §4.1, §8
		// invariant ordering), so it is pushed directly rather than
		// returned as the dispatch response.
		responder, ok := ws.ResponderFromContext(ctx)
		status, err := ws.NewResponse(msg.ID, ws.ActionStatus, taskMgr.Status())
		if err != nil {
			return nil, err
		}
		if ok {
			responder(status)
			replayHistory(ctx, bus)
			return nil, nil
		}
		return status, nil
	})

	d.RegisterFunc(ws.ActionGetStatus, func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		return ws.NewResponse(msg.ID, msg.Action, taskMgr.Status())
	})

	d.RegisterFunc(ws.ActionStartTask, startTaskHandler(taskMgr, log))
	d.RegisterFunc(ws.ActionStartClarified, startTaskHandler(taskMgr, log))

	d.RegisterFunc(ws.ActionStopTask, func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		success, message := taskMgr.StopTask()
		return actionResult(msg, success, message)
	})

	d.RegisterFunc(ws.ActionPauseTask, func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		success, message := taskMgr.PauseTask()
		return actionResult(msg, success, message)
	})

	d.RegisterFunc(ws.ActionResumeTask, func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		success, message := taskMgr.ResumeTask()
		return actionResult(msg, success, message)
	})

	d.RegisterFunc(ws.ActionChatMessage, chatHandler(convMgr))

	d.RegisterFunc(ws.ActionResetConversation, func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		sessionID, _ := ws.SessionIDFromContext(ctx)
		greeting := convMgr.Reset(sessionID)
		return ws.NewResponse(msg.ID, ws.ActionConversationReset, map[string]interface{}{
			"role":    greeting.Role,
			"content": greeting.Content,
		})
	})

	d.RegisterFunc(ws.ActionUserHelpResponse, func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		var req struct {
			Response string `json:"response"`
		}
		if err := msg.ParsePayload(&req); err != nil {
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "invalid payload: "+err.Error(), nil)
		}

		if err := taskMgr.RespondToHelp(req.Response); err != nil {
			if errors.Is(err, clarify.ErrNoPendingHelp) {
				return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNoPendingHelp, "no pending help request", nil)
			}
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeInternalError, err.Error(), nil)
		}
		return ws.NewResponse(msg.ID, ws.ActionHelpResponseReceived, map[string]interface{}{"message": "Guidance received."})
	})
}

func startTaskHandler(taskMgr *task.Manager, log *logger.Logger) ws.HandlerFunc {
	return func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		var req task.StartRequest
		if err := msg.ParsePayload(&req); err != nil {
			log.Warn("invalid start_task payload", zap.Error(err))
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "invalid payload: "+err.Error(), nil)
		}

		success, errMessage := taskMgr.StartTask(ctx, req)
		if !success {
			log.Debug("start_task rejected", zap.String("reason", errMessage))
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeValidation, errMessage, nil)
		}
		// The accept-ack is the task_started notification StartTask already
		// broadcast (spec §4.1); task_action_result is reserved for
		// stop/pause/resume, so no direct response is sent here.
		return nil, nil
	}
}

func chatHandler(convMgr *conversation.Manager) ws.HandlerFunc {
	return func(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
		var req struct {
			Message string `json:"message"`
		}
		if err := msg.ParsePayload(&req); err != nil {
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "invalid payload: "+err.Error(), nil)
		}

		sessionID, _ := ws.SessionIDFromContext(ctx)
		reply, intent := convMgr.Chat(ctx, sessionID, req.Message)

		payload := map[string]interface{}{
			"role":    reply.Role,
			"content": reply.Content,
		}
		if intent != nil && intent.IsReady {
			payload["intent"] = intent
		}
		return ws.NewResponse(msg.ID, ws.ActionChatResponse, payload)
	}
}

func actionResult(msg *ws.Message, success bool, message string) (*ws.Message, error) {
	payload := map[string]interface{}{"success": success}
	if success {
		payload["message"] = message
	} else {
		payload["error"] = message
	}
	return ws.NewResponse(msg.ID, ws.ActionTaskActionResult, payload)
}

func replayHistory(ctx context.Context, bus *logbus.Bus) {
	responder, ok := ws.ResponderFromContext(ctx)
	if !ok {
		return
	}
	for _, event := range bus.Replay(ReplayWindow) {
		msg, err := ws.NewNotification(ws.ActionLogEvent, event)
		if err != nil {
			continue
		}
		responder(msg)
	}
}
