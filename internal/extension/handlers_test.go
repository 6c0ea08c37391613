package extension

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/kandev/internal/agentclient"
	"github.com/kandev/kandev/internal/common/logger"
	"github.com/kandev/kandev/internal/conversation"
	"github.com/kandev/kandev/internal/llm"
	"github.com/kandev/kandev/internal/logbus"
	"github.com/kandev/kandev/internal/stuck"
	"github.com/kandev/kandev/internal/task"
	ws "github.com/kandev/kandev/internal/wsproto"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json", OutputPath: "stdout"})
	require.NoError(t, err)
	return log
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []*ws.Message
}

func (b *fakeBroadcaster) Broadcast(msg *ws.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
}

func newTestSetup(t *testing.T) (*ws.Dispatcher, *task.Manager, *conversation.Manager, *logbus.Bus) {
	t.Helper()
	log := testLogger(t)
	bus := logbus.NewBus(100, log)
	capture := logbus.NewCapture(bus, "test")
	engine := agentclient.NewMockEngine(log)
	detectorCfg := stuck.DefaultConfig()
	taskMgr := task.NewManager(context.Background(), engine, detectorCfg, 50*time.Millisecond, capture, &fakeBroadcaster{}, log)
	convMgr := conversation.NewManager(nil, llm.NewLocalClarifier(), log)

	d := ws.NewDispatcher()
	Register(d, taskMgr, convMgr, bus, log)
	return d, taskMgr, convMgr, bus
}

func TestStartTaskHandler_Success(t *testing.T) {
	d, taskMgr, _, _ := newTestSetup(t)

	req, err := ws.NewRequest("1", ws.ActionStartTask, map[string]string{"task": "buy shoes"})
	require.NoError(t, err)

	resp, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, resp) // accept-ack is the broadcast task_started notification, not a direct response
	assert.True(t, taskMgr.Status().IsRunning)
}

func TestStartTaskHandler_InvalidPayload(t *testing.T) {
	d, _, _, _ := newTestSetup(t)

	req := &ws.Message{ID: "1", Action: ws.ActionStartTask, Payload: []byte(`not json`)}

	resp, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, ws.MessageTypeError, resp.Type)
}

func TestStartTaskHandler_RejectedEmptyTask(t *testing.T) {
	d, _, _, _ := newTestSetup(t)

	req, err := ws.NewRequest("1", ws.ActionStartTask, map[string]string{"task": ""})
	require.NoError(t, err)

	resp, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, ws.MessageTypeError, resp.Type)
}

func TestUserHelpResponseHandler_NoPendingReturnsError(t *testing.T) {
	d, _, _, _ := newTestSetup(t)

	req, err := ws.NewRequest("1", ws.ActionUserHelpResponse, map[string]string{"response": "try again"})
	require.NoError(t, err)

	resp, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, ws.MessageTypeError, resp.Type)
}

func TestChatMessageHandler_ReturnsAssistantReply(t *testing.T) {
	d, _, _, _ := newTestSetup(t)

	ctx := ws.WithSessionID(context.Background(), "session-1")
	req, err := ws.NewRequest("1", ws.ActionChatMessage, map[string]string{"message": "help me buy a laptop"})
	require.NoError(t, err)

	resp, err := d.Dispatch(ctx, req)
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, "assistant", payload["role"])
	assert.NotEmpty(t, payload["content"])
}

func TestResetConversationHandler_ReturnsGreeting(t *testing.T) {
	d, _, convMgr, _ := newTestSetup(t)

	ctx := ws.WithSessionID(context.Background(), "session-1")
	convMgr.Reset("session-1")

	req, err := ws.NewRequest("1", ws.ActionResetConversation, nil)
	require.NoError(t, err)

	resp, err := d.Dispatch(ctx, req)
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, "assistant", payload["role"])
	assert.NotEmpty(t, payload["content"])
}

func TestExtensionConnect_PushesStatusThenReplaysHistory(t *testing.T) {
	d, _, _, bus := newTestSetup(t)

	bus.Publish(logbus.LogEvent{Timestamp: time.Now(), EventType: logbus.EventLog, Message: "hello"})

	var pushed []*ws.Message
	var mu sync.Mutex
	responder := ws.Responder(func(msg *ws.Message) {
		mu.Lock()
		defer mu.Unlock()
		pushed = append(pushed, msg)
	})

	ctx := ws.WithResponder(context.Background(), responder)
	req, err := ws.NewRequest("1", ws.ActionExtensionConnect, nil)
	require.NoError(t, err)

	resp, err := d.Dispatch(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, resp) // pushed directly via responder, not returned

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(pushed), 2)
	assert.Equal(t, ws.ActionStatus, pushed[0].Action)
	assert.Equal(t, ws.ActionLogEvent, pushed[1].Action)
}

func TestStopPauseResumeHandlers(t *testing.T) {
	d, taskMgr, _, _ := newTestSetup(t)

	startReq, err := ws.NewRequest("1", ws.ActionStartTask, map[string]string{"task": "buy shoes"})
	require.NoError(t, err)
	_, err = d.Dispatch(context.Background(), startReq)
	require.NoError(t, err)
	require.True(t, taskMgr.Status().IsRunning)

	pauseReq, err := ws.NewRequest("2", ws.ActionPauseTask, nil)
	require.NoError(t, err)
	resp, err := d.Dispatch(context.Background(), pauseReq)
	require.NoError(t, err)
	var payload map[string]interface{}
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, true, payload["success"])
	assert.True(t, taskMgr.Status().IsPaused)

	resumeReq, err := ws.NewRequest("3", ws.ActionResumeTask, nil)
	require.NoError(t, err)
	resp, err = d.Dispatch(context.Background(), resumeReq)
	require.NoError(t, err)
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, true, payload["success"])
	assert.False(t, taskMgr.Status().IsPaused)

	stopReq, err := ws.NewRequest("4", ws.ActionStopTask, nil)
	require.NoError(t, err)
	resp, err = d.Dispatch(context.Background(), stopReq)
	require.NoError(t, err)
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, true, payload["success"])
}
