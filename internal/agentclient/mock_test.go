package agentclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/kandev/internal/common/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json", OutputPath: "stdout"})
	require.NoError(t, err)
	return log
}

func TestMockEngine_CreateRequiresTask(t *testing.T) {
	engine := NewMockEngine(testLogger(t))

	_, err := engine.Create(context.Background(), CreateParams{})
	assert.Error(t, err)
}

func TestMockAgent_RunWithZeroMaxStepsFinishesImmediately(t *testing.T) {
	engine := NewMockEngine(testLogger(t))

	var doneSuccess bool
	var doneCalled bool
	agent, err := engine.Create(context.Background(), CreateParams{
		Task: "buy shoes",
		DoneCallback: func(ctx context.Context, success bool, errMessage string) {
			doneCalled = true
			doneSuccess = success
		},
	})
	require.NoError(t, err)

	err = agent.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, doneCalled)
	assert.True(t, doneSuccess)
}

func TestMockAgent_StopEndsRunWithoutError(t *testing.T) {
	engine := NewMockEngine(testLogger(t))

	var doneSuccess bool
	var doneErr string
	agent, err := engine.Create(context.Background(), CreateParams{
		Task: "buy shoes",
		DoneCallback: func(ctx context.Context, success bool, errMessage string) {
			doneSuccess = success
			doneErr = errMessage
		},
	})
	require.NoError(t, err)

	agent.Stop()
	err = agent.Run(context.Background(), 5)

	require.NoError(t, err)
	assert.False(t, doneSuccess)
	assert.Equal(t, "stopped", doneErr)
}

func TestMockAgent_ContextCancellationAbandonsRun(t *testing.T) {
	engine := NewMockEngine(testLogger(t))

	var doneErr string
	agent, err := engine.Create(context.Background(), CreateParams{
		Task: "buy shoes",
		DoneCallback: func(ctx context.Context, success bool, errMessage string) {
			doneErr = errMessage
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = agent.Run(ctx, 5)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "abandoned", doneErr)
}

func TestMockAgent_StepCallbackInvokedWithInitialPlan(t *testing.T) {
	engine := NewMockEngine(testLogger(t))

	var steps []StepEvent
	agent, err := engine.Create(context.Background(), CreateParams{
		Task:        "buy shoes",
		InitialPlan: []Action{{Name: "detect_location"}},
		StepCallback: func(ctx context.Context, event StepEvent) {
			steps = append(steps, event)
		},
	})
	require.NoError(t, err)

	err = agent.Run(context.Background(), 1)

	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "detect_location", steps[0].ActionOutput.Name)
	assert.Equal(t, 1, steps[0].StepNumber)
	assert.True(t, steps[0].Success)
	assert.GreaterOrEqual(t, steps[0].Duration, time.Duration(0))
}

func TestMockAgent_PauseBlocksUntilResume(t *testing.T) {
	engine := NewMockEngine(testLogger(t))

	agent, err := engine.Create(context.Background(), CreateParams{
		Task:        "buy shoes",
		InitialPlan: []Action{{Name: "detect_location"}},
	})
	require.NoError(t, err)

	agent.Pause()
	done := make(chan error, 1)
	go func() {
		done <- agent.Run(context.Background(), 1)
	}()

	select {
	case <-done:
		t.Fatal("Run should not complete while paused")
	case <-time.After(100 * time.Millisecond):
	}

	agent.Resume()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not complete after Resume")
	}
}
