package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectStatus_Idle(t *testing.T) {
	status := projectStatus(StateIdle, "", "", false)

	assert.False(t, status.IsRunning)
	assert.False(t, status.IsPaused)
	assert.False(t, status.HasAgent)
	assert.Nil(t, status.CurrentTask)
	assert.Nil(t, status.CDPEndpoint)
}

func TestProjectStatus_Running(t *testing.T) {
	status := projectStatus(StateRunning, "buy shoes", "ws://cdp", true)

	assert.True(t, status.IsRunning)
	assert.False(t, status.IsPaused)
	assert.True(t, status.HasAgent)
	require.NotNil(t, status.CurrentTask)
	assert.Equal(t, "buy shoes", *status.CurrentTask)
	require.NotNil(t, status.CDPEndpoint)
	assert.Equal(t, "ws://cdp", *status.CDPEndpoint)
}

func TestProjectStatus_AwaitingHelpIsRunningAndPaused(t *testing.T) {
	status := projectStatus(StateAwaitingHelp, "buy shoes", "", true)

	assert.True(t, status.IsRunning)
	assert.True(t, status.IsPaused)
	assert.True(t, status.HasAgent)
	assert.Nil(t, status.CDPEndpoint)
}

func TestProjectStatus_TerminalHasNoAgent(t *testing.T) {
	status := projectStatus(StateTerminal, "", "", false)

	assert.False(t, status.IsRunning)
	assert.False(t, status.HasAgent)
}
