package agentclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kandev/kandev/internal/common/logger"
	"go.uber.org/zap"
)

// MockEngine is the development/test Engine: it executes the initial
// plan and a handful of synthesized steps without touching a real
// browser, so the full Task Manager / Stuck Detector / Conversation
// Manager wiring can be exercised without a running automation engine.
type MockEngine struct {
	log *logger.Logger
}

// NewMockEngine creates a MockEngine.
func NewMockEngine(log *logger.Logger) *MockEngine {
	return &MockEngine{log: log.WithFields(zap.String("component", "mock_engine"))}
}

func (e *MockEngine) Create(ctx context.Context, params CreateParams) (Agent, error) {
	if params.Task == "" {
		return nil, fmt.Errorf("agentclient: task is required")
	}
	return &mockAgent{
		params: params,
		log:    e.log,
	}, nil
}

type mockAgentState int

const (
	mockRunning mockAgentState = iota
	mockPaused
	mockStopped
)

// mockAgent walks its initial plan plus three synthesized steps (navigate,
// extract_content, verify_result),
// honoring pause/resume/stop at each step boundary the way a real engine
// is contracted to (spec §4.3).
type mockAgent struct {
	params CreateParams
	log    *logger.Logger

	mu       sync.Mutex
	state    mockAgentState
	guidance string
}

// stepDelay simulates the time a real browser-automation step would take.
const stepDelay = 200 * time.Millisecond

func (a *mockAgent) Run(ctx context.Context, maxSteps int) error {
	plan := append([]Action{}, a.params.InitialPlan...)
	plan = append(plan, Action{Name: "navigate"}, Action{Name: "extract_content"}, Action{Name: "verify_result"})
	if len(plan) > maxSteps {
		plan = plan[:maxSteps]
	}

	stepNum := 0
	for _, action := range plan {
		stepNum++

		if err := a.awaitNotPaused(ctx); err != nil {
			a.finish(ctx, false, "abandoned")
			return err
		}
		a.mu.Lock()
		stopped := a.state == mockStopped
		a.mu.Unlock()
		if stopped {
			a.finish(ctx, false, "stopped")
			return nil
		}

		stepStart := time.Now()
		select {
		case <-ctx.Done():
			a.finish(ctx, false, "abandoned")
			return ctx.Err()
		case <-time.After(stepDelay):
		}

		event := StepEvent{
			State:        StateRunning,
			ActionOutput: action,
			StepNumber:   stepNum,
			Success:      true,
			Duration:     time.Since(stepStart),
			Timestamp:    time.Now(),
		}
		if a.params.StepCallback != nil {
			a.params.StepCallback(ctx, event)
		}
	}

	a.finish(ctx, true, "")
	return nil
}

func (a *mockAgent) awaitNotPaused(ctx context.Context) error {
	for {
		a.mu.Lock()
		paused := a.state == mockPaused
		a.mu.Unlock()
		if !paused {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (a *mockAgent) finish(ctx context.Context, success bool, errMsg string) {
	if a.params.DoneCallback != nil {
		a.params.DoneCallback(ctx, success, errMsg)
	}
}

func (a *mockAgent) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == mockRunning {
		a.state = mockPaused
	}
}

func (a *mockAgent) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == mockPaused {
		a.state = mockRunning
	}
}

func (a *mockAgent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = mockStopped
}

func (a *mockAgent) SubmitGuidance(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.guidance = text
	a.log.Debug("guidance received", zap.String("guidance", text))
}
