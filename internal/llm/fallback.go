package llm

import (
	"context"
	"fmt"
	"strings"
)

// LocalClarifier is a rule-based stand-in for a real LLM, used when no
// provider credentials are configured (spec §6: "absence yields startup
// warnings, not failure, and disables the affected subsystems gracefully").
// It follows the same ready-marker protocol a real LLM is instructed to
// use, so the Conversation Manager's parser (internal/conversation) needs
// no special case for it.
type LocalClarifier struct{}

// NewLocalClarifier returns a LocalClarifier.
func NewLocalClarifier() *LocalClarifier { return &LocalClarifier{} }

// Complete asks one clarifying question on the first user turn, then
// treats the second user turn as sufficient and emits the ready marker
// with the concatenated user text as the task description.
func (c *LocalClarifier) Complete(ctx context.Context, messages []Message) (string, error) {
	userTurns := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Role == "user" {
			userTurns = append(userTurns, m.Content)
		}
	}

	if len(userTurns) == 0 {
		return "What would you like me to do?", nil
	}
	if len(userTurns) == 1 {
		return fmt.Sprintf("Got it: %q. Any details on budget, site, or constraints?", userTurns[0]), nil
	}

	task := strings.Join(userTurns, "; ")
	return fmt.Sprintf("Thanks, that's enough detail.\n\nREADY TO START\nTASK: %s", task), nil
}
