// Package llm provides the Conversation Manager's LLM boundary: a thin
// Client interface, a concrete github.com/anthropics/anthropic-sdk-go
// implementation, and a local fallback used whenever the provider is
// unavailable or fails (spec §4.5, §7 item 5).
package llm

import "context"

// Message is one turn sent to the provider.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// Client is the narrow contract the Conversation Manager needs from an LLM
// provider. Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends the full message history and returns the assistant's
	// reply text.
	Complete(ctx context.Context, messages []Message) (string, error)
}
