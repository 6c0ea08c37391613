// Package conversation implements the Conversation Manager: a per-session
// clarification dialog that calls an LLM to refine a vague request into a
// structured, ready-to-execute Intent (spec §4.5).
package conversation

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kandev/kandev/internal/common/logger"
	"github.com/kandev/kandev/internal/llm"
	"go.uber.org/zap"
)

// Role of a ConversationMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a clarification dialog (spec §3).
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Intent is the output of a clarification dialog (spec §3).
type Intent struct {
	TaskDescription string  `json:"task_description"`
	IsReady         bool    `json:"is_ready"`
	Confidence      float64 `json:"confidence"`
}

const greeting = "Hi! What would you like me to help you with?"

const systemPrompt = `You help refine a user's browser-automation request into a single, concrete, executable instruction.
Ask clarifying questions for vague requests. Once you have enough information, reply with a line "READY TO START" followed by a line "TASK: <the concrete instruction>".`

var markerRe = regexp.MustCompile(`(?is)ready to start.*?task:\s*(.+)`)

// dialog holds one session's conversation state. Owned exclusively by its
// session; never shared (spec §3 Ownership summary).
type dialog struct {
	mu       sync.Mutex
	messages []Message
	intent   *Intent
	// inFlight serializes LLM calls for this session: at most one call in
	// flight, subsequent chat_message calls queue in arrival order (spec
	// §5 Suspension points).
	inFlight sync.Mutex
}

// Manager owns one dialog per connected session.
type Manager struct {
	mu       sync.Mutex
	dialogs  map[string]*dialog
	client   llm.Client
	fallback llm.Client
	logger   *logger.Logger
}

// NewManager creates a Manager. client may be nil (e.g. no API key
// configured); fallback is always used as the last resort and should never
// itself fail.
func NewManager(client llm.Client, fallback llm.Client, log *logger.Logger) *Manager {
	return &Manager{
		dialogs:  make(map[string]*dialog),
		client:   client,
		fallback: fallback,
		logger:   log.WithFields(zap.String("component", "conversation")),
	}
}

func (m *Manager) dialogFor(sessionID string) *dialog {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dialogs[sessionID]
	if !ok {
		d = &dialog{}
		m.dialogs[sessionID] = d
	}
	return d
}

// Drop releases a session's dialog state (called on disconnect; spec
// §4.6: "disconnect(session) - cleanup the session's conversation").
func (m *Manager) Drop(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dialogs, sessionID)
}

// Reset clears the session's conversation and returns the greeting turn
// (spec §4.5 Reset, §8 invariant 5).
func (m *Manager) Reset(sessionID string) Message {
	d := m.dialogFor(sessionID)
	d.mu.Lock()
	defer d.mu.Unlock()

	greet := Message{Role: RoleAssistant, Content: greeting, Timestamp: time.Now()}
	d.messages = []Message{greet}
	d.intent = nil
	return greet
}

// LastMessage returns the dialog's last message, if any, used by the
// client (not the server) to decide whether the next chat_message should
// be routed as user_help_response instead (spec §4.5 Help-request
// routing: "The routing discriminator lives in the client").
func (m *Manager) LastMessage(sessionID string) (Message, bool) {
	d := m.dialogFor(sessionID)
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.messages) == 0 {
		return Message{}, false
	}
	return d.messages[len(d.messages)-1], true
}

// Chat appends the user's turn, calls the LLM (serialized per session),
// parses the reply for the ready-marker, and returns the assistant turn
// plus an optional Intent.
func (m *Manager) Chat(ctx context.Context, sessionID, userMessage string) (Message, *Intent) {
	d := m.dialogFor(sessionID)

	d.inFlight.Lock()
	defer d.inFlight.Unlock()

	d.mu.Lock()
	d.messages = append(d.messages, Message{Role: RoleUser, Content: userMessage, Timestamp: time.Now()})
	history := make([]Message, len(d.messages))
	copy(history, d.messages)
	d.mu.Unlock()

	reply, err := m.complete(ctx, history)
	if err != nil {
		m.logger.Error("conversation LLM call failed", zap.String("session_id", sessionID), zap.Error(err))
		apology := Message{
			Role:      RoleAssistant,
			Content:   "Sorry, I had trouble processing that. Could you rephrase?",
			Timestamp: time.Now(),
		}
		d.mu.Lock()
		d.messages = append(d.messages, apology)
		d.mu.Unlock()
		return apology, nil
	}

	assistant := Message{Role: RoleAssistant, Content: reply, Timestamp: time.Now()}
	intent := parseIntent(reply)

	d.mu.Lock()
	d.messages = append(d.messages, assistant)
	d.intent = intent
	d.mu.Unlock()

	return assistant, intent
}

// complete tries the primary client, falling back to the local clarifier
// on any error (spec §7 item 5: "locally recover only LLM failures").
func (m *Manager) complete(ctx context.Context, history []Message) (string, error) {
	llmMessages := make([]llm.Message, 0, len(history)+1)
	llmMessages = append(llmMessages, llm.Message{Role: "system", Content: systemPrompt})
	for _, h := range history {
		llmMessages = append(llmMessages, llm.Message{Role: string(h.Role), Content: h.Content})
	}

	if m.client != nil {
		reply, err := m.client.Complete(ctx, llmMessages)
		if err == nil {
			return reply, nil
		}
		m.logger.Warn("primary LLM client failed, falling back", zap.Error(err))
	}
	if m.fallback != nil {
		return m.fallback.Complete(ctx, llmMessages)
	}
	return "", context.DeadlineExceeded
}

// parseIntent applies the stable extraction rule from spec §4.5.
func parseIntent(reply string) *Intent {
	match := markerRe.FindStringSubmatch(reply)
	if match == nil {
		return &Intent{Confidence: 0.0}
	}
	task := strings.TrimSpace(firstLine(match[1]))
	if task == "" {
		return &Intent{Confidence: 0.0}
	}

	confidence := 0.9
	if strings.Contains(strings.ToLower(reply), "confidence:") {
		confidence = 1.0
	}

	return &Intent{
		TaskDescription: task,
		IsReady:         true,
		Confidence:      confidence,
	}
}

func firstLine(s string) string {
	if idx := strings.IndexAny(s, "\r\n"); idx >= 0 {
		return s[:idx]
	}
	return s
}
