package wsproto

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionIDFromContext(t *testing.T) {
	ctx := WithSessionID(context.Background(), "client-1")

	id, ok := SessionIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "client-1", id)
}

func TestSessionIDFromContext_AbsentReturnsFalse(t *testing.T) {
	_, ok := SessionIDFromContext(context.Background())
	assert.False(t, ok)
}

func TestResponderFromContext(t *testing.T) {
	var sent *Message
	responder := Responder(func(msg *Message) { sent = msg })
	ctx := WithResponder(context.Background(), responder)

	r, ok := ResponderFromContext(ctx)
	assert.True(t, ok)

	msg := &Message{Action: ActionStatus}
	r(msg)
	assert.Same(t, msg, sent)
}
