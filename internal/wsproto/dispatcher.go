package wsproto

import "context"

// Handler processes one Message and returns the response to send back,
// or (nil, nil) when the handler pushes its own reply out-of-band (e.g.
// via a Broadcaster) instead of answering the request directly.
type Handler interface {
	Handle(ctx context.Context, msg *Message) (*Message, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) (*Message, error)

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) (*Message, error) {
	return f(ctx, msg)
}

// Dispatcher routes an incoming Message to the Handler registered for
// its Action. Every action under the /extension namespace (spec §4.1)
// registers exactly one handler at startup; there is no deregistration
// path.
type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
	}
}

// RegisterFunc wires handler to action. Called once per action during
// server setup (see extension.Register).
func (d *Dispatcher) RegisterFunc(action string, handler HandlerFunc) {
	d.handlers[action] = handler
}

// Dispatch looks up msg.Action and invokes its handler, or returns an
// ErrorCodeUnknownAction response if nothing is registered for it.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) (*Message, error) {
	handler, ok := d.handlers[msg.Action]
	if !ok {
		return NewError(msg.ID, msg.Action, ErrorCodeUnknownAction,
			"Unknown action: "+msg.Action, nil)
	}
	return handler.Handle(ctx, msg)
}
