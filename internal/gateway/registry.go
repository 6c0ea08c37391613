// Package gateway hosts the single WebSocket session registry for the
// /extension namespace: one flat set of connected clients, no per-task
// subscription fan-out, since this server has only one task slot at a
// time (spec §4.1, §4.2).
package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kandev/kandev/internal/common/logger"
	"github.com/kandev/kandev/internal/logbus"
	ws "github.com/kandev/kandev/internal/wsproto"
	"go.uber.org/zap"
)

// Registry manages all connected /extension WebSocket clients and
// implements logbus.Sink so the log bus can fan a LogEvent out to every
// connected client as a log_event notification.
type Registry struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *ws.Message

	dispatcher *ws.Dispatcher

	mu     sync.RWMutex
	logger *logger.Logger
}

// NewRegistry creates a Registry bound to the given action dispatcher.
func NewRegistry(dispatcher *ws.Dispatcher, log *logger.Logger) *Registry {
	return &Registry{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *ws.Message, 256),
		dispatcher: dispatcher,
		logger:     log.WithFields(zap.String("component", "gateway_registry")),
	}
}

// Run is the registry's main loop; it owns all mutations to the client
// set and must run in its own goroutine for the life of the process.
func (r *Registry) Run(ctx context.Context) {
	r.logger.Info("gateway registry started")
	defer r.logger.Info("gateway registry stopped")

	for {
		select {
		case <-ctx.Done():
			r.closeAllClients()
			return

		case client := <-r.register:
			r.mu.Lock()
			r.clients[client] = true
			r.mu.Unlock()
			r.logger.Debug("client registered", zap.String("client_id", client.ID))

		case client := <-r.unregister:
			r.removeClient(client)

		case msg := <-r.broadcast:
			r.broadcastMessage(msg)
		}
	}
}

func (r *Registry) closeAllClients() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for client := range r.clients {
		client.closeSend()
		delete(r.clients, client)
	}
}

func (r *Registry) removeClient(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[client]; ok {
		delete(r.clients, client)
		client.closeSend()
	}
	r.logger.Debug("client unregistered", zap.String("client_id", client.ID))
}

func (r *Registry) broadcastMessage(msg *ws.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("failed to marshal broadcast message", zap.Error(err))
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for client := range r.clients {
		if !client.sendBytes(data) {
			r.logger.Warn("disconnecting slow client", zap.String("client_id", client.ID))
			go r.Unregister(client)
		}
	}
}

// Register adds a client to the registry.
func (r *Registry) Register(client *Client) {
	r.register <- client
}

// Unregister removes a client from the registry.
func (r *Registry) Unregister(client *Client) {
	r.unregister <- client
}

// Broadcast sends a notification to every connected client (e.g. a
// task_result or status push that every extension instance should see).
func (r *Registry) Broadcast(msg *ws.Message) {
	r.broadcast <- msg
}

// BroadcastLogEvent implements logbus.Sink: every log bus event is
// wrapped as a log_event notification and fanned out to all clients.
func (r *Registry) BroadcastLogEvent(e logbus.LogEvent) {
	msg, err := ws.NewNotification(ws.ActionLogEvent, e)
	if err != nil {
		r.logger.Error("failed to build log_event notification", zap.Error(err))
		return
	}
	r.Broadcast(msg)
}

// ClientCount returns the number of connected clients.
func (r *Registry) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Dispatcher returns the registry's action dispatcher.
func (r *Registry) Dispatcher() *ws.Dispatcher {
	return r.dispatcher
}
