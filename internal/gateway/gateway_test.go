package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/kandev/kandev/internal/common/logger"
	"github.com/kandev/kandev/internal/logbus"
	ws "github.com/kandev/kandev/internal/wsproto"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "json", OutputPath: "stdout"})
	require.NoError(t, err)
	return log
}

// newTestServer wires a dispatcher + registry + handler the same way
// cmd/server/main.go does, over an httptest server, and returns a dialed
// client connection plus a cancel func to tear the registry down.
func newTestServer(t *testing.T) (*gorillaws.Conn, *Registry, func()) {
	t.Helper()
	log := testLogger(t)
	dispatcher := ws.NewDispatcher()
	registry := NewRegistry(dispatcher, log)
	RegisterHealthHandler(dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	go registry.Run(ctx)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(registry, log)
	router.GET("/extension", handler.HandleConnection)

	server := httptest.NewServer(router)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/extension"

	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	teardown := func() {
		conn.Close()
		cancel()
		server.Close()
	}
	return conn, registry, teardown
}

func TestGateway_HealthCheckRoundTrip(t *testing.T) {
	conn, _, teardown := newTestServer(t)
	defer teardown()

	req, err := ws.NewRequest("1", ws.ActionHealthCheck, nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp ws.Message
	require.NoError(t, conn.ReadJSON(&resp))

	require.Equal(t, ws.MessageTypeResponse, resp.Type)
	var payload map[string]string
	require.NoError(t, resp.ParsePayload(&payload))
	require.Equal(t, "ok", payload["status"])
}

func TestGateway_BroadcastFansOutToConnectedClient(t *testing.T) {
	conn, registry, teardown := newTestServer(t)
	defer teardown()

	require.Eventually(t, func() bool { return registry.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	msg, err := ws.NewNotification(ws.ActionStatus, map[string]bool{"is_running": true})
	require.NoError(t, err)
	registry.Broadcast(msg)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received ws.Message
	require.NoError(t, conn.ReadJSON(&received))
	require.Equal(t, ws.ActionStatus, received.Action)
}

func TestGateway_BroadcastLogEventImplementsSink(t *testing.T) {
	conn, registry, teardown := newTestServer(t)
	defer teardown()

	require.Eventually(t, func() bool { return registry.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	var sink logbus.Sink = registry
	sink.BroadcastLogEvent(logbus.LogEvent{
		Timestamp: time.Now(),
		Level:     logbus.LevelInfo,
		EventType: logbus.EventAgentStep,
		Message:   "step taken",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received ws.Message
	require.NoError(t, conn.ReadJSON(&received))
	require.Equal(t, ws.ActionLogEvent, received.Action)

	var event logbus.LogEvent
	require.NoError(t, json.Unmarshal(received.Payload, &event))
	require.Equal(t, "step taken", event.Message)
}

func TestGateway_ClientCountDropsOnDisconnect(t *testing.T) {
	conn, registry, teardown := newTestServer(t)
	defer teardown()

	require.Eventually(t, func() bool { return registry.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool { return registry.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}
