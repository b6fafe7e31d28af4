package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/flowmium-io/flowmium/internal/events"
	"github.com/flowmium-io/flowmium/internal/platform/logger"
)

func testWSServer(t *testing.T) (*httptest.Server, *events.Bus) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	require.NoError(t, err)

	bus := events.NewBus(log)
	h := NewSchedulerWSHandler(bus, log)

	r := gin.New()
	r.GET("/api/v1/scheduler/ws", h.Stream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, bus
}

func TestSchedulerWSRelaysPublishedEvents(t *testing.T) {
	srv, bus := testWSServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/scheduler/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the handler's Subscribe a moment to register before publishing.
	time.Sleep(20 * time.Millisecond)
	bus.Publish(events.FlowEvent{FlowID: 7, Status: "running", CurrentStage: 1})

	var got events.FlowEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, uint64(7), got.FlowID)
	require.Equal(t, "running", got.Status)
}

func TestSchedulerWSAcceptsAClientThatDisconnectsImmediately(t *testing.T) {
	srv, _ := testWSServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/scheduler/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}
