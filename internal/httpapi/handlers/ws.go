package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/flowmium-io/flowmium/internal/events"
	"github.com/flowmium-io/flowmium/internal/platform/envutil"
	"github.com/flowmium-io/flowmium/internal/platform/logger"
)

var wsWriteTimeout = time.Duration(envutil.Int("SCHEDULER_WS_WRITE_TIMEOUT_SECONDS", 10)) * time.Second

type SchedulerWSHandler struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewSchedulerWSHandler(bus *events.Bus, log *logger.Logger) *SchedulerWSHandler {
	return &SchedulerWSHandler{
		bus: bus,
		// CheckOrigin is permissive: the façade carries no auth (spec.md
		// §9 non-goal) and this is a same-origin dashboard stream.
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:      log.With("handler", "SchedulerWSHandler"),
	}
}

// Stream upgrades the connection and relays every Event Bus delta as a
// JSON frame until the client disconnects (spec.md §6 "GET
// /api/v1/scheduler/ws"); disconnects are dropped silently (spec.md §5
// "Cancellation and timeouts").
func (h *SchedulerWSHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe()
	defer sub.Close()

	// Drain client-initiated frames (pings/closes) so the connection's
	// read deadline stays serviced; the client never sends data frames.
	// disconnected signals the write loop below once the read side sees
	// the client go away — sub.Events() is never closed, so ranging over
	// it directly would block forever past a disconnect.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-disconnected:
			return
		}
	}
}
