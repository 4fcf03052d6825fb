package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/provider-admission-api/pkg/events"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPongWait   = 60 * time.Second
	eventsPingPeriod = (eventsPongWait * 9) / 10
)

type eventSource interface {
	Subscribe(filter func(events.Event) bool) *events.Subscription
}

// EventsHandler streams application lifecycle events to admin dashboards over websocket.
type EventsHandler struct {
	hub      eventSource
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewEventsHandler constructs the handler. An empty allowedOrigins list accepts any origin.
func NewEventsHandler(hub eventSource, allowedOrigins []string, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin != "" && origin != "*" {
			origins[origin] = struct{}{}
		}
	}
	return &EventsHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				_, ok := origins[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// Stream godoc
// @Summary Stream application status events
// @Tags Admin
// @Param type query string false "Only forward events of this type"
// @Success 101 {string} string "Switching Protocols"
// @Router /admin/applications/events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var filter func(events.Event) bool
	if eventType := c.Query("type"); eventType != "" {
		filter = func(evt events.Event) bool { return evt.Type == eventType }
	}
	sub := h.hub.Subscribe(filter)
	defer sub.Close()

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	ticker := time.NewTicker(eventsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case evt, ok := <-sub.C:
			if !ok {
				h.writeClose(conn)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so control messages are processed, and signals when the peer goes away.
func (h *EventsHandler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventsHandler) writeClose(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(eventsWriteWait))
}
