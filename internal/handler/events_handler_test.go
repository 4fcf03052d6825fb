package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/provider-admission-api/pkg/events"
)

func newEventsServer(t *testing.T, hub *events.Hub, origins []string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/events", NewEventsHandler(hub, origins, nil).Stream)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dialEvents(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *events.Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Subscribers() == n }, time.Second, 10*time.Millisecond)
}

func TestEventsHandlerStreamsEvents(t *testing.T) {
	hub := events.NewHub(8, nil)
	srv := newEventsServer(t, hub, nil)
	conn := dialEvents(t, srv, "")
	waitForSubscribers(t, hub, 1)

	hub.Publish(events.Event{
		Type:          events.TypeStatusChanged,
		ApplicationID: "app-1",
		From:          "submitted",
		To:            "approved",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt events.Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, events.TypeStatusChanged, evt.Type)
	assert.Equal(t, "app-1", evt.ApplicationID)
	assert.Equal(t, "approved", evt.To)
	assert.False(t, evt.OccurredAt.IsZero())
}

func TestEventsHandlerFiltersByType(t *testing.T) {
	hub := events.NewHub(8, nil)
	srv := newEventsServer(t, hub, nil)
	conn := dialEvents(t, srv, "?type="+events.TypeNotificationSent)
	waitForSubscribers(t, hub, 1)

	hub.Publish(events.Event{Type: events.TypeApplicationSubmitted, ApplicationID: "app-1"})
	hub.Publish(events.Event{Type: events.TypeNotificationSent, ApplicationID: "app-2"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt events.Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "app-2", evt.ApplicationID)
}

func TestEventsHandlerUnsubscribesOnDisconnect(t *testing.T) {
	hub := events.NewHub(8, nil)
	srv := newEventsServer(t, hub, nil)
	conn := dialEvents(t, srv, "")
	waitForSubscribers(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForSubscribers(t, hub, 0)
}

func TestEventsHandlerRejectsUnknownOrigin(t *testing.T) {
	hub := events.NewHub(8, nil)
	srv := newEventsServer(t, hub, []string{"https://admin.example.com"})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	header := map[string][]string{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
	assert.Equal(t, 0, hub.Subscribers())
}
