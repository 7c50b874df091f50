package feed

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPublishFansOut(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	a, unsubA := hub.Subscribe()
	b, unsubB := hub.Subscribe()
	defer unsubB()

	hub.Publish(Event{Type: TypePlansImported, Count: 3})
	assert.Equal(t, 3, (<-a).Count)
	assert.Equal(t, TypePlansImported, (<-b).Type)

	unsubA()
	unsubA()
	assert.Equal(t, 1, hub.Subscribers())
	_, open := <-a
	assert.False(t, open)
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ch, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(Event{Type: TypePlanCreated})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestNilHubPublishIsNoop(t *testing.T) {
	t.Parallel()

	var hub *Hub
	assert.NotPanics(t, func() { hub.Publish(Event{Type: TypePlanCreated}) })
}

func TestServeWSStreamsEvents(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	upgrader := NewUpgrader(nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, upgrader, "u-1", 50*time.Millisecond)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello map[string]any
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello["type"])

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(Event{Type: TypePlanCreated, EntityID: "p-1"})

	for {
		var msg map[string]any
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&msg))
		if msg["type"] == "heartbeat" {
			continue
		}
		assert.Equal(t, TypePlanCreated, msg["type"])
		assert.Equal(t, "p-1", msg["entityId"])
		break
	}
}

func TestUpgraderOriginCheck(t *testing.T) {
	t.Parallel()

	upgrader := NewUpgrader([]string{"https://tracker.example.org/"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.Header.Set("Origin", "https://tracker.example.org")
	assert.True(t, upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, upgrader.CheckOrigin(req))
}
