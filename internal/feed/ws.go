package feed

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// NewUpgrader accepts websocket handshakes from the listed origins. An
// empty list accepts any origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")] = true
	}
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
		},
	}
}

// ServeWS streams hub events to one websocket client until it disconnects
// or the request ends. A heartbeat is written whenever the line is idle for
// the heartbeat interval.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader, userID string, heartbeat time.Duration) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	defer conn.Close()

	events, unsubscribe := h.Subscribe()
	defer unsubscribe()

	if err := conn.WriteJSON(map[string]any{"type": "connected", "userId": userID}); err != nil {
		return fmt.Errorf("write websocket connected payload: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(1024)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return nil
		case <-done:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(ev); err != nil {
				return fmt.Errorf("write websocket event: %w", err)
			}
			ticker.Reset(heartbeat)
		case <-ticker.C:
			if err := conn.WriteJSON(map[string]any{"type": "heartbeat", "at": time.Now().UTC()}); err != nil {
				return fmt.Errorf("write websocket heartbeat: %w", err)
			}
		}
	}
}
