package bus

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbusgw/mbus-core/internal/telemetry"
)

func TestWebSocketHubBroadcastsToConnectedClient(t *testing.T) {
	hub := NewWebSocketHub(WebSocketHubConfig{
		Path:         "/diagnostics",
		WriteTimeout: time.Second,
		PingInterval: time.Hour,
	})
	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/diagnostics"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Give the server goroutine a moment to register the client.
	deadline := time.Now().Add(time.Second)
	for {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for client registration")
		}
		time.Sleep(time.Millisecond)
	}

	report := telemetry.MeteringReport{DeviceID: "d1"}
	if err := hub.PublishMetering(report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected broadcast message, got error: %v", err)
	}
	if !strings.Contains(string(data), `"device_id":"d1"`) {
		t.Fatalf("got %s", data)
	}
}

func TestWebSocketHubRemovesClientOnDisconnect(t *testing.T) {
	hub := NewWebSocketHub(WebSocketHubConfig{
		Path:         "/diagnostics",
		WriteTimeout: time.Second,
		PingInterval: time.Hour,
	})
	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/diagnostics"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for client removal")
		}
		time.Sleep(time.Millisecond)
	}
}
