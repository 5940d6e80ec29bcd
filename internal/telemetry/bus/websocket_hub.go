package bus

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbusgw/mbus-core/internal/telemetry"
)

// WebSocketHubConfig configures the diagnostics broadcast server.
type WebSocketHubConfig struct {
	ListenAddr   string
	Path         string
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// DefaultWebSocketHubConfig mirrors the teacher's cloud.DefaultConfig
// timing defaults (30s ping interval, 10s write timeout).
func DefaultWebSocketHubConfig() WebSocketHubConfig {
	return WebSocketHubConfig{
		ListenAddr:   ":8090",
		Path:         "/diagnostics",
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketHub is a small broadcast server that pushes MeteringReport and
// UnifiedInstrumentation JSON to every connected diagnostics dashboard.
// Grounded on the teacher's cloud.Client connect/ping/write-loop
// structure (write deadline, ping interval, unexpected-close detection),
// turned around to serve outbound fan-out to many clients instead of one
// inbound connection to the cloud. The hub only accepts connections; it
// does not dial or reconnect.
type WebSocketHub struct {
	config   WebSocketHubConfig
	upgrader websocket.Upgrader
	server   *http.Server

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

// NewWebSocketHub constructs a hub that has not yet started listening.
func NewWebSocketHub(config WebSocketHubConfig) *WebSocketHub {
	return &WebSocketHub{
		config:  config,
		clients: make(map[*hubClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the upgrade endpoint as a standalone http.Handler, for
// callers that want to mount it on their own mux or test server rather
// than have the hub own a listener via Start.
func (h *WebSocketHub) Handler() http.HandlerFunc {
	return h.handleConn
}

// Start begins serving WebSocket upgrade requests on config.ListenAddr.
func (h *WebSocketHub) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc(h.config.Path, h.handleConn)
	h.server = &http.Server{Addr: h.config.ListenAddr, Handler: mux}

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("telemetry websocket hub: %v", err)
		}
	}()
	log.Printf("telemetry websocket hub listening on %s%s", h.config.ListenAddr, h.config.Path)
	return nil
}

// Stop closes the listener and drops all connected clients.
func (h *WebSocketHub) Stop() error {
	h.mu.Lock()
	for c := range h.clients {
		c.conn.Close()
	}
	h.mu.Unlock()
	if h.server == nil {
		return nil
	}
	return h.server.Close()
}

func (h *WebSocketHub) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("telemetry websocket hub: upgrade failed: %v", err)
		return
	}
	c := &hubClient{conn: conn, send: make(chan []byte, 16)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards inbound traffic but detects disconnects, matching
// the teacher's readLoop shape of "read until error, then tear down".
func (h *WebSocketHub) readPump(c *hubClient) {
	defer h.removeClient(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHub) writePump(c *hubClient) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHub) removeClient(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *WebSocketHub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Printf("telemetry websocket hub: slow client, dropping message")
		}
	}
}

// PublishMetering broadcasts report's JSON to every connected client.
func (h *WebSocketHub) PublishMetering(report telemetry.MeteringReport) error {
	data, err := report.JSON()
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}

// PublishInstrumentation broadcasts ui's JSON to every connected client.
func (h *WebSocketHub) PublishInstrumentation(ui telemetry.UnifiedInstrumentation) error {
	data, err := ui.JSON()
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}
