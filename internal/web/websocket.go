package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/funnyzak/reqput/internal/logger"
)

const (
	hubQueueSize = 64
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second

	// pings go out before a quiet client hits its read deadline
	pingInterval = readTimeout * 9 / 10
)

// WebsocketHub manages live connections for result broadcasts. Broadcast
// never blocks: payloads are queued and written by a single pump goroutine.
type WebsocketHub struct {
	logger  logger.Logger
	clients map[*websocket.Conn]struct{}
	mu      sync.RWMutex

	upgrader websocket.Upgrader
	queue    chan []byte
	quit     chan struct{}
	ping     time.Duration
	wg       sync.WaitGroup
	once     sync.Once
}

// NewWebsocketHub creates a new hub and starts its pump.
func NewWebsocketHub(log logger.Logger) *WebsocketHub {
	return newWebsocketHub(log, pingInterval)
}

func newWebsocketHub(log logger.Logger, ping time.Duration) *WebsocketHub {
	h := &WebsocketHub{
		logger:  log,
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		queue: make(chan []byte, hubQueueSize),
		quit:  make(chan struct{}),
		ping:  ping,
	}
	h.wg.Add(1)
	go h.pump()
	return h
}

// Upgrade upgrades the HTTP connection to WebSocket.
func (h *WebsocketHub) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	h.register(conn)
	return conn, nil
}

// ClientCount returns the number of connected clients
func (h *WebsocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WebsocketHub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go h.readLoop(conn)
}

func (h *WebsocketHub) readLoop(conn *websocket.Conn) {
	defer h.unregister(conn)

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebsocketHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()

	if ok {
		conn.Close()
	}
}

// Broadcast queues event for every active connection. Events are dropped
// when the queue is full.
func (h *WebsocketHub) Broadcast(event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal websocket payload", "error", err)
		return
	}

	select {
	case <-h.quit:
	case h.queue <- payload:
	default:
		h.logger.Warn("Websocket queue full, dropping event")
	}
}

func (h *WebsocketHub) pump() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.ping)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return
		case payload := <-h.queue:
			h.write(payload)
		case <-ticker.C:
			h.pingAll()
		}
	}
}

func (h *WebsocketHub) snapshot() []*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	return conns
}

func (h *WebsocketHub) write(payload []byte) {
	for _, conn := range h.snapshot() {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warn("Failed to write to websocket client", "error", err)
			h.unregister(conn)
		}
	}
}

// pingAll keeps idle clients alive; their pongs push the read deadline out.
func (h *WebsocketHub) pingAll() {
	for _, conn := range h.snapshot() {
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
			h.logger.Debug("Websocket ping failed", "error", err)
			h.unregister(conn)
		}
	}
}

// Close stops the pump and terminates all connections.
func (h *WebsocketHub) Close() {
	h.once.Do(func() {
		close(h.quit)
		h.wg.Wait()

		h.mu.Lock()
		conns := make([]*websocket.Conn, 0, len(h.clients))
		for conn := range h.clients {
			conns = append(conns, conn)
		}
		h.clients = make(map[*websocket.Conn]struct{})
		h.mu.Unlock()

		for _, conn := range conns {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		}
	})
}
