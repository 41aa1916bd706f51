package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"RecoBoard/internal/service/metrics"
	xlogger "RecoBoard/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 90 * time.Second
	pingPeriod = 45 * time.Second
	sendBuffer = 8
)

type client struct {
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub pushes every fresh presentation payload to connected subscribers.
// New subscribers get the latest payload on connect.
type Hub struct {
	logger   *xlogger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	latest  []byte
}

func NewHub(logger *xlogger.Logger, allowedOrigins ...string) *Hub {
	metrics.Register()
	h := &Hub{
		logger:  logger.With("ws_hub"),
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/presentation", h.Serve)
}

// Broadcast queues payload for every subscriber. A subscriber whose buffer
// is full is disconnected rather than slowing the others down.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	h.latest = payload
	var slow []*client
	for c := range h.clients {
		select {
		case c.out <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	metrics.HubBroadcasts.Inc()
	for _, c := range slow {
		metrics.HubDropped.WithLabelValues("slow_client").Inc()
		h.logger.Warn("evicting slow websocket client", xlogger.String("remote", c.conn.RemoteAddr().String()))
		h.remove(c)
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.remove(c)
	}
}

// Serve upgrades the request and blocks until the subscriber goes away.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		metrics.HubDropped.WithLabelValues("upgrade").Inc()
		// the upgrader already wrote the error response
		return nil
	}

	cl := &client{conn: conn, out: make(chan []byte, sendBuffer), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	if h.latest != nil {
		cl.out <- h.latest
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.HubClients.Set(float64(n))
	h.logger.Debug("websocket client connected", xlogger.String("remote", conn.RemoteAddr().String()), xlogger.Int("clients", n))

	go h.writePump(cl)
	h.readPump(cl)
	h.remove(cl)
	return nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	if ok {
		metrics.HubClients.Set(float64(n))
		_ = c.conn.Close()
	}
}

// readPump only watches for close frames and pongs; subscribers send nothing.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case payload := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				metrics.HubDropped.WithLabelValues("write_error").Inc()
				h.remove(c)
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
