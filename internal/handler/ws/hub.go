package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"CryptoAssist/internal/domain/models"
	xlogger "CryptoAssist/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is the frame pushed to subscribers for every dispatched batch.
type Event struct {
	Type      string                 `json:"type"`
	Signals   []models.TradingSignal `json:"signals"`
	Overview  *models.MarketOverview `json:"overview,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans signal batches out to websocket subscribers. A subscriber whose
// buffer is full is disconnected rather than slowing the broadcast.
type Hub struct {
	log *xlogger.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(log *xlogger.Logger) *Hub {
	if log == nil {
		log = xlogger.Nop()
	}
	return &Hub{
		log:     log.With(xlogger.String("component", "ws_hub")),
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/signals", h.Subscribe)
}

func (h *Hub) Name() string { return "websocket" }

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Subscribe(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", xlogger.Error(err))
		return nil
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("ws subscriber connected", xlogger.String("remote_ip", c.RealIP()), xlogger.Int("subscribers", n))

	go h.writePump(cl)
	h.readPump(cl)
	return nil
}

// readPump only drains control frames; it returns when the peer goes away.
func (h *Hub) readPump(cl *client) {
	defer h.remove(cl)

	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug("ws write failed", xlogger.Error(err))
				h.remove(cl)
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(cl)
				return
			}
		}
	}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	_, ok := h.clients[cl]
	delete(h.clients, cl)
	h.mu.Unlock()
	if ok {
		cl.close()
	}
}

// Send broadcasts a batch to every subscriber. It never blocks on a peer.
func (h *Hub) Send(_ context.Context, signals []models.TradingSignal, overview *models.MarketOverview) error {
	if signals == nil {
		signals = []models.TradingSignal{}
	}
	b, err := json.Marshal(Event{Type: "signals", Signals: signals, Overview: overview, Timestamp: time.Now()})
	if err != nil {
		return err
	}

	var slow []*client
	h.mu.Lock()
	for cl := range h.clients {
		select {
		case cl.send <- b:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.Unlock()

	for _, cl := range slow {
		h.log.Warn("ws subscriber too slow, disconnecting")
		h.remove(cl)
	}
	return nil
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, cl := range clients {
		cl.close()
	}
}
