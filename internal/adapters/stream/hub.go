// Package stream keeps the recent history of frames and alerts in memory and
// pushes pipeline events to websocket clients.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/oscar1457/Industrial-Sentinel/internal/buffer"
	"github.com/oscar1457/Industrial-Sentinel/internal/domain"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before the connection is
	// considered dead. pingPeriod must stay below it.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Config struct {
	// History is the number of frames kept for /series.
	History int `yaml:"history"`
	// AlertHistory is the number of alerts kept for /alerts.
	AlertHistory int `yaml:"alert_history"`
	// BroadcastInterval is the status push period.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
	// FrameEvery forwards every Nth frame to clients. History keeps all of them.
	FrameEvery int `yaml:"frame_every"`
}

func (c *Config) ApplyDefaults() {
	if c.History <= 0 {
		c.History = 1024
	}
	if c.AlertHistory <= 0 {
		c.AlertHistory = 200
	}
	if c.BroadcastInterval <= 0 {
		c.BroadcastInterval = time.Second
	}
	if c.FrameEvery <= 0 {
		c.FrameEvery = 10
	}
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type faultPayload struct {
	Error string `json:"error"`
}

// StatusFunc reports the current runtime status.
type StatusFunc func() domain.RuntimeStatus

// Hub is a pipeline observer. Event delivery never blocks the calling stage:
// clients whose buffer is full are disconnected.
type Hub struct {
	cfg    Config
	log    *zap.Logger
	series *buffer.Series
	alerts *buffer.Ring[domain.AlertEvent]
	frames atomic.Uint64

	statusMu sync.RWMutex
	status   StatusFunc

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func New(cfg Config, log *zap.Logger) (*Hub, error) {
	cfg.ApplyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	series, err := buffer.NewSeries(cfg.History)
	if err != nil {
		return nil, err
	}
	alerts, err := buffer.NewRing[domain.AlertEvent](cfg.AlertHistory)
	if err != nil {
		return nil, err
	}
	return &Hub{
		cfg:     cfg,
		log:     log,
		series:  series,
		alerts:  alerts,
		clients: make(map[*client]struct{}),
	}, nil
}

// SetStatusFunc installs the status provider used for status broadcasts.
func (h *Hub) SetStatusFunc(fn StatusFunc) {
	h.statusMu.Lock()
	h.status = fn
	h.statusMu.Unlock()
}

func (h *Hub) OnFrame(f domain.Frame) {
	h.series.Add(f)
	if h.frames.Add(1)%uint64(h.cfg.FrameEvery) != 0 {
		return
	}
	h.broadcast(Message{Event: "frame", Data: f})
}

func (h *Hub) OnAlert(a domain.AlertEvent) {
	h.alerts.Write(a)
	h.broadcast(Message{Event: "alert", Data: a})
}

func (h *Hub) OnFault(err error) {
	if err == nil {
		return
	}
	h.broadcast(Message{Event: "fault", Data: faultPayload{Error: err.Error()}})
}

// Series returns the smoothed history, oldest first.
func (h *Hub) Series() buffer.SeriesSnapshot { return h.series.Snapshot() }

// RecentAlerts returns the retained alerts, newest first.
func (h *Hub) RecentAlerts() []domain.AlertEvent {
	snap := h.alerts.Snapshot()
	for i, j := 0, len(snap)-1; i < j; i, j = i+1, j-1 {
		snap[i], snap[j] = snap[j], snap[i]
	}
	return snap
}

// Run pushes a status message every BroadcastInterval until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.cfg.BroadcastInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			if msg, ok := h.statusMessage(); ok {
				h.broadcast(msg)
			}
		}
	}
}

// ServeHTTP upgrades the connection, sends the current status and then
// streams events until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	if msg, ok := h.statusMessage(); ok {
		if data, err := json.Marshal(msg); err == nil {
			h.mu.RLock()
			if _, live := h.clients[c]; live {
				select {
				case c.send <- data:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}

	go c.writePump()
	c.readPump()
}

// HandleSeries serves the smoothed history. ?last=N trims it to the newest N
// points.
func (h *Hub) HandleSeries(w http.ResponseWriter, r *http.Request) {
	snap := h.series.Snapshot()
	if v := r.URL.Query().Get("last"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid last parameter", http.StatusBadRequest)
			return
		}
		if n < snap.Len() {
			from := snap.Len() - n
			snap.RPM = snap.RPM[from:]
			snap.Temperature = snap.Temperature[from:]
			snap.Vibration = snap.Vibration[from:]
			snap.Ticks = snap.Ticks[from:]
		}
	}
	writeJSON(w, snap)
}

// HandleAlerts serves the retained alerts, newest first.
func (h *Hub) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.RecentAlerts())
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast sends under the read lock so that no channel is closed while a
// send is in flight; slow clients are dropped afterwards.
func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("stream_marshal_failed", zap.String("event", msg.Event), zap.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("stream_client_dropped", zap.String("reason", "send buffer full"))
		h.unregister(c)
	}
}

func (h *Hub) statusMessage() (Message, bool) {
	h.statusMu.RLock()
	fn := h.status
	h.statusMu.RUnlock()
	if fn == nil {
		return Message{}, false
	}
	return Message{Event: "status", Data: fn()}, true
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only processes control frames and detects disconnects.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
