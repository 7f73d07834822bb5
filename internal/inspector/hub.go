// Package inspector implements the inspector hub (C7): websocket upgrades
// for clients that want to watch a tenant's live request traffic, replay
// recent history, and optionally subscribe to a single endpoint. Adapted
// from the teacher's single-client hub into a multi-client, copy-on-iterate
// broadcaster (spec.md §4.7, §5).
package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/benscrane/relay-sub000/internal/logging"
	"github.com/benscrane/relay-sub000/internal/metrics"
	"github.com/benscrane/relay-sub000/internal/model"
	"github.com/benscrane/relay-sub000/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	sendBuffer   = 256
	historyLimit = 100
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
)

// inboundMessage is the discriminated-union shape of a client frame
// (spec.md §4.7).
type inboundMessage struct {
	Type       string `json:"type"`
	EndpointID string `json:"endpointId"`
}

// Hub fans out every new request log to the subscribed sockets of one
// tenant. Safe for concurrent use; the request-handling path calls
// Broadcast while clients independently register and unregister.
type Hub struct {
	tenant  string
	store   *store.Store
	log     *logging.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub builds a Hub backed by a tenant's store, used to answer
// getHistory requests. m may be nil, in which case client-count reporting
// is skipped.
func NewHub(tenant string, st *store.Store, logger *logging.Logger, m *metrics.Metrics) *Hub {
	return &Hub{tenant: tenant, store: st, log: logger, metrics: m, clients: make(map[*client]struct{})}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu             sync.Mutex
	subscribed     bool
	subscribeEndpt string // empty means "all of this tenant's traffic"
}

// ServeWS upgrades the HTTP connection and starts the client's read/write
// pumps, mirroring the teacher's register-then-spawn-two-goroutines shape.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.reportClientCount(n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.reportClientCount(n)
	}
}

func (h *Hub) reportClientCount(n int) {
	if h.metrics != nil {
		h.metrics.SetInspectorClients(h.tenant, n)
	}
}

// Broadcast sends a new request log to every subscribed socket whose
// filter matches, per spec.md §4.7. It copies the client set before
// iterating so registration/unregistration never races the fan-out, and a
// full send buffer drops that one client's frame rather than blocking the
// request-handling goroutine that called this.
func (h *Hub) Broadcast(endpointID string, l model.RequestLog) {
	msg, err := json.Marshal(struct {
		Type string           `json:"type"`
		Data model.RequestLog `json:"data"`
	}{Type: "request", Data: l})
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.matches(endpointID) {
			continue
		}
		// unregister closes c.send under the write lock; holding the read
		// lock and re-checking membership keeps this send off a closed
		// channel.
		h.mu.RLock()
		if _, ok := h.clients[c]; ok {
			select {
			case c.send <- msg:
			default:
				h.log.LogBroadcastFailure(context.Background(), endpointID, errSendBufferFull)
				if h.metrics != nil {
					h.metrics.RecordBroadcastFailure(h.tenant)
				}
			}
		}
		h.mu.RUnlock()
	}
}

func (c *client) matches(endpointID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.subscribed {
		return false
	}
	return c.subscribeEndpt == "" || c.subscribeEndpt == endpointID
}

func (c *client) subscribe(endpointID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = true
	c.subscribeEndpt = endpointID
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "ping":
			c.sendJSON(map[string]string{"type": "pong"})
		case "getHistory":
			logs, err := c.hub.store.ListLogs(context.Background(), msg.EndpointID, historyLimit)
			if err != nil {
				continue
			}
			c.sendJSON(struct {
				Type string            `json:"type"`
				Data []model.RequestLog `json:"data"`
			}{Type: "history", Data: logs})
		case "subscribe":
			c.subscribe(msg.EndpointID)
		}
	}
}

func (c *client) sendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var errSendBufferFull = errors.New("inspector client send buffer full")
