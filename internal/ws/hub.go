package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"credit-auction/internal/events"
	"credit-auction/internal/models"
	"credit-auction/utils"
)

// Message is the generic frame sent over the price feed.
type Message struct {
	Type    string `json:"type"` // "snapshot" or "error"
	Payload any    `json:"payload"`
}

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks are the access-control gate's job upstream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans auction snapshots out to websocket subscribers. It implements
// events.Sink: every state change pushes a fresh snapshot to the auction's
// subscribers. Slow clients are dropped rather than blocking the hub.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*client]struct{} // auctionID -> clients
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*client]struct{})}
}

// Serve upgrades the request and subscribes the connection to one auction's
// feed, sending the given initial snapshot first.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, snap models.Snapshot) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	h.add(snap.AuctionID, c)

	c.send <- events.MustMarshal(Message{Type: "snapshot", Payload: snap})

	go h.writePump(snap.AuctionID, c)
	go h.readPump(snap.AuctionID, c)
	return nil
}

// StateChanged broadcasts the snapshot to the auction's subscribers.
func (h *Hub) StateChanged(_ context.Context, snap models.Snapshot) {
	h.broadcast(snap)
}

// Settled broadcasts the final snapshot to the auction's subscribers.
func (h *Hub) Settled(_ context.Context, snap models.Snapshot) {
	h.broadcast(snap)
}

func (h *Hub) broadcast(snap models.Snapshot) {
	frame := events.MustMarshal(Message{Type: "snapshot", Payload: snap})

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs[snap.AuctionID] {
		select {
		case c.send <- frame:
		default:
			// Buffer full: drop this frame for the slow client. The next
			// delivered snapshot supersedes it anyway.
		}
	}
}

func (h *Hub) add(auctionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[auctionID] == nil {
		h.subs[auctionID] = make(map[*client]struct{})
	}
	h.subs[auctionID][c] = struct{}{}
}

func (h *Hub) remove(auctionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.subs[auctionID]; ok {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
		}
		if len(clients) == 0 {
			delete(h.subs, auctionID)
		}
	}
}

func (h *Hub) writePump(auctionID string, c *client) {
	defer c.conn.Close()
	for frame := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			utils.Warn("price feed write failed", map[string]any{
				"auction_id": auctionID,
				"error":      err.Error(),
			})
			return
		}
	}
}

func (h *Hub) readPump(auctionID string, c *client) {
	defer h.remove(auctionID, c)
	for {
		// The feed is one-way; reads only detect disconnects.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
