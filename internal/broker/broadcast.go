package broker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans the full UI state out to every connected client.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]bool
	store   *Store

	// sendMu orders broadcasts so clients never see an older state after a
	// newer one.
	sendMu sync.Mutex
}

func NewBroadcaster(store *Store) *Broadcaster {
	return &Broadcaster{
		clients: make(map[*client]bool),
		store:   store,
	}
}

// AddClient registers conn and queues the current state for it. Any
// mutation after the snapshot is taken reaches the client by broadcast.
func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	b.mu.Lock()
	defer b.mu.Unlock()
	if data, err := json.Marshal(b.store.Snapshot()); err != nil {
		log.Error().Err(err).Msg("marshal snapshot")
	} else {
		c.send <- data
	}
	b.clients[c] = true
	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// Broadcast sends the current state to all clients. Clients that cannot
// keep up are disconnected.
func (b *Broadcaster) Broadcast() {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	var slow []*client
	b.mu.RLock()
	data, err := json.Marshal(b.store.Snapshot())
	if err != nil {
		b.mu.RUnlock()
		log.Error().Err(err).Msg("broadcast marshal")
		return
	}
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("ws client too slow, disconnecting")
		b.RemoveClient(c)
	}
}

// Run pushes the full state every interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return
		case <-ticker.C:
			b.Broadcast()
		}
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		delete(b.clients, c)
		c.close()
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
