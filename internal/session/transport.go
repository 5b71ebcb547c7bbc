package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout            = 10 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultPongTimeout      = 60 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

// Conn is one live transport handle. ReadMessage blocks until the next
// inbound frame or an error; Close may be called from any goroutine.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens transport handles.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock schedules future callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// WSDialer dials the broker with gorilla/websocket and keeps the
// connection alive with pings.
type WSDialer struct {
	Header           http.Header
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
}

// Dial opens a websocket to url.
func (d *WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	hs := d.HandshakeTimeout
	if hs <= 0 {
		hs = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: hs,
	}
	conn, _, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	ping := d.PingInterval
	if ping <= 0 {
		ping = defaultPingInterval
	}
	pong := d.PongTimeout
	if pong <= 0 {
		pong = defaultPongTimeout
	}
	return newWSConn(conn, ping, pong), nil
}

type wsConn struct {
	conn        *websocket.Conn
	pongTimeout time.Duration

	writeMu   sync.Mutex // serialises pings and the close frame
	stop      chan struct{}
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, pingInterval, pongTimeout time.Duration) *wsConn {
	c := &wsConn{
		conn:        conn,
		pongTimeout: pongTimeout,
		stop:        make(chan struct{}),
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	go c.pingLoop(pingInterval)
	return c
}

// ReadMessage returns the next text frame. Binary frames are skipped.
func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
		if mt != websocket.TextMessage {
			continue
		}
		return data, nil
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
