package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ainoa/noc-console/internal/model"
)

var errRefused = errors.New("connection refused")

// fakeConn is a transport handle fed by the test.
type fakeConn struct {
	frames    chan []byte
	dropped   chan error
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames:  make(chan []byte, 16),
		dropped: make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.frames:
		return data, nil
	case err := <-c.dropped:
		return nil, err
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// send delivers a frame to the session.
func (c *fakeConn) send(data string) { c.frames <- []byte(data) }

// drop simulates the remote end going away.
func (c *fakeConn) drop(err error) { c.dropped <- err }

// fakeDialer hands out fakeConns, or fails while failing is set.
type fakeDialer struct {
	mu      sync.Mutex
	failing bool
	conns   []*fakeConn
	dials   int
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failing {
		return nil, errRefused
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setFailing(v bool) {
	d.mu.Lock()
	d.failing = v
	d.mu.Unlock()
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) liveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.conns {
		if !c.isClosed() {
			n++
		}
	}
	return n
}

// fakeClock records scheduled callbacks; the test fires them explicitly.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	mu      *sync.Mutex
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{mu: &c.mu, delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, 0, len(c.timers))
	for _, t := range c.timers {
		out = append(out, t.delay)
	}
	return out
}

// fireLast runs the most recently scheduled callback.
func (c *fakeClock) fireLast(t *testing.T) {
	t.Helper()
	c.mu.Lock()
	if len(c.timers) == 0 {
		c.mu.Unlock()
		t.Fatal("no timer scheduled")
	}
	tm := c.timers[len(c.timers)-1]
	tm.fired = true
	c.mu.Unlock()
	tm.f()
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

// harness runs a Session against fakes and records its callbacks.
type harness struct {
	s        *Session
	dialer   *fakeDialer
	clock    *fakeClock
	statuses chan Status
	payloads chan model.Payload
	errc     chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		dialer:   &fakeDialer{},
		clock:    &fakeClock{},
		statuses: make(chan Status, 256),
		payloads: make(chan model.Payload, 64),
		errc:     make(chan error, 1),
	}
	h.s = New(Options{
		URL:       "ws://broker.test/ws/ui",
		BaseDelay: time.Second,
		MaxDelay:  5 * time.Second,
		Dialer:    h.dialer,
		Clock:     h.clock,
	}, Handlers{
		OnPayload:      func(p model.Payload) { h.payloads <- p },
		OnStatusChange: func(st Status) { h.statuses <- st },
	})
	go func() { h.errc <- h.s.Run(context.Background()) }()
	t.Cleanup(h.s.Close)
	return h
}

// waitState consumes status events until one with the wanted state arrives.
func (h *harness) waitState(t *testing.T, want State) Status {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-h.statuses:
			if st.State == want {
				return st
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
			return Status{}
		}
	}
}

func (h *harness) waitPayload(t *testing.T) model.Payload {
	t.Helper()
	select {
	case p := <-h.payloads:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
		return model.Payload{}
	}
}
