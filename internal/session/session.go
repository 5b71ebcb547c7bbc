// Package session keeps one logical live stream to the UI broker alive
// across an unreliable transport. All state transitions run on a single
// event-loop goroutine; reader goroutines and timers only post events to it.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ainoa/noc-console/internal/model"
	"github.com/rs/zerolog/log"
)

// ErrClosed is reported in the final status after Close.
var ErrClosed = errors.New("session closed")

// State is the lifecycle state of a Session.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Status describes a state change.
type Status struct {
	State   State
	Attempt int           // consecutive closes since the last successful open
	Delay   time.Duration // scheduled wait when State is StateReconnecting
	Err     error         // cause of the last close, if any
}

// Handlers is the subscription contract. Both callbacks run on the event
// loop goroutine; they must not block and must not call Close.
type Handlers struct {
	OnPayload      func(model.Payload)
	OnStatusChange func(Status)
	OnDrop         func(error) // optional; a frame failed to decode
}

// Options configures a Session.
type Options struct {
	URL       string
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Dialer    Dialer
	Clock     Clock
}

type eventKind int

const (
	evConnect eventKind = iota
	evOpened
	evDialFailed
	evMessage
	evClosed
)

type event struct {
	kind eventKind
	gen  uint64
	conn Conn
	data []byte
	err  error
}

// Session owns at most one live transport handle at a time.
type Session struct {
	url      string
	base     time.Duration
	max      time.Duration
	dialer   Dialer
	clock    Clock
	handlers Handlers

	events   chan event
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// Owned by the event loop.
	ctx        context.Context
	state      State
	attempt    int
	gen        uint64
	conn       Conn
	cancelConn context.CancelFunc
	timer      Timer
}

// New creates a Session. It does nothing until Run is started and Connect
// is called.
func New(opts Options, h Handlers) *Session {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = &WSDialer{}
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	return &Session{
		url:      opts.URL,
		base:     opts.BaseDelay,
		max:      opts.MaxDelay,
		dialer:   opts.Dialer,
		clock:    opts.Clock,
		handlers: h,
		events:   make(chan event, 64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		state:    StateClosed,
	}
}

// Run processes transport events until ctx is cancelled or Close is called.
// It must be called exactly once.
func (s *Session) Run(ctx context.Context) error {
	s.running.Store(true)
	defer close(s.done)

	s.ctx = ctx
	select {
	case <-s.stop:
		s.teardown()
		return nil
	default:
	}
	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return ctx.Err()
		case <-s.stop:
			s.teardown()
			return nil
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

// Connect requests a (re)connection. If a handle is connecting or open it
// is closed first, so at most one live handle exists afterwards.
func (s *Session) Connect() {
	s.post(event{kind: evConnect})
}

// Close tears the session down: the live handle is closed, the pending
// reconnect timer is stopped and no further reconnects are scheduled.
// Close waits for the event loop to finish, so it must not be called from
// a handler.
func (s *Session) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.running.Load() {
		<-s.done
	}
}

func (s *Session) post(ev event) bool {
	select {
	case <-s.stop:
		return false
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.stop:
		return false
	case <-s.done:
		return false
	}
}

func (s *Session) handle(ev event) {
	switch ev.kind {
	case evConnect:
		s.connect()
	case evOpened:
		s.opened(ev.gen, ev.conn)
	case evDialFailed:
		s.closed(ev.gen, ev.err)
	case evMessage:
		s.message(ev.gen, ev.data)
	case evClosed:
		s.closed(ev.gen, ev.err)
	}
}

func (s *Session) connect() {
	if s.state == StateConnecting || s.state == StateOpen {
		log.Debug().Str("state", s.state.String()).Msg("replacing active stream handle")
		s.releaseHandle()
	}

	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelConn = cancel
	s.setState(StateConnecting, nil)

	go func() {
		conn, err := s.dialer.Dial(ctx, s.url)
		if err != nil {
			s.post(event{kind: evDialFailed, gen: gen, err: err})
			return
		}
		if !s.post(event{kind: evOpened, gen: gen, conn: conn}) {
			conn.Close()
		}
	}()
}

func (s *Session) opened(gen uint64, conn Conn) {
	if gen != s.gen || s.state != StateConnecting {
		// Superseded by a newer Connect.
		conn.Close()
		return
	}
	s.conn = conn
	s.attempt = 0
	log.Info().Str("url", s.url).Msg("connected to ui broker")
	s.setState(StateOpen, nil)

	go func() {
		for {
			data, err := conn.ReadMessage()
			if err != nil {
				s.post(event{kind: evClosed, gen: gen, err: err})
				return
			}
			if !s.post(event{kind: evMessage, gen: gen, data: data}) {
				return
			}
		}
	}()
}

func (s *Session) message(gen uint64, data []byte) {
	if gen != s.gen || s.state != StateOpen {
		return
	}
	p, err := model.DecodePayload(data)
	if err != nil {
		log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping stream frame")
		if s.handlers.OnDrop != nil {
			s.handlers.OnDrop(err)
		}
		return
	}
	if s.handlers.OnPayload != nil {
		s.handlers.OnPayload(p)
	}
}

func (s *Session) closed(gen uint64, err error) {
	if gen != s.gen {
		// A handle we already replaced; its end is expected.
		return
	}
	if s.state != StateConnecting && s.state != StateOpen {
		return
	}
	s.releaseHandle()

	s.attempt++
	delay := ComputeDelay(s.attempt, s.base, s.max)
	s.timer = s.clock.AfterFunc(delay, func() {
		s.post(event{kind: evConnect})
	})

	log.Warn().Err(err).Int("attempt", s.attempt).Dur("delay", delay).Msg("disconnected from ui broker, reconnect scheduled")
	s.state = StateReconnecting
	s.notify(Status{State: StateReconnecting, Attempt: s.attempt, Delay: delay, Err: err})
}

// releaseHandle closes the live or pending handle without scheduling a
// reconnect.
func (s *Session) releaseHandle() {
	if s.cancelConn != nil {
		s.cancelConn()
		s.cancelConn = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Session) teardown() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.releaseHandle()
	s.gen++
	if s.state != StateClosed {
		s.setState(StateClosed, ErrClosed)
	}
}

func (s *Session) setState(st State, err error) {
	s.state = st
	s.notify(Status{State: st, Attempt: s.attempt, Err: err})
}

func (s *Session) notify(st Status) {
	if s.handlers.OnStatusChange != nil {
		s.handlers.OnStatusChange(st)
	}
}
