package app

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ainoa/noc-console/internal/model"
	"github.com/ainoa/noc-console/internal/session"
)

// PayloadMsg carries a decoded payload from the stream to the UI loop.
type PayloadMsg struct {
	Payload model.Payload
}

// StatusMsg carries a session state change.
type StatusMsg struct {
	Status session.Status
}

// DropMsg reports a frame that failed to decode.
type DropMsg struct {
	Err error
}

// Bridge queues session callbacks for the Bubble Tea loop. Pushes never
// block so the session loop is never stalled by rendering; messages are
// delivered in push order.
type Bridge struct {
	mu     sync.Mutex
	queue  []tea.Msg
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewBridge creates an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Handlers returns session handlers that feed the bridge.
func (b *Bridge) Handlers() session.Handlers {
	return session.Handlers{
		OnPayload:      func(p model.Payload) { b.push(PayloadMsg{Payload: p}) },
		OnStatusChange: func(st session.Status) { b.push(StatusMsg{Status: st}) },
		OnDrop:         func(err error) { b.push(DropMsg{Err: err}) },
	}
}

func (b *Bridge) push(msg tea.Msg) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Wait returns a command that delivers the next queued message. The app
// re-issues it after every bridge message.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		for {
			b.mu.Lock()
			if len(b.queue) > 0 {
				msg := b.queue[0]
				b.queue[0] = nil
				b.queue = b.queue[1:]
				b.mu.Unlock()
				return msg
			}
			b.mu.Unlock()

			select {
			case <-b.notify:
			case <-b.done:
				return nil
			}
		}
	}
}

// Close releases any pending Wait.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}
