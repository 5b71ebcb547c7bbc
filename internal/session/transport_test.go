package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ainoa/noc-console/internal/model"
	"github.com/gorilla/websocket"
)

// startBroker serves /ws/ui and hands each server-side connection to the test.
func startBroker(t *testing.T) (*httptest.Server, string, chan *websocket.Conn) {
	t.Helper()
	connCh := make(chan *websocket.Conn, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/ui"
	return srv, wsURL, connCh
}

func acceptConn(t *testing.T, connCh chan *websocket.Conn) *websocket.Conn {
	t.Helper()
	select {
	case c := <-connCh:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side connection")
		return nil
	}
}

func TestWSDialerSkipsBinaryFrames(t *testing.T) {
	_, wsURL, connCh := startBroker(t)

	d := &WSDialer{PingInterval: time.Hour, PongTimeout: 5 * time.Second}
	conn, err := d.Dial(context.Background(), wsURL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	server := acceptConn(t, connCh)
	defer server.Close()

	server.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
	server.WriteMessage(websocket.TextMessage, []byte(`{"regions":[],"incidents":[]}`))

	data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(data) != `{"regions":[],"incidents":[]}` {
		t.Errorf("ReadMessage = %q", data)
	}
}

func TestWSDialerError(t *testing.T) {
	d := &WSDialer{HandshakeTimeout: time.Second}
	_, err := d.Dial(context.Background(), "ws://127.0.0.1:1/ws/ui")
	if err == nil {
		t.Fatal("expected dial error")
	}
	if !strings.Contains(err.Error(), "dial ws://127.0.0.1:1/ws/ui") {
		t.Errorf("error %q does not name the url", err)
	}
}

func TestSessionOverWebSocket(t *testing.T) {
	_, wsURL, connCh := startBroker(t)

	statuses := make(chan Status, 64)
	payloads := make(chan model.Payload, 8)
	clock := &fakeClock{}
	s := New(Options{
		URL:    wsURL,
		Dialer: &WSDialer{PingInterval: time.Hour, PongTimeout: 5 * time.Second},
		Clock:  clock,
	}, Handlers{
		OnPayload:      func(p model.Payload) { payloads <- p },
		OnStatusChange: func(st Status) { statuses <- st },
	})
	go s.Run(context.Background())
	defer s.Close()

	s.Connect()
	server := acceptConn(t, connCh)

	server.WriteMessage(websocket.TextMessage, []byte(`{"regions":[{"name":"West","kpis":{"packet_loss_pct":1.5,"latency_ms":39.8,"backhaul_util_pct":49.7,"throughput_mbps":534.2}}],"incidents":[]}`))
	select {
	case p := <-payloads:
		if len(p.Regions) != 1 || p.Regions[0].Name != "West" {
			t.Errorf("payload = %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
	}

	// Broker goes away: the session schedules a reconnect with the base delay.
	server.Close()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-statuses:
			if st.State != StateReconnecting {
				continue
			}
			if st.Delay != DefaultBaseDelay {
				t.Errorf("delay = %v, want %v", st.Delay, DefaultBaseDelay)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for reconnect to be scheduled")
		}
	}
}
