package gateway

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tradegate/logger"
)

var upgrader = websocket.Upgrader{}

// startGateway runs a scripted gateway: it accepts the session handshake,
// replies sessionReady, then hands every subsequent envelope to handle.
func startGateway(t *testing.T, handle func(ws *websocket.Conn, env envelope)) Config {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/session", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		var start envelope
		if err := ws.ReadJSON(&start); err != nil {
			return
		}
		if start.Type != ReqStartSession {
			t.Errorf("first message type = %q, want %s", start.Type, ReqStartSession)
			return
		}
		if err := ws.WriteJSON(envelope{Type: EvtSessionReady, Data: map[string]any{"account": "DU1"}}); err != nil {
			return
		}

		for {
			var env envelope
			if err := ws.ReadJSON(&env); err != nil {
				return
			}
			if handle != nil {
				handle(ws, env)
			}
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return Config{Host: host, Port: port, ClientID: 7, DialTimeout: 2 * time.Second, KeepAlive: time.Minute}
}

func TestDialHandshake(t *testing.T) {
	cfg := startGateway(t, nil)

	c, err := Dial(context.Background(), cfg, logger.GetLogger())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if c.Account() != "DU1" {
		t.Errorf("account = %q, want DU1", c.Account())
	}
}

func TestSendReceivesCorrelatedEvents(t *testing.T) {
	cfg := startGateway(t, func(ws *websocket.Conn, env envelope) {
		if env.Type != ReqPositions {
			return
		}
		ws.WriteJSON(envelope{Type: EvtPosition, ID: env.ID, Data: map[string]any{"symbol": "AAPL"}})
		ws.WriteJSON(envelope{Type: EvtPositionEnd, ID: env.ID})
	})

	c, err := Dial(context.Background(), cfg, logger.GetLogger())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if err := c.Send(ReqPositions, 3, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	deadline := time.After(2 * time.Second)
	var got []Event
	for len(got) < 2 {
		select {
		case ev := <-c.Events():
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("timed out after %d events", len(got))
		}
	}
	if got[0].Type != EvtPosition || got[0].ReqID != 3 || got[0].Str("symbol") != "AAPL" {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].Type != EvtPositionEnd || got[1].ReqID != 3 {
		t.Errorf("second event = %+v", got[1])
	}
}

func TestServerDropSynthesizesConnClosed(t *testing.T) {
	cfg := startGateway(t, func(ws *websocket.Conn, env envelope) {
		if env.Type == "die" {
			ws.Close()
		}
	})

	c, err := Dial(context.Background(), cfg, logger.GetLogger())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if err := c.Send("die", 0, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case ev := <-c.Events():
		if ev.Type != EvtConnClosed {
			t.Fatalf("event = %q, want %s", ev.Type, EvtConnClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no synthesized close event")
	}
	if _, open := <-c.Events(); open {
		t.Fatal("events channel should be closed after the read loop ends")
	}
}

func TestLocalCloseSuppressesSyntheticEvent(t *testing.T) {
	cfg := startGateway(t, nil)

	c, err := Dial(context.Background(), cfg, logger.GetLogger())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, open := <-c.Events():
			if !open {
				return
			}
			if ev.Type == EvtConnClosed {
				t.Fatal("local close must not synthesize a close event")
			}
		case <-deadline:
			t.Fatal("events channel never closed")
		}
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	cfg := startGateway(t, nil)

	c, err := Dial(context.Background(), cfg, logger.GetLogger())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	c.Close()
	if err := c.Send(ReqPositions, 1, nil); err == nil {
		t.Fatal("expected error sending on a closed connection")
	}
}

func TestDialRejectedByGateway(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/session", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		var start envelope
		if err := ws.ReadJSON(&start); err != nil {
			return
		}
		ws.WriteJSON(envelope{Type: EvtError, Data: map[string]any{"code": 501.0, "message": "client id in use"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	host, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	cfg := Config{Host: host, Port: port, DialTimeout: 2 * time.Second}

	if _, err := Dial(context.Background(), cfg, logger.GetLogger()); err == nil {
		t.Fatal("expected handshake rejection")
	}
}

func TestDialUnreachable(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Port: 1, DialTimeout: 200 * time.Millisecond}
	if _, err := Dial(context.Background(), cfg, logger.GetLogger()); err == nil {
		t.Fatal("expected dial failure")
	}
}
