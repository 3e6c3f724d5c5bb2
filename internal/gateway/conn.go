// Package gateway holds the outbound boundary to the trading gateway: one
// websocket session carrying a multiplexed, id-tagged event stream. The wire
// protocol beyond the {type, id, data} envelope is opaque to the rest of the
// repository.
package gateway

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradegate/logger"
)

const (
	defaultDialTimeout = 10 * time.Second
	defaultKeepAlive   = 20 * time.Second
	writeWait          = 5 * time.Second
	eventBuffer        = 256
)

// Config carries the transport inputs; all values come from the external
// config loader.
type Config struct {
	Host        string
	Port        int
	ClientID    int
	DialTimeout time.Duration
	KeepAlive   time.Duration
}

// Conn is one live gateway session. Events are delivered on a single channel
// in the exact order the transport produced them; the channel is closed when
// the read loop ends.
type Conn struct {
	ws      *websocket.Conn
	log     *logger.Entry
	events  chan Event
	account string

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial establishes the session and performs the start handshake. The first
// event the gateway sends must be sessionReady carrying the account the
// session is bound to.
func Dial(ctx context.Context, cfg Config, log *logger.Log) (*Conn, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}

	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Path: "/v1/session"}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	ws, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}

	c := &Conn{
		ws:     ws,
		log:    log.WithComponent("gateway"),
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}

	if err := c.writeEnvelope(envelope{Type: ReqStartSession, Data: map[string]any{"clientId": cfg.ClientID}}); err != nil {
		ws.Close()
		return nil, fmt.Errorf("start session: %w", err)
	}

	ready, err := c.awaitReady(dialTimeout)
	if err != nil {
		ws.Close()
		return nil, err
	}
	c.account = ready.Str("account")

	go c.readLoop()
	go c.pingLoop(keepAlive)

	c.log.WithFields(logger.Fields{
		"host":    cfg.Host,
		"port":    cfg.Port,
		"account": c.account,
	}).Info("gateway session established")
	return c, nil
}

func (c *Conn) awaitReady(timeout time.Duration) (Event, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := c.ws.SetReadDeadline(deadline); err != nil {
			return Event{}, fmt.Errorf("handshake deadline: %w", err)
		}
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return Event{}, fmt.Errorf("await sessionReady: %w", err)
		}
		ev, err := decodeEvent(raw)
		if err != nil {
			return Event{}, fmt.Errorf("decode handshake: %w", err)
		}
		switch ev.Type {
		case EvtSessionReady:
			if err := c.ws.SetReadDeadline(time.Time{}); err != nil {
				return Event{}, err
			}
			return ev, nil
		case EvtError:
			return Event{}, fmt.Errorf("gateway rejected session: %d %s", ev.Int("code"), ev.Str("message"))
		default:
			// Stray events before the handshake reply are dropped.
		}
	}
}

// Account returns the gateway-assigned account id from the handshake.
func (c *Conn) Account() string { return c.account }

// Events returns the inbound event stream. The channel is closed after the
// read loop ends; a final synthesized _connClosed event precedes the close
// unless Close was called locally.
func (c *Conn) Events() <-chan Event { return c.events }

// Send writes one correlated request. Id zero is only valid for
// connection-scoped kinds.
func (c *Conn) Send(kind string, id int64, params map[string]any) error {
	return c.writeEnvelope(envelope{Type: kind, ID: id, Data: params})
}

// Cancel asks the gateway to stop the server side of a request or
// subscription identified by id.
func (c *Conn) Cancel(kind string, id int64) error {
	return c.writeEnvelope(envelope{Type: kind, ID: id})
}

// Close tears the session down. Idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) writeEnvelope(env envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return fmt.Errorf("connection closed")
	default:
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(env)
}

func (c *Conn) readLoop() {
	defer close(c.events)
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				// Local Close; no synthetic event.
			default:
				c.log.WithError(err).Warn("gateway read loop ended")
				c.events <- Event{Type: EvtConnClosed}
			}
			return
		}
		ev, err := decodeEvent(raw)
		if err != nil {
			c.log.WithError(err).Warn("dropping undecodable gateway message")
			continue
		}
		c.events <- ev
	}
}

func (c *Conn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.log.WithError(err).Debug("gateway ping failed")
				return
			}
		}
	}
}
