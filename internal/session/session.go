// Package session owns the single live gateway connection and everything
// scoped to it: the listener registry, the pending-request table, the id
// allocator and the admission window. Operations are issued against a
// Session and resolve exactly once; on connection loss the session cancels
// every pending operation and subscription in one locked sweep.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"tradegate/config"
	"tradegate/internal/correlate"
	"tradegate/internal/errs"
	"tradegate/internal/gateway"
	"tradegate/internal/metrics"
	"tradegate/internal/ratelimit"
	"tradegate/internal/registry"
	"tradegate/internal/symbols"
	"tradegate/logger"
)

// ConnState is the connection lifecycle of a Session.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateClosing
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

// transport is the slice of the gateway connection the session consumes.
// *gateway.Conn implements it; tests substitute a scripted fake.
type transport interface {
	Account() string
	Events() <-chan gateway.Event
	Send(kind string, id int64, params map[string]any) error
	Cancel(kind string, id int64) error
	Close() error
}

type dialFunc func(ctx context.Context, cfg gateway.Config, log *logger.Log) (transport, error)

// Session adapts the multiplexed gateway event stream into discrete
// synchronous operations. Exactly one connection is live at a time; registry
// and pending table never outlive the connection epoch that created them.
type Session struct {
	cfg     *config.Config
	baseLog *logger.Log
	log     *logger.Entry
	dial    dialFunc

	window    *ratelimit.Window
	ids       *ratelimit.Allocator
	validator *symbols.Validator

	// mu is the single mutual-exclusion domain shared with the registry
	// and the pending table: dispatch, resolution, bind and unbind are all
	// atomic with respect to each other.
	mu       sync.Mutex
	state    ConnState
	conn     transport
	reg      *registry.Registry
	table    *correlate.Table
	subs     map[int64]*Subscription
	epoch    string
	account  string
	loopDone chan struct{}
}

// New builds a disconnected session from configuration.
func New(cfg *config.Config, log *logger.Log) (*Session, error) {
	validator, err := symbols.NewValidator(cfg.Symbols)
	if err != nil {
		return nil, err
	}
	return &Session{
		cfg:       cfg,
		baseLog:   log,
		log:       log.WithComponent("session"),
		dial:      realDial,
		window:    ratelimit.NewWindow(cfg.RateLimit.MaxPerSecond),
		ids:       ratelimit.NewAllocator(),
		validator: validator,
		subs:      make(map[int64]*Subscription),
	}, nil
}

func realDial(ctx context.Context, cfg gateway.Config, log *logger.Log) (transport, error) {
	return gateway.Dial(ctx, cfg, log)
}

// Connect establishes the gateway session. It fails with a ConnectionError
// when a connect is already in flight, when already connected, or when the
// transport rejects. On success the allocator and admission window restart
// and the connection-scoped error and disconnect bindings are installed.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateConnecting:
		s.mu.Unlock()
		return errs.Connection("connect", fmt.Errorf("connect already in flight"))
	case StateConnected, StateClosing:
		s.mu.Unlock()
		return errs.Connection("connect", fmt.Errorf("session is %s", s.state))
	}
	s.state = StateConnecting
	s.mu.Unlock()

	conn, err := s.dial(ctx, gateway.Config{
		Host:        s.cfg.Gateway.Host,
		Port:        s.cfg.Gateway.Port,
		ClientID:    s.cfg.Gateway.ClientID,
		DialTimeout: s.cfg.Gateway.DialTimeout,
		KeepAlive:   s.cfg.Gateway.KeepAlive,
	}, s.baseLog)
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return errs.Connection("connect", err)
	}

	s.window.Reset()
	s.ids.Reset()

	s.mu.Lock()
	s.conn = conn
	s.reg = registry.New()
	s.table = correlate.NewTable(&s.mu, s.reg, s.log)
	s.table.OnCancel(func(kind string, id int64) {
		if err := conn.Cancel(kind, id); err != nil {
			s.log.WithError(err).WithFields(logger.Fields{"kind": kind, "id": id}).Debug("server-side cancel failed")
		}
	})
	s.table.OnResolve(metrics.IncResolved)
	s.table.OnLateEvent(metrics.IncLateEvent)

	s.reg.Bind(gateway.EvtError, registry.ScopeGlobal, s.handleGlobalError)
	s.reg.Bind(gateway.EvtDisconnect, registry.ScopeGlobal, s.handleDisconnectNotice)

	s.state = StateConnected
	s.account = conn.Account()
	s.epoch = uuid.NewString()
	s.loopDone = make(chan struct{})
	table := s.table
	done := s.loopDone
	s.mu.Unlock()

	go s.eventLoop(conn, table, done)

	s.log.WithFields(logger.Fields{
		"account": s.account,
		"epoch":   s.epoch,
	}).Info("session connected")
	return nil
}

// IsConnected reports whether the session currently holds a live connection.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected
}

// Disconnect tears the session down: every live subscription is cancelled,
// every pending operation resolves with ErrConnLost pre-empting its timeout,
// all bindings are removed and the transport closed. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	conn := s.conn
	done := s.loopDone
	s.teardownLocked()
	s.mu.Unlock()

	conn.Close()
	<-done

	s.mu.Lock()
	s.conn = nil
	s.state = StateDisconnected
	s.mu.Unlock()
	s.log.Info("session disconnected")
}

// connLost handles an unsolicited loss of connection: same cleanup as
// Disconnect, without caller initiation.
func (s *Session) connLost(reason string) {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	conn := s.conn
	s.teardownLocked()
	s.conn = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	conn.Close()
	s.log.WithFields(logger.Fields{"reason": reason}).Warn("gateway connection lost")
}

// teardownLocked cancels all pending operations and subscriptions in the
// current lock turn. Caller holds s.mu.
func (s *Session) teardownLocked() {
	s.table.FailAllLocked(errs.ErrConnLost)
	for id, sub := range s.subs {
		sub.closed = true
		delete(s.subs, id)
	}
	s.reg.Clear()
	metrics.SetPending(0)
	metrics.SetSubscriptions(0)
}

// eventLoop feeds the dispatch path. Events are consumed in transport order
// by a single goroutine, so per-id accumulator ingestion order equals the
// order the transport produced.
func (s *Session) eventLoop(conn transport, table *correlate.Table, done chan struct{}) {
	defer close(done)
	for ev := range conn.Events() {
		if ev.Type == gateway.EvtConnClosed {
			go s.connLost("transport closed")
			return
		}
		metrics.IncEvent(ev.Type)
		table.Dispatch(ev)
	}
}

// handleGlobalError is the connection-scoped error binding. Request-scoped
// error events are classified by their operation's own handler; this one
// logs connection-wide notices and escalates errors the gateway marks
// terminal. Runs inside the session lock; teardown is deferred to its own
// goroutine.
func (s *Session) handleGlobalError(ev gateway.Event) {
	if ev.ReqID != registry.ScopeGlobal {
		return
	}
	code := ev.Int("code")
	msg := ev.Str("message")
	entry := s.log.WithFields(logger.Fields{"code": code})
	switch {
	case ev.Data["fatal"] == true:
		entry.Error(msg)
		go s.connLost(fmt.Sprintf("fatal gateway error %d", code))
	case errs.IsWarning(code):
		entry.Info(msg)
	default:
		entry.Warn(msg)
	}
}

// handleDisconnectNotice is the connection-scoped disconnect binding.
func (s *Session) handleDisconnectNotice(ev gateway.Event) {
	go s.connLost("gateway disconnect notice")
}

// Status is a point-in-time view of the session for the dashboard.
type Status struct {
	State           string `json:"state"`
	Account         string `json:"account,omitempty"`
	Epoch           string `json:"epoch,omitempty"`
	Pending         int    `json:"pending"`
	Subscriptions   int    `json:"subscriptions"`
	WindowOccupancy int    `json:"windowOccupancy"`
	WindowCeiling   int    `json:"windowCeiling"`
}

// Status reports connection state, outstanding work and window usage.
func (s *Session) Status() Status {
	occupancy := s.window.Occupancy()

	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:           s.state.String(),
		Account:         s.account,
		Epoch:           s.epoch,
		Subscriptions:   len(s.subs),
		WindowOccupancy: occupancy,
		WindowCeiling:   s.window.Ceiling(),
	}
	if s.table != nil {
		st.Pending = s.table.LenLocked()
	}
	if s.state != StateConnected {
		st.Account = ""
	}
	return st
}

// issue runs one correlated operation end to end: admission, id allocation,
// bind, send, await.
func (s *Session) issue(ctx context.Context, spec correlate.Spec, params map[string]any) (correlate.Result, error) {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return correlate.Result{}, errs.Connection(spec.Kind, fmt.Errorf("not connected"))
	}
	conn, table := s.conn, s.table
	s.mu.Unlock()

	if err := s.window.Admit(); err != nil {
		metrics.IncRateLimited()
		return correlate.Result{}, err
	}
	return s.issueOn(ctx, conn, table, spec, s.ids.Next(), params)
}

// issueWithID is the order-lifecycle variant where the correlation id is the
// order id rather than a fresh allocation.
func (s *Session) issueWithID(ctx context.Context, spec correlate.Spec, id int64, params map[string]any) (correlate.Result, error) {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return correlate.Result{}, errs.Connection(spec.Kind, fmt.Errorf("not connected"))
	}
	conn, table := s.conn, s.table
	s.mu.Unlock()

	if err := s.window.Admit(); err != nil {
		metrics.IncRateLimited()
		return correlate.Result{}, err
	}
	return s.issueOn(ctx, conn, table, spec, id, params)
}

func (s *Session) issueOn(ctx context.Context, conn transport, table *correlate.Table, spec correlate.Spec, id int64, params map[string]any) (correlate.Result, error) {
	p, err := table.Issue(spec, id, func() error {
		return conn.Send(spec.Kind, id, params)
	})
	if err != nil {
		return correlate.Result{}, err
	}
	metrics.SetPending(table.Len())
	res, err := table.Await(ctx, p)
	metrics.SetPending(table.Len())
	return res, err
}
