package session

import (
	"context"
	"fmt"
	"time"

	"tradegate/internal/errs"
	"tradegate/internal/gateway"
	"tradegate/internal/metrics"
	"tradegate/internal/models"
	"tradegate/logger"
)

// Subscription is a long-lived streaming binding. Unlike a pending request
// it has no terminal predicate: its bindings persist until an explicit
// Unsubscribe or connection loss. State mutations happen under the session
// lock, from the same dispatch path as correlated events.
type Subscription struct {
	ID     int64
	Kind   string
	Symbol string

	events     []string
	cancelKind string
	closed     bool

	fields map[string]*float64
	values map[string]string
}

// SubscribeTicker starts a streaming market-data subscription for one
// symbol. It returns after the configured grace period with the snapshot
// accumulated so far; the subscription stays live until Unsubscribe.
func (s *Session) SubscribeTicker(ctx context.Context, symbol string) (*Subscription, *models.TickerSnapshot, error) {
	sym, err := s.validator.Validate(symbol)
	if err != nil {
		return nil, nil, err
	}

	sub := &Subscription{
		Kind:       "ticker",
		Symbol:     sym,
		events:     []string{gateway.EvtTicker},
		cancelKind: gateway.CancelTicker,
		fields:     make(map[string]*float64),
	}
	if err := s.startSubscription(ctx, sub, gateway.ReqSubscribeTicker, map[string]any{"symbol": sym}, func(ev gateway.Event) {
		if name := ev.Str("field"); name != "" {
			sub.fields[name] = ev.Float("value")
		}
	}); err != nil {
		return nil, nil, err
	}

	if err := s.awaitGrace(ctx, sub); err != nil {
		return nil, nil, err
	}

	snap := &models.TickerSnapshot{Symbol: sym, Fields: make(map[string]*float64)}
	s.mu.Lock()
	for k, v := range sub.fields {
		snap.Fields[k] = v
	}
	s.mu.Unlock()
	return sub, snap, nil
}

// SubscribeAccount starts the account value stream and returns the state
// accumulated over the grace period.
func (s *Session) SubscribeAccount(ctx context.Context) (*Subscription, *models.AccountSnapshot, error) {
	sub := &Subscription{
		Kind:       "account",
		events:     []string{gateway.EvtAccountUpdate},
		cancelKind: gateway.CancelAccountUpdates,
		values:     make(map[string]string),
	}
	if err := s.startSubscription(ctx, sub, gateway.ReqSubscribeAccount, nil, func(ev gateway.Event) {
		if tag := ev.Str("tag"); tag != "" {
			sub.values[tag] = ev.Str("value")
		}
	}); err != nil {
		return nil, nil, err
	}

	if err := s.awaitGrace(ctx, sub); err != nil {
		return nil, nil, err
	}

	snap := &models.AccountSnapshot{Values: make(map[string]string)}
	s.mu.Lock()
	for k, v := range sub.values {
		snap.Values[k] = v
	}
	s.mu.Unlock()
	return sub, snap, nil
}

// startSubscription admits the request, binds the stream handler and sends
// the subscribe message.
func (s *Session) startSubscription(ctx context.Context, sub *Subscription, kind string, params map[string]any, ingest func(gateway.Event)) error {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return errs.Connection(kind, fmt.Errorf("not connected"))
	}
	conn := s.conn
	s.mu.Unlock()

	if err := s.window.Admit(); err != nil {
		metrics.IncRateLimited()
		return err
	}
	id := s.ids.Next()

	s.mu.Lock()
	sub.ID = id
	for _, evType := range sub.events {
		s.reg.Bind(evType, id, func(ev gateway.Event) {
			if !sub.closed {
				ingest(ev)
			}
		})
	}
	s.subs[id] = sub
	subCount := len(s.subs)
	s.mu.Unlock()
	metrics.SetSubscriptions(subCount)

	if err := conn.Send(kind, id, params); err != nil {
		s.dropSubscription(sub)
		return errs.Connection("send "+kind, err)
	}
	return nil
}

// awaitGrace blocks for the fixed initial-snapshot period. A context
// cancellation unsubscribes; a connection loss during the grace period
// surfaces as ErrConnLost.
func (s *Session) awaitGrace(ctx context.Context, sub *Subscription) error {
	timer := time.NewTimer(s.cfg.Timeouts.SnapshotGrace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		s.Unsubscribe(sub)
		return ctx.Err()
	case <-timer.C:
	}

	s.mu.Lock()
	closed := sub.closed
	s.mu.Unlock()
	if closed {
		return errs.ErrConnLost
	}
	return nil
}

// Unsubscribe cancels a streaming subscription: bindings are removed
// immediately and the gateway is told to stop the stream. Idempotent.
func (s *Session) Unsubscribe(sub *Subscription) error {
	conn := s.dropSubscription(sub)
	if conn == nil {
		return nil
	}
	if err := conn.Cancel(sub.cancelKind, sub.ID); err != nil {
		s.log.WithError(err).WithFields(logger.Fields{
			"kind": sub.Kind,
			"id":   sub.ID,
		}).Debug("unsubscribe cancel failed")
	}
	return nil
}

// dropSubscription removes local subscription state and reports the
// transport to notify, nil when already closed or disconnected.
func (s *Session) dropSubscription(sub *Subscription) transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.closed {
		return nil
	}
	sub.closed = true
	s.reg.UnbindAll(sub.events, sub.ID)
	delete(s.subs, sub.ID)
	metrics.SetSubscriptions(len(s.subs))
	if s.state != StateConnected {
		return nil
	}
	return s.conn
}
