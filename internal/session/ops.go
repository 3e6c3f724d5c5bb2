package session

import (
	"context"
	"time"

	"tradegate/internal/correlate"
	"tradegate/internal/gateway"
	"tradegate/internal/models"
)

// DefaultQuoteFields are the required fields of a scalar-quote operation
// when the caller does not name its own set.
var DefaultQuoteFields = []string{"bid", "ask", "last"}

// GreekFields is the required field set for per-instrument sensitivity
// sub-requests issued by the derived-metrics aggregator.
var GreekFields = []string{"delta", "gamma", "vega", "theta"}

// DefaultSummaryTags are requested when an account summary caller passes no
// tag list.
var DefaultSummaryTags = []string{
	"NetLiquidation", "TotalCashValue", "BuyingPower",
	"GrossPositionValue", "MaintMarginReq", "AvailableFunds",
}

// Positions enumerates the account's portfolio. Snapshot-list family: rows
// accumulate in arrival order until the end marker; deadline expiry with
// rows already collected is a partial success.
func (s *Session) Positions(ctx context.Context) ([]models.Position, bool, error) {
	spec := correlate.Spec{
		Kind:         gateway.ReqPositions,
		Events:       []string{gateway.EvtPosition, gateway.EvtPositionEnd},
		Timeout:      s.cfg.Timeouts.Positions,
		AllowPartial: true,
		NewAccumulator: func() correlate.Accumulator {
			return correlate.NewRows(gateway.EvtPositionEnd, positionFromEvent)
		},
	}
	res, err := s.issue(ctx, spec, nil)
	if err != nil {
		return nil, false, err
	}
	rows, _ := res.Value.([]models.Position)
	return rows, res.Partial, nil
}

// OpenOrders enumerates working orders. Snapshot-list family.
func (s *Session) OpenOrders(ctx context.Context) ([]models.Order, bool, error) {
	spec := correlate.Spec{
		Kind:         gateway.ReqOpenOrders,
		Events:       []string{gateway.EvtOpenOrder, gateway.EvtOpenOrderEnd},
		Timeout:      s.cfg.Timeouts.OpenOrders,
		AllowPartial: true,
		NewAccumulator: func() correlate.Accumulator {
			return correlate.NewRows(gateway.EvtOpenOrderEnd, orderFromEvent)
		},
	}
	res, err := s.issue(ctx, spec, nil)
	if err != nil {
		return nil, false, err
	}
	rows, _ := res.Value.([]models.Order)
	return rows, res.Partial, nil
}

// Executions enumerates today's fills. Snapshot-list family.
func (s *Session) Executions(ctx context.Context) ([]models.Execution, bool, error) {
	spec := correlate.Spec{
		Kind:         gateway.ReqExecutions,
		Events:       []string{gateway.EvtExecution, gateway.EvtExecutionEnd},
		Timeout:      s.cfg.Timeouts.Executions,
		AllowPartial: true,
		NewAccumulator: func() correlate.Accumulator {
			return correlate.NewRows(gateway.EvtExecutionEnd, executionFromEvent)
		},
	}
	res, err := s.issue(ctx, spec, nil)
	if err != nil {
		return nil, false, err
	}
	rows, _ := res.Value.([]models.Execution)
	return rows, res.Partial, nil
}

// Quote takes a market snapshot for one symbol. Scalar-quote family:
// terminal once every required field has been answered, tolerating duplicate
// updates; expiry with some fields answered is a partial success with the
// missing fields explicitly absent. Resolution cancels the server-side
// snapshot stream.
func (s *Session) Quote(ctx context.Context, symbol string, fields []string) (*models.QuoteSnapshot, error) {
	sym, err := s.validator.Validate(symbol)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		fields = DefaultQuoteFields
	}
	spec := correlate.Spec{
		Kind:         gateway.ReqMarketSnapshot,
		Events:       []string{gateway.EvtTick, gateway.EvtTickEnd},
		Timeout:      s.cfg.Timeouts.Quote,
		AllowPartial: true,
		CancelKind:   gateway.CancelMarketData,
		NewAccumulator: func() correlate.Accumulator {
			return correlate.NewFields(fields, gateway.EvtTickEnd)
		},
	}
	res, err := s.issue(ctx, spec, map[string]any{"symbol": sym, "fields": fields})
	if err != nil {
		return nil, err
	}
	values, _ := res.Value.(map[string]*float64)
	return &models.QuoteSnapshot{Symbol: sym, Fields: values, Partial: res.Partial}, nil
}

// AccountSummary collects account tag values. Keyed-summary family: pairs
// merge scoped strictly to this request's id, and resolution issues an
// explicit server-side cancel so no summary stream leaks.
func (s *Session) AccountSummary(ctx context.Context, tags []string) (*models.AccountSummary, error) {
	if len(tags) == 0 {
		tags = DefaultSummaryTags
	}
	spec := correlate.Spec{
		Kind:         gateway.ReqAccountSummary,
		Events:       []string{gateway.EvtAccountSummary, gateway.EvtAccountSummaryEnd},
		Timeout:      s.cfg.Timeouts.AccountSummary,
		AllowPartial: true,
		CancelKind:   gateway.CancelAccountSummary,
		NewAccumulator: func() correlate.Accumulator {
			return correlate.NewKeyed(gateway.EvtAccountSummaryEnd)
		},
	}
	res, err := s.issue(ctx, spec, map[string]any{"tags": tags})
	if err != nil {
		return nil, err
	}
	kv, _ := res.Value.(correlate.KeyedValue)
	return &models.AccountSummary{Account: kv.Account, Values: kv.Values, Partial: res.Partial}, nil
}

// PlaceOrder submits an order and returns on the first status event for its
// id — acknowledgement, not fill completion. The raw status string is
// returned for caller interpretation.
func (s *Session) PlaceOrder(ctx context.Context, ticket models.OrderTicket) (*models.OrderStatus, error) {
	sym, err := s.validator.Validate(ticket.Symbol)
	if err != nil {
		return nil, err
	}
	params := map[string]any{
		"symbol":   sym,
		"secType":  ticket.SecType,
		"action":   ticket.Action,
		"type":     ticket.Type,
		"quantity": ticket.Quantity,
	}
	if ticket.LmtPrice != nil {
		params["lmtPrice"] = *ticket.LmtPrice
	}
	res, err := s.issue(ctx, orderSpec(gateway.ReqPlaceOrder, s.cfg.Timeouts.Order), params)
	if err != nil {
		return nil, err
	}
	st, _ := res.Value.(models.OrderStatus)
	return &st, nil
}

// CancelOrder asks the gateway to cancel an order. Order-lifecycle family
// correlated on the order's own id; an unknown id resolves ErrNotFound.
func (s *Session) CancelOrder(ctx context.Context, orderID int64) (*models.OrderStatus, error) {
	res, err := s.issueWithID(ctx, orderSpec(gateway.ReqCancelOrder, s.cfg.Timeouts.Order), orderID, nil)
	if err != nil {
		return nil, err
	}
	st, _ := res.Value.(models.OrderStatus)
	return &st, nil
}

// orderSpec declares the order-lifecycle family for both place and cancel.
func orderSpec(kind string, timeout time.Duration) correlate.Spec {
	return correlate.Spec{
		Kind:    kind,
		Events:  []string{gateway.EvtOrderStatus},
		Timeout: timeout,
		NewAccumulator: func() correlate.Accumulator {
			return correlate.NewFirst(gateway.EvtOrderStatus, statusFromEvent)
		},
	}
}
