// Package toolapi is the thin inbound boundary: the tool layer hands in an
// operation kind with a pre-validated argument structure and receives one
// structured result or a classified failure. Schema validation, argument
// defaulting and result serialization live upstream, not here.
package toolapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tradegate/internal/errs"
	"tradegate/internal/greeks"
	"tradegate/internal/models"
	"tradegate/internal/session"
)

// API dispatches tool calls onto the session and aggregator.
type API struct {
	session *session.Session
	greeks  *greeks.Aggregator
}

func New(s *session.Session, g *greeks.Aggregator) *API {
	return &API{session: s, greeks: g}
}

type quoteArgs struct {
	Symbol string   `json:"symbol"`
	Fields []string `json:"fields,omitempty"`
}

type summaryArgs struct {
	Tags []string `json:"tags,omitempty"`
}

type cancelArgs struct {
	OrderID int64 `json:"orderId"`
}

type greeksArgs struct {
	GroupBy string `json:"groupBy,omitempty"`
}

type listResult[T any] struct {
	Rows    []T  `json:"rows"`
	Partial bool `json:"partial,omitempty"`
}

// Call runs one operation. Unknown operations and undecodable arguments are
// reported as errors; everything else is a classified outcome from the core.
func (a *API) Call(ctx context.Context, op string, args json.RawMessage) (any, error) {
	switch op {
	case "connect":
		return okResult(a.session.Connect(ctx))
	case "disconnect":
		a.session.Disconnect()
		return map[string]bool{"ok": true}, nil
	case "status":
		return a.session.Status(), nil
	case "positions":
		rows, partial, err := a.session.Positions(ctx)
		if err != nil {
			return nil, err
		}
		return listResult[models.Position]{Rows: rows, Partial: partial}, nil
	case "open_orders":
		rows, partial, err := a.session.OpenOrders(ctx)
		if err != nil {
			return nil, err
		}
		return listResult[models.Order]{Rows: rows, Partial: partial}, nil
	case "executions":
		rows, partial, err := a.session.Executions(ctx)
		if err != nil {
			return nil, err
		}
		return listResult[models.Execution]{Rows: rows, Partial: partial}, nil
	case "quote":
		var qa quoteArgs
		if err := decode(args, &qa); err != nil {
			return nil, err
		}
		return a.session.Quote(ctx, qa.Symbol, qa.Fields)
	case "account_summary":
		var sa summaryArgs
		if err := decode(args, &sa); err != nil {
			return nil, err
		}
		return a.session.AccountSummary(ctx, sa.Tags)
	case "place_order":
		var ticket models.OrderTicket
		if err := decode(args, &ticket); err != nil {
			return nil, err
		}
		return a.session.PlaceOrder(ctx, ticket)
	case "cancel_order":
		var ca cancelArgs
		if err := decode(args, &ca); err != nil {
			return nil, err
		}
		return a.session.CancelOrder(ctx, ca.OrderID)
	case "subscribe_ticker":
		var qa quoteArgs
		if err := decode(args, &qa); err != nil {
			return nil, err
		}
		sub, snap, err := a.session.SubscribeTicker(ctx, qa.Symbol)
		if err != nil {
			return nil, err
		}
		return map[string]any{"subscriptionId": sub.ID, "snapshot": snap}, nil
	case "subscribe_account":
		sub, snap, err := a.session.SubscribeAccount(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"subscriptionId": sub.ID, "snapshot": snap}, nil
	case "portfolio_greeks":
		var ga greeksArgs
		if err := decode(args, &ga); err != nil {
			return nil, err
		}
		groupBy := greeks.GroupPortfolio
		if ga.GroupBy == string(greeks.GroupUnderlying) {
			groupBy = greeks.GroupUnderlying
		}
		return a.greeks.Portfolio(ctx, groupBy)
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
}

// Failure is the classified error shape returned to the tool layer.
type Failure struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ClassifyError maps a core error onto the boundary taxonomy names.
func ClassifyError(err error) Failure {
	var connErr *errs.ConnectionError
	var gwErr *errs.GatewayError
	switch {
	case errors.Is(err, errs.ErrRateLimited):
		return Failure{Type: "RateLimitExceeded", Message: err.Error()}
	case errors.Is(err, errs.ErrTimeout):
		return Failure{Type: "TimeoutError", Message: err.Error()}
	case errors.Is(err, errs.ErrConnLost):
		return Failure{Type: "ConnectionLostError", Message: err.Error()}
	case errors.Is(err, errs.ErrNotFound):
		return Failure{Type: "NotFoundError", Message: err.Error()}
	case errors.As(err, &connErr):
		return Failure{Type: "ConnectionError", Message: err.Error()}
	case errors.As(err, &gwErr):
		return Failure{Type: "GatewayError", Message: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Failure{Type: "Cancelled", Message: err.Error()}
	default:
		return Failure{Type: "InternalError", Message: err.Error()}
	}
}

func decode(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func okResult(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}
