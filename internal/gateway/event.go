package gateway

import (
	"encoding/json"
	"math"
)

// Event type names produced by the gateway stream. Correlated events carry
// the id of the request or subscription they belong to; connection-scoped
// events carry id zero.
const (
	EvtSessionReady      = "sessionReady"
	EvtPosition          = "position"
	EvtPositionEnd       = "positionEnd"
	EvtOpenOrder         = "openOrder"
	EvtOpenOrderEnd      = "openOrderEnd"
	EvtExecution         = "execution"
	EvtExecutionEnd      = "executionEnd"
	EvtOrderStatus       = "orderStatus"
	EvtTick              = "tick"
	EvtTickEnd           = "tickSnapshotEnd"
	EvtAccountSummary    = "accountSummary"
	EvtAccountSummaryEnd = "accountSummaryEnd"
	EvtAccountUpdate     = "accountUpdate"
	EvtTicker            = "ticker"
	EvtError             = "error"
	EvtDisconnect        = "disconnect"

	// EvtConnClosed is synthesized locally when the transport read loop
	// ends; it never arrives on the wire.
	EvtConnClosed = "_connClosed"
)

// Request kinds accepted by Send.
const (
	ReqStartSession     = "startSession"
	ReqPositions        = "reqPositions"
	ReqOpenOrders       = "reqOpenOrders"
	ReqExecutions       = "reqExecutions"
	ReqMarketSnapshot   = "reqMarketSnapshot"
	ReqAccountSummary   = "reqAccountSummary"
	ReqPlaceOrder       = "placeOrder"
	ReqCancelOrder      = "cancelOrder"
	ReqSubscribeTicker  = "subscribeTicker"
	ReqSubscribeAccount = "subscribeAccount"

	CancelMarketData     = "cancelMarketSnapshot"
	CancelAccountSummary = "cancelAccountSummary"
	CancelTicker         = "unsubscribeTicker"
	CancelAccountUpdates = "unsubscribeAccount"
)

// unsetDouble is the out-of-band marker the gateway uses for "value not
// available" in numeric payload fields. It is converted to an absent value
// the moment a field is read; nothing downstream compares against it.
const unsetDouble = math.MaxFloat64

// Event is one decoded gateway message. ReqID is zero for connection-scoped
// events.
type Event struct {
	Type  string
	ReqID int64
	Data  map[string]any
}

// envelope is the wire form of both directions of the protocol.
type envelope struct {
	Type string         `json:"type"`
	ID   int64          `json:"id,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

func decodeEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, err
	}
	return Event{Type: env.Type, ReqID: env.ID, Data: env.Data}, nil
}

// Str returns a string field, or "" when missing.
func (e Event) Str(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// Int returns an integer field, or 0 when missing. JSON numbers decode as
// float64.
func (e Event) Int(key string) int {
	f, ok := e.Data[key].(float64)
	if !ok {
		return 0
	}
	return int(f)
}

// Float returns a numeric field converted to the explicit present/absent
// representation: nil when the field is missing, not numeric, not finite, or
// carries the unavailable sentinel.
func (e Event) Float(key string) *float64 {
	f, ok := e.Data[key].(float64)
	if !ok {
		return nil
	}
	if f == unsetDouble || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
