package session

import (
	"tradegate/internal/gateway"
	"tradegate/internal/models"
)

// Event-to-model converters. Numeric fields come through the gateway's
// sentinel conversion, so an unavailable value is already nil here.

func positionFromEvent(ev gateway.Event) models.Position {
	p := models.Position{
		Account:    ev.Str("account"),
		Symbol:     ev.Str("symbol"),
		SecType:    ev.Str("secType"),
		Currency:   ev.Str("currency"),
		Expiry:     ev.Str("expiry"),
		Right:      ev.Str("right"),
		Underlying: ev.Str("underlying"),
	}
	if v := ev.Float("strike"); v != nil {
		p.Strike = *v
	}
	if v := ev.Float("quantity"); v != nil {
		p.Quantity = *v
	}
	if v := ev.Float("avgCost"); v != nil {
		p.AvgCost = *v
	}
	return p
}

func orderFromEvent(ev gateway.Event) models.Order {
	o := models.Order{
		OrderID:  int64(ev.Int("orderId")),
		Account:  ev.Str("account"),
		Symbol:   ev.Str("symbol"),
		SecType:  ev.Str("secType"),
		Action:   ev.Str("action"),
		Type:     ev.Str("type"),
		Status:   ev.Str("status"),
		LmtPrice: ev.Float("lmtPrice"),
	}
	if v := ev.Float("quantity"); v != nil {
		o.Quantity = *v
	}
	return o
}

func executionFromEvent(ev gateway.Event) models.Execution {
	e := models.Execution{
		ExecID:  ev.Str("execId"),
		OrderID: int64(ev.Int("orderId")),
		Account: ev.Str("account"),
		Symbol:  ev.Str("symbol"),
		Side:    ev.Str("side"),
		Time:    ev.Str("time"),
	}
	if v := ev.Float("quantity"); v != nil {
		e.Quantity = *v
	}
	if v := ev.Float("price"); v != nil {
		e.Price = *v
	}
	return e
}

func statusFromEvent(ev gateway.Event) models.OrderStatus {
	st := models.OrderStatus{
		OrderID:      ev.ReqID,
		Status:       ev.Str("status"),
		AvgFillPrice: ev.Float("avgFillPrice"),
	}
	if v := ev.Float("filled"); v != nil {
		st.Filled = *v
	}
	if v := ev.Float("remaining"); v != nil {
		st.Remaining = *v
	}
	return st
}
