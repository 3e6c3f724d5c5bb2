// Package models defines the typed results operations return to the tool
// layer. Numeric fields that the gateway marks unavailable are represented
// as nil pointers; the sentinel conversion happens at the gateway boundary
// and these types never carry magic values.
package models

// Position is one row of a portfolio snapshot.
type Position struct {
	Account    string  `json:"account"`
	Symbol     string  `json:"symbol"`
	SecType    string  `json:"secType"`
	Currency   string  `json:"currency,omitempty"`
	Expiry     string  `json:"expiry,omitempty"`
	Strike     float64 `json:"strike,omitempty"`
	Right      string  `json:"right,omitempty"`
	Underlying string  `json:"underlying,omitempty"`
	Quantity   float64 `json:"quantity"`
	AvgCost    float64 `json:"avgCost"`
}

// Option reports whether the position is an option leg.
func (p Position) Option() bool { return p.SecType == "OPT" }

// UnderlyingSymbol returns the grouping key for derived aggregates: the
// declared underlying when present, otherwise the symbol itself.
func (p Position) UnderlyingSymbol() string {
	if p.Underlying != "" {
		return p.Underlying
	}
	return p.Symbol
}

// Order is one row of an open-order snapshot.
type Order struct {
	OrderID  int64    `json:"orderId"`
	Account  string   `json:"account"`
	Symbol   string   `json:"symbol"`
	SecType  string   `json:"secType"`
	Action   string   `json:"action"`
	Type     string   `json:"type"`
	Quantity float64  `json:"quantity"`
	LmtPrice *float64 `json:"lmtPrice,omitempty"`
	Status   string   `json:"status"`
}

// Execution is one fill row.
type Execution struct {
	ExecID   string  `json:"execId"`
	OrderID  int64   `json:"orderId"`
	Account  string  `json:"account"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Time     string  `json:"time,omitempty"`
}

// OrderStatus is the raw first status acknowledgement for an order
// operation. The status string is returned for caller interpretation, not
// interpreted here.
type OrderStatus struct {
	OrderID      int64    `json:"orderId"`
	Status       string   `json:"status"`
	Filled       float64  `json:"filled"`
	Remaining    float64  `json:"remaining"`
	AvgFillPrice *float64 `json:"avgFillPrice,omitempty"`
}

// OrderTicket is the pre-validated argument structure for placing an order.
type OrderTicket struct {
	Symbol   string   `json:"symbol"`
	SecType  string   `json:"secType,omitempty"`
	Action   string   `json:"action"`
	Type     string   `json:"type"`
	Quantity float64  `json:"quantity"`
	LmtPrice *float64 `json:"lmtPrice,omitempty"`
}

// QuoteSnapshot is the result of a scalar-quote operation: required fields
// merged last-write-wins, absent fields nil.
type QuoteSnapshot struct {
	Symbol  string              `json:"symbol"`
	Fields  map[string]*float64 `json:"fields"`
	Partial bool                `json:"partial,omitempty"`
}

// Present returns the named field when populated.
func (q *QuoteSnapshot) Present(name string) (float64, bool) {
	v, ok := q.Fields[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// AccountSummary is the result of a keyed-summary operation, key→value pairs
// scoped to one request id.
type AccountSummary struct {
	Account string            `json:"account"`
	Values  map[string]string `json:"values"`
	Partial bool              `json:"partial,omitempty"`
}

// TickerSnapshot is the initial state returned when a streaming ticker
// subscription is established.
type TickerSnapshot struct {
	Symbol string              `json:"symbol"`
	Fields map[string]*float64 `json:"fields"`
}

// AccountSnapshot is the initial state returned when an account stream
// subscription is established.
type AccountSnapshot struct {
	Values map[string]string `json:"values"`
}

// GreekTotals is one quantity-weighted aggregate of per-instrument
// sensitivity values. Included counts instruments that contributed at least
// one field; Skipped counts instruments whose sub-request failed outright.
type GreekTotals struct {
	Delta    float64 `json:"delta"`
	Gamma    float64 `json:"gamma"`
	Vega     float64 `json:"vega"`
	Theta    float64 `json:"theta"`
	Included int     `json:"included"`
	Skipped  int     `json:"skipped"`
}

// GreeksReport is the result of a derived-metrics aggregation: either one
// portfolio-wide total, or per-underlying groups, or both.
type GreeksReport struct {
	Portfolio *GreekTotals            `json:"portfolio,omitempty"`
	Groups    map[string]*GreekTotals `json:"groups,omitempty"`
}
