// Package greeks folds per-instrument sensitivity values into portfolio or
// per-underlying aggregates. One scalar-quote sub-request is issued per
// option position, in fixed-size batches so a large portfolio cannot blow
// through the session's admission window; each batch is awaited fully
// before the next is issued.
package greeks

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"tradegate/internal/models"
	"tradegate/internal/session"
	"tradegate/logger"
)

// GroupBy selects the fold shape.
type GroupBy string

const (
	// GroupPortfolio folds everything into one total.
	GroupPortfolio GroupBy = "portfolio"
	// GroupUnderlying folds per underlying instrument.
	GroupUnderlying GroupBy = "underlying"
)

// Client is the slice of the session the aggregator uses.
type Client interface {
	Positions(ctx context.Context) ([]models.Position, bool, error)
	Quote(ctx context.Context, symbol string, fields []string) (*models.QuoteSnapshot, error)
}

// Aggregator batches greek sub-requests against a session.
type Aggregator struct {
	client    Client
	batchSize int
	pace      *rate.Limiter
	log       *logger.Entry
}

// New builds an aggregator. maxPerSecond should match the session's rate
// ceiling; batches are paced against it so the admission window is the
// backstop, not the steady-state rejector.
func New(client Client, batchSize, maxPerSecond int, log *logger.Log) *Aggregator {
	if batchSize < 1 {
		batchSize = 1
	}
	if maxPerSecond < 1 {
		maxPerSecond = 1
	}
	return &Aggregator{
		client:    client,
		batchSize: batchSize,
		pace:      rate.NewLimiter(rate.Limit(maxPerSecond), batchSize),
		log:       log.WithComponent("greeks"),
	}
}

// Portfolio computes quantity-weighted greek sums across the account's
// option positions. A field the gateway marked unavailable contributes no
// term — not zero — and a failed sub-request skips its instrument without
// failing the batch.
func (a *Aggregator) Portfolio(ctx context.Context, groupBy GroupBy) (*models.GreeksReport, error) {
	positions, partial, err := a.client.Positions(ctx)
	if err != nil {
		return nil, err
	}
	if partial {
		a.log.WithFields(logger.Fields{"rows": len(positions)}).Warn("aggregating over a partial position snapshot")
	}

	options := make([]models.Position, 0, len(positions))
	for _, p := range positions {
		if p.Option() && p.Quantity != 0 {
			options = append(options, p)
		}
	}

	report := &models.GreeksReport{}
	if groupBy == GroupUnderlying {
		report.Groups = make(map[string]*models.GreekTotals)
	} else {
		report.Portfolio = &models.GreekTotals{}
	}
	if len(options) == 0 {
		return report, nil
	}

	for start := 0; start < len(options); start += a.batchSize {
		end := start + a.batchSize
		if end > len(options) {
			end = len(options)
		}
		batch := options[start:end]

		if err := a.pace.WaitN(ctx, len(batch)); err != nil {
			return nil, err
		}
		quotes := a.quoteBatch(ctx, batch)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i, p := range batch {
			a.fold(report, groupBy, p, quotes[i])
		}
	}
	return report, nil
}

// quoteBatch issues one sub-request per position and waits for the whole
// batch. A nil entry marks a failed sub-request.
func (a *Aggregator) quoteBatch(ctx context.Context, batch []models.Position) []*models.QuoteSnapshot {
	quotes := make([]*models.QuoteSnapshot, len(batch))
	var wg sync.WaitGroup
	for i, p := range batch {
		wg.Add(1)
		go func(i int, p models.Position) {
			defer wg.Done()
			q, err := a.client.Quote(ctx, p.Symbol, session.GreekFields)
			if err != nil {
				a.log.WithError(err).WithFields(logger.Fields{"symbol": p.Symbol}).Warn("greek sub-request failed; excluding instrument")
				return
			}
			quotes[i] = q
		}(i, p)
	}
	wg.Wait()
	return quotes
}

// fold adds one instrument's contribution to the report.
func (a *Aggregator) fold(report *models.GreeksReport, groupBy GroupBy, p models.Position, q *models.QuoteSnapshot) {
	totals := report.Portfolio
	if groupBy == GroupUnderlying {
		key := p.UnderlyingSymbol()
		if report.Groups[key] == nil {
			report.Groups[key] = &models.GreekTotals{}
		}
		totals = report.Groups[key]
	}

	if q == nil {
		totals.Skipped++
		return
	}

	contributed := false
	add := func(field string, dst *float64) {
		if v, ok := q.Present(field); ok {
			*dst += v * p.Quantity
			contributed = true
		}
	}
	add("delta", &totals.Delta)
	add("gamma", &totals.Gamma)
	add("vega", &totals.Vega)
	add("theta", &totals.Theta)

	if contributed {
		totals.Included++
	} else {
		totals.Skipped++
	}
}
