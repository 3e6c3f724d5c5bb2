// Package metrics registers the operational counters and gauges:
//
//	tradegate_events_dispatched_total
//	tradegate_operations_resolved_total
//	tradegate_rate_limited_total
//	tradegate_late_events_total
//	tradegate_pending_operations
//	tradegate_subscriptions
//
// plus the go_* and process_* system collectors. Everything is exposed on the
// dashboard's /metrics endpoint and resolution and rate-limit counters are
// mirrored to CloudWatch when enabled.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once               sync.Once
	eventsTotal        *prometheus.CounterVec
	resolvedTotal      *prometheus.CounterVec
	rateLimited        prometheus.Counter
	lateEvents         *prometheus.CounterVec
	pendingGauge       prometheus.Gauge
	subscriptionsGauge prometheus.Gauge
)

func Init() {
	once.Do(func() {
		eventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_events_dispatched_total",
				Help: "Number of gateway events dispatched, by event type",
			},
			[]string{"type"},
		)
		resolvedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_operations_resolved_total",
				Help: "Number of resolved operations, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		)
		rateLimited = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tradegate_rate_limited_total",
				Help: "Number of sends rejected by the admission window",
			},
		)
		lateEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_late_events_total",
				Help: "Number of correlated events dropped after their operation resolved",
			},
			[]string{"type"},
		)
		pendingGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradegate_pending_operations",
				Help: "Number of operations currently pending",
			},
		)
		subscriptionsGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradegate_subscriptions",
				Help: "Number of live streaming subscriptions",
			},
		)

		_ = prometheus.Register(eventsTotal)
		_ = prometheus.Register(resolvedTotal)
		_ = prometheus.Register(rateLimited)
		_ = prometheus.Register(lateEvents)
		_ = prometheus.Register(pendingGauge)
		_ = prometheus.Register(subscriptionsGauge)
		_ = prometheus.Register(collectors.NewGoCollector())
		_ = prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler exposes the registered metrics; mounted by the dashboard.
func Handler() http.Handler { return promhttp.Handler() }

// IncEvent counts one dispatched gateway event.
func IncEvent(eventType string) {
	if eventsTotal != nil {
		eventsTotal.WithLabelValues(eventType).Inc()
	}
}

// IncResolved counts one resolved operation and mirrors it to CloudWatch.
func IncResolved(kind, outcome string) {
	if resolvedTotal != nil {
		resolvedTotal.WithLabelValues(kind, outcome).Inc()
	}
	publishCounter("operations_resolved", map[string]string{"kind": kind, "outcome": outcome})
}

// IncRateLimited counts one admission rejection and mirrors it to CloudWatch.
func IncRateLimited() {
	if rateLimited != nil {
		rateLimited.Inc()
	}
	publishCounter("rate_limited", nil)
}

// IncLateEvent counts one correlated event dropped after resolution.
func IncLateEvent(eventType string) {
	if lateEvents != nil {
		lateEvents.WithLabelValues(eventType).Inc()
	}
}

// SetPending records the current pending-operation count.
func SetPending(n int) {
	if pendingGauge != nil {
		pendingGauge.Set(float64(n))
	}
}

// SetSubscriptions records the current live subscription count.
func SetSubscriptions(n int) {
	if subscriptionsGauge != nil {
		subscriptionsGauge.Set(float64(n))
	}
}
