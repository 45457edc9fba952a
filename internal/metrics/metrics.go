package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "credit_ledger"

// Metrics groups the ledger's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	operations    *prometheus.CounterVec
	credited      *prometheus.CounterVec
	debited       prometheus.Counter
	conflicts     *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	purchases     *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by name and outcome kind.",
		}, []string{"operation", "outcome"}),
		credited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "credits_granted_total",
			Help:      "Credits added to accounts by transaction type.",
		}, []string{"type"}),
		debited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "credits_spent_total",
			Help:      "Credits removed from accounts by debits.",
		}),
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "conflict_retries_total",
			Help:      "Optimistic concurrency conflicts that triggered a retry.",
		}, []string{"operation"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by entry kind and result.",
		}, []string{"kind", "result"}),
		purchases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "purchase",
			Name:      "events_total",
			Help:      "Purchase confirmations by package and result.",
		}, []string{"package", "result"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "method", "status"}),
		httpDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

func (m *Metrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveCredit(txType string, amount int64) {
	if m == nil {
		return
	}
	m.credited.WithLabelValues(txType).Add(float64(amount))
}

func (m *Metrics) ObserveDebit(amount int64) {
	if m == nil {
		return
	}
	m.debited.Add(float64(amount))
}

func (m *Metrics) ObserveConflict(operation string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(operation).Inc()
}

// ObserveCache records a lookup of kind ("balance" or "transactions")
func (m *Metrics) ObserveCache(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObservePurchase(packageId, result string) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(packageId, result).Inc()
}

func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, statusLabel(status)).Inc()
	m.httpDurations.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
