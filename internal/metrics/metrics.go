// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector owns the engine's metric families. Create one per process and
// share it; all methods are safe for concurrent use.
type Collector struct {
	queriesTotal   *prometheus.CounterVec
	queryDuration  *prometheus.HistogramVec
	hopsPerQuery   prometheus.Histogram
	samplesDropped prometheus.Counter
	claimsChecked  *prometheus.CounterVec
	indexedChunks  *prometheus.GaugeVec
}

// NewCollector registers the engine metrics with the given registerer.
// Passing nil uses the default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hoplite",
			Name:      "queries_total",
			Help:      "Top-level queries processed, by tenant and outcome.",
		}, []string{"tenant", "status"}),
		queryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hoplite",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"tenant"}),
		hopsPerQuery: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hoplite",
			Name:      "hops_per_query",
			Help:      "Executed hops per query.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6},
		}),
		samplesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hoplite",
			Name:      "consensus_samples_dropped_total",
			Help:      "Reasoning-trace samples that failed and were excluded from consensus.",
		}),
		claimsChecked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hoplite",
			Name:      "verification_claims_total",
			Help:      "Claims checked during verification, by outcome.",
		}, []string{"outcome"}),
		indexedChunks: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hoplite",
			Name:      "indexed_chunks",
			Help:      "Live chunks per tenant.",
		}, []string{"tenant"}),
	}
}

// ObserveQuery records one completed top-level query.
func (c *Collector) ObserveQuery(tenant, status string, duration time.Duration, hops int) {
	c.queriesTotal.WithLabelValues(tenant, status).Inc()
	c.queryDuration.WithLabelValues(tenant).Observe(duration.Seconds())
	if hops > 0 {
		c.hopsPerQuery.Observe(float64(hops))
	}
}

// AddDroppedSamples records failed consensus samples.
func (c *Collector) AddDroppedSamples(n int) {
	if n > 0 {
		c.samplesDropped.Add(float64(n))
	}
}

// ObserveVerification records claim-check outcomes.
func (c *Collector) ObserveVerification(verified, unverified int) {
	if verified > 0 {
		c.claimsChecked.WithLabelValues("verified").Add(float64(verified))
	}
	if unverified > 0 {
		c.claimsChecked.WithLabelValues("unverified").Add(float64(unverified))
	}
}

// SetIndexedChunks updates the live chunk gauge for a tenant.
func (c *Collector) SetIndexedChunks(tenant string, count int) {
	c.indexedChunks.WithLabelValues(tenant).Set(float64(count))
}
