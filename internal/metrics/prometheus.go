package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "pcs"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	compileDuration *prom.HistogramVec
	compileResults  *prom.CounterVec
	cacheLookups    *prom.CounterVec
	cacheStores     prom.Counter
	busyWorkers     prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a private registry.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	pr := &PrometheusRecorder{
		compileDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Duration of compile requests",
			Buckets:   prom.ExponentialBuckets(0.05, 2, 10),
		}, []string{"backend"}),
		compileResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "compile_results_total",
			Help:      "Compile requests by backend and outcome",
		}, []string{"backend", "outcome"}),
		cacheLookups: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "dependency_cache_lookups_total",
			Help:      "Dependency cache lookups by result",
		}, []string{"result"}),
		cacheStores: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "dependency_cache_stores_total",
			Help:      "Dependency snapshots written to the backing store",
		}),
		busyWorkers: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "busy_workers",
			Help:      "Incremental compiler workers currently handling a request",
		}),
	}

	reg.MustRegister(pr.compileDuration, pr.compileResults, pr.cacheLookups, pr.cacheStores, pr.busyWorkers)
	return pr
}

func (p *PrometheusRecorder) ObserveCompile(backend, outcome string, d time.Duration) {
	if p == nil {
		return
	}

	p.compileDuration.WithLabelValues(backend).Observe(d.Seconds())
	p.compileResults.WithLabelValues(backend, outcome).Inc()
}

func (p *PrometheusRecorder) IncCacheLookup(hit bool) {
	if p == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}

	p.cacheLookups.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncCacheStore() {
	if p == nil {
		return
	}

	p.cacheStores.Inc()
}

func (p *PrometheusRecorder) SetBusyWorkers(n int) {
	if p == nil {
		return
	}

	p.busyWorkers.Set(float64(n))
}
