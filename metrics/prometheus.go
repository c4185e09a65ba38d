package metrics

import "github.com/prometheus/client_golang/prometheus"

// PrometheusCollector is the Prometheus-backed Collector, registered once
// per process against a prometheus.Registerer supplied by the caller.
// cmd/hub does not construct one; it wires NoopCollector.
type PrometheusCollector struct {
	merged  *prometheus.CounterVec
	pruned  *prometheus.CounterVec
	revoked *prometheus.CounterVec

	trieSize   prometheus.Gauge
	trieInsert prometheus.Counter
	trieDelete prometheus.Counter

	syncDuration prometheus.Histogram
	syncPulled   prometheus.Counter
	syncSuccess  prometheus.Counter
	syncFailure  prometheus.Counter
}

func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		merged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "store", Name: "messages_merged_total",
		}, []string{"resource"}),
		pruned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "store", Name: "messages_pruned_total",
		}, []string{"resource"}),
		revoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "store", Name: "messages_revoked_total",
		}, []string{"resource"}),
		trieSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hub", Subsystem: "trie", Name: "messages",
		}),
		trieInsert: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "trie", Name: "inserts_total",
		}),
		trieDelete: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "trie", Name: "deletes_total",
		}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hub", Subsystem: "sync", Name: "reconciliation_seconds",
		}),
		syncPulled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "sync", Name: "messages_pulled_total",
		}),
		syncSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "sync", Name: "completed_total",
		}),
		syncFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hub", Subsystem: "sync", Name: "abandoned_total",
		}),
	}
	reg.MustRegister(c.merged, c.pruned, c.revoked, c.trieSize, c.trieInsert,
		c.trieDelete, c.syncDuration, c.syncPulled, c.syncSuccess, c.syncFailure)
	return c
}

func (c *PrometheusCollector) MessageMerged(resource string)  { c.merged.WithLabelValues(resource).Inc() }
func (c *PrometheusCollector) MessagePruned(resource string)  { c.pruned.WithLabelValues(resource).Inc() }
func (c *PrometheusCollector) MessageRevoked(resource string) { c.revoked.WithLabelValues(resource).Inc() }

func (c *PrometheusCollector) TrieSize(n uint64) { c.trieSize.Set(float64(n)) }
func (c *PrometheusCollector) TrieInsert()       { c.trieInsert.Inc() }
func (c *PrometheusCollector) TrieDelete()       { c.trieDelete.Inc() }

func (c *PrometheusCollector) SyncCompleted(success bool, durationSeconds float64, messagesPulled int) {
	c.syncDuration.Observe(durationSeconds)
	c.syncPulled.Add(float64(messagesPulled))
	if success {
		c.syncSuccess.Inc()
	} else {
		c.syncFailure.Inc()
	}
}
