// Package metrics defines the Collector interface every component reports
// activity through, plus a NoopCollector and a Prometheus-backed Collector.
// Grounded on the teacher's module/metrics/noop.go: a small interface with a
// no-op implementation for tests, and a real implementation wired with
// github.com/prometheus/client_golang for production.
package metrics

// Collector receives counters and gauges from the per-type stores, the
// trie mirror and the sync engine. It is ambient plumbing, not part of the
// core's correctness surface — every call here must be cheap and must never
// return an error.
type Collector interface {
	// MessageMerged increments the merge counter for the named resource
	// (e.g. "signer", "cast").
	MessageMerged(resource string)
	MessagePruned(resource string)
	MessageRevoked(resource string)

	TrieSize(numMessages uint64)
	TrieInsert()
	TrieDelete()

	SyncCompleted(success bool, durationSeconds float64, messagesPulled int)
}
