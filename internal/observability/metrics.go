package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// namespace prefixes every exported metric name.
const namespace = "mcp_standards"

type metricSet struct {
	registry *prometheus.Registry

	searchSeconds    prometheus.Histogram
	writeSeconds     prometheus.Histogram
	entries          prometheus.Gauge
	snapshotChanges  *prometheus.CounterVec
	embeddings       *prometheus.CounterVec
	embedSeconds     prometheus.Histogram
	embedCache       *prometheus.CounterVec
	toolCalls        *prometheus.CounterVec
	toolSeconds      *prometheus.HistogramVec
	toolErrors       *prometheus.CounterVec
	rpcRequests      *prometheus.CounterVec
	rpcSeconds       *prometheus.HistogramVec
	connectedClients *prometheus.GaugeVec
}

var (
	setOnce sync.Once
	set     *metricSet
)

func counter(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

// latencyBuckets span 0.5ms to roughly 30s.
var latencyBuckets = prometheus.ExponentialBuckets(0.0005, 4, 9)

func histogram(subsystem, name, help string) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: latencyBuckets,
	})
}

func histogramVec(subsystem, name, help string, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: latencyBuckets,
	}, labels)
}

// metrics returns the process metric set, registering it on first use.
func metrics() *metricSet {
	setOnce.Do(func() {
		s := &metricSet{registry: prometheus.NewRegistry()}

		s.searchSeconds = histogram("memory", "search_seconds", "Recall latency including query embedding.")
		s.writeSeconds = histogram("memory", "snapshot_write_seconds", "Time spent persisting the snapshot.")
		s.entries = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "memory", Name: "entries", Help: "Records currently held by the store.",
		})
		s.snapshotChanges = counter("memory", "snapshot_changes_total", "Snapshot file change events seen by the watcher.", "status")
		s.embeddings = counter("embedding", "requests_total", "Embedding requests by outcome.", "status")
		s.embedSeconds = histogram("embedding", "seconds", "Embedding latency.")
		s.embedCache = counter("embedding", "cache_lookups_total", "Embedding cache lookups.", "result")
		s.toolCalls = counter("tool", "calls_total", "Tool calls by tool and outcome.", "tool", "status")
		s.toolSeconds = histogramVec("tool", "seconds", "Tool latency.", "tool")
		s.toolErrors = counter("tool", "errors_total", "Failed tool calls by error type.", "tool", "error_type")
		s.rpcRequests = counter("rpc", "requests_total", "JSON-RPC requests handled.", "method", "transport", "status")
		s.rpcSeconds = histogramVec("rpc", "seconds", "JSON-RPC handling latency.", "method")
		s.connectedClients = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "rpc", Name: "connected_clients", Help: "Connected clients by transport.",
		}, []string{"transport"})

		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			s.searchSeconds, s.writeSeconds, s.entries, s.snapshotChanges,
			s.embeddings, s.embedSeconds, s.embedCache,
			s.toolCalls, s.toolSeconds, s.toolErrors,
			s.rpcRequests, s.rpcSeconds, s.connectedClients,
		)
		set = s
	})
	return set
}

// EnsureRegistered builds the metric set so a scrape before the first
// request still lists every series.
func EnsureRegistered() { metrics() }

// MetricsHandler serves the process registry in the Prometheus text format.
func MetricsHandler() http.Handler {
	s := metrics()
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

func RecordMemorySearch(d time.Duration) { metrics().searchSeconds.Observe(d.Seconds()) }

func RecordMemoryWrite(d time.Duration) { metrics().writeSeconds.Observe(d.Seconds()) }

func SetMemoryEntries(n int) { metrics().entries.Set(float64(n)) }

func RecordSnapshotChange(ok bool) {
	metrics().snapshotChanges.WithLabelValues(outcome(ok)).Inc()
}

func RecordEmbedding(d time.Duration, ok bool) {
	s := metrics()
	s.embeddings.WithLabelValues(outcome(ok)).Inc()
	s.embedSeconds.Observe(d.Seconds())
}

func RecordEmbeddingCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics().embedCache.WithLabelValues(result).Inc()
}

// RecordToolExecution counts a tool call. Failures without an error type
// are filed as "internal".
func RecordToolExecution(tool string, d time.Duration, ok bool, errorType string) {
	s := metrics()
	s.toolCalls.WithLabelValues(tool, outcome(ok)).Inc()
	s.toolSeconds.WithLabelValues(tool).Observe(d.Seconds())
	if ok {
		return
	}
	if errorType == "" {
		errorType = "internal"
	}
	s.toolErrors.WithLabelValues(tool, errorType).Inc()
}

func RecordRPCRequest(method, transport string, d time.Duration, ok bool) {
	s := metrics()
	s.rpcRequests.WithLabelValues(method, transport, outcome(ok)).Inc()
	s.rpcSeconds.WithLabelValues(method).Observe(d.Seconds())
}

func SetActiveConnections(transport string, n int) {
	metrics().connectedClients.WithLabelValues(transport).Set(float64(n))
}
