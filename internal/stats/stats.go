// Package stats is the thread-safe observability layer: connection and
// request counters, a latency histogram, a pattern-complexity histogram,
// and cache hit/miss snapshots, rendered for the STATS wire command as
// "key value" lines. Counters are mirrored into prometheus collectors,
// following the teacher's own metrics.go / cmd/zoekt-webserver/main.go use
// of promauto-registered vectors, so the same numbers could be exposed on
// an optional /metrics endpoint; the STATS wire format itself is read from
// plain Go fields guarded by a single mutex per the design's "single lock
// per Stats record" requirement, kept in a private (non-default) registry
// per Server instance so two servers can coexist in one process for tests.
package stats

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wsearchd/wsearchd/internal/matcher"
)

var latencyThresholds = []float64{1, 5, 10, 50, 100, 500, 1000}
var latencyBucketLabels = []string{"lt1", "lt5", "lt10", "lt50", "lt100", "lt500", "lt1000"}

// Registry is one Stats record.
type Registry struct {
	mu sync.Mutex

	reg *prometheus.Registry

	connTotal    int64
	activeConns  int64
	requestsByCmd    map[string]int64
	responsesByClass map[string]int64
	latencyHistogram map[string]int64 // bucket label -> count

	latencySum   float64
	latencyLast  float64
	latencyCount int64

	complexity map[string]int64 // "q_<k>" / "s_<k>" -> count

	promConns     prometheus.Counter
	promActive    prometheus.Gauge
	promRequests  *prometheus.CounterVec
	promResponses *prometheus.CounterVec
	promLatency   *prometheus.HistogramVec
}

// New constructs an empty Registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg:              reg,
		requestsByCmd:    make(map[string]int64),
		responsesByClass: make(map[string]int64),
		latencyHistogram: make(map[string]int64),
		complexity:       make(map[string]int64),
		promConns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wsearchd_connections_total",
			Help: "Total accepted connections.",
		}),
		promActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wsearchd_active_connections",
			Help: "Currently open connections.",
		}),
		promRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wsearchd_requests_total",
			Help: "Requests by command.",
		}, []string{"command"}),
		promResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wsearchd_responses_total",
			Help: "Responses by status class.",
		}, []string{"status"}),
		promLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wsearchd_request_latency_ms",
			Help:    "Request latency in milliseconds.",
			Buckets: latencyThresholds,
		}, []string{}),
	}
	reg.MustRegister(r.promConns, r.promActive, r.promRequests, r.promResponses, r.promLatency)
	return r
}

// Registerer exposes the underlying prometheus registry, e.g. for an
// optional /metrics HTTP handler.
func (r *Registry) Registerer() *prometheus.Registry { return r.reg }

// ConnectionOpened increments connections and active_connections.
func (r *Registry) ConnectionOpened() {
	r.mu.Lock()
	r.connTotal++
	r.activeConns++
	r.mu.Unlock()
	r.promConns.Inc()
	r.promActive.Inc()
}

// ConnectionClosed decrements active_connections.
func (r *Registry) ConnectionClosed() {
	r.mu.Lock()
	r.activeConns--
	r.mu.Unlock()
	r.promActive.Dec()
}

// ActiveConnections returns the current count, used by the backpressure
// check.
func (r *Registry) ActiveConnections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.activeConns)
}

// RequestReceived records one request of the given command kind.
func (r *Registry) RequestReceived(command string) {
	r.mu.Lock()
	r.requestsByCmd[command]++
	r.mu.Unlock()
	r.promRequests.WithLabelValues(command).Inc()
}

// ResponseSent records one response of the given status class ("200",
// "400", "404", "503").
func (r *Registry) ResponseSent(statusClass string) {
	r.mu.Lock()
	r.responsesByClass[statusClass]++
	r.mu.Unlock()
	r.promResponses.WithLabelValues(statusClass).Inc()
}

// ObserveLatency records a completed request's latency in milliseconds and
// its pattern complexity (question/star counts), per §4.6.
func (r *Registry) ObserveLatency(ms float64, questions, stars int) {
	r.mu.Lock()
	r.latencySum += ms
	r.latencyLast = ms
	r.latencyCount++
	r.latencyHistogram[latencyBucketLabel(ms)]++
	r.complexity[fmt.Sprintf("q_%d", questions)]++
	r.complexity[fmt.Sprintf("s_%d", stars)]++
	r.mu.Unlock()
	r.promLatency.WithLabelValues().Observe(ms)
}

// latencyBucketLabel returns which of the eight named buckets ms falls
// into: compared against thresholds in order, first "< b" wins, else
// ge1000.
func latencyBucketLabel(ms float64) string {
	for i, threshold := range latencyThresholds {
		if ms < threshold {
			return latencyBucketLabels[i]
		}
	}
	return "ge1000"
}

// CacheInfo is a named cache's point-in-time hit/miss/size/rate snapshot.
type CacheInfo struct {
	Name string
	Info matcher.Info
}

// KV is one "key value" STATS line.
type KV struct {
	Key   string
	Value string
}

// Snapshot is the full STATS payload.
type Snapshot struct {
	Lines []KV
}

// Build renders a Snapshot's STATS lines in a stable order: counters,
// latency, complexity histogram, word count/pressure/resident bytes, then
// caches.
func (r *Registry) Build(wordCount int, pressure bool, residentBytes int64, hasResident bool, caches []CacheInfo) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lines []KV
	lines = append(lines, KV{"connections_total", fmt.Sprint(r.connTotal)})
	lines = append(lines, KV{"active_connections", fmt.Sprint(r.activeConns)})

	for _, k := range sortedKeys(r.requestsByCmd) {
		lines = append(lines, KV{"requests_" + k, fmt.Sprint(r.requestsByCmd[k])})
	}
	for _, k := range sortedKeys(r.responsesByClass) {
		lines = append(lines, KV{"responses_" + k, fmt.Sprint(r.responsesByClass[k])})
	}

	lines = append(lines, KV{"latency_sum_ms", fmt.Sprintf("%d", int64(r.latencySum))})
	lines = append(lines, KV{"latency_last_ms", fmt.Sprintf("%d", int64(r.latencyLast))})
	lines = append(lines, KV{"latency_count", fmt.Sprint(r.latencyCount)})
	for _, label := range latencyBucketLabels {
		lines = append(lines, KV{"latency_" + label, fmt.Sprint(r.latencyHistogram[label])})
	}
	lines = append(lines, KV{"latency_ge1000", fmt.Sprint(r.latencyHistogram["ge1000"])})

	for _, k := range sortedKeys(r.complexity) {
		lines = append(lines, KV{k, fmt.Sprint(r.complexity[k])})
	}

	lines = append(lines, KV{"word_count", fmt.Sprint(wordCount)})
	lines = append(lines, KV{"memory_pressure", fmt.Sprint(pressure)})
	if hasResident {
		lines = append(lines, KV{"resident_bytes", fmt.Sprint(residentBytes)})
	}

	for _, c := range caches {
		prefix := "cache_" + c.Name + "_"
		lines = append(lines, KV{prefix + "hits", fmt.Sprint(c.Info.Hits)})
		lines = append(lines, KV{prefix + "misses", fmt.Sprint(c.Info.Misses)})
		lines = append(lines, KV{prefix + "size", fmt.Sprint(c.Info.Size)})
		total := c.Info.Hits + c.Info.Misses
		rate := 0.0
		if total > 0 {
			rate = float64(c.Info.Hits) / float64(total)
		}
		lines = append(lines, KV{prefix + "hit_rate", fmt.Sprintf("%.4f", rate)})
	}

	return Snapshot{Lines: lines}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
