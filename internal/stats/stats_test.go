package stats

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wsearchd/wsearchd/internal/matcher"
)

func TestConnectionCounters(t *testing.T) {
	r := New()
	r.ConnectionOpened()
	r.ConnectionOpened()
	require.Equal(t, 2, r.ActiveConnections())

	r.ConnectionClosed()
	require.Equal(t, 1, r.ActiveConnections())
}

func TestRequestAndResponseCounters(t *testing.T) {
	r := New()
	r.RequestReceived("FIND")
	r.RequestReceived("FIND")
	r.RequestReceived("COUNT")
	r.ResponseSent("200")
	r.ResponseSent("400")

	snap := r.Build(0, false, 0, false, nil)
	values := toMap(snap)
	require.Equal(t, "2", values["requests_FIND"])
	require.Equal(t, "1", values["requests_COUNT"])
	require.Equal(t, "1", values["responses_200"])
	require.Equal(t, "1", values["responses_400"])
}

func TestLatencyBucketLabel(t *testing.T) {
	cases := []struct {
		ms   float64
		want string
	}{
		{0.5, "lt1"},
		{1, "lt5"},
		{4.9, "lt5"},
		{500, "lt1000"},
		{1000, "ge1000"},
		{5000, "ge1000"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, latencyBucketLabel(c.ms))
	}
}

func TestObserveLatencyAccumulates(t *testing.T) {
	r := New()
	r.ObserveLatency(2, 1, 0)
	r.ObserveLatency(8, 0, 2)

	snap := r.Build(0, false, 0, false, nil)
	values := toMap(snap)
	require.Equal(t, "10", values["latency_sum_ms"])
	require.Equal(t, "8", values["latency_last_ms"])
	require.Equal(t, "2", values["latency_count"])
	require.Equal(t, "1", values["q_1"])
	require.Equal(t, "1", values["s_2"])
}

func TestBuildIncludesWordCountAndPressure(t *testing.T) {
	r := New()
	snap := r.Build(42, true, 1024, true, nil)
	values := toMap(snap)
	require.Equal(t, "42", values["word_count"])
	require.Equal(t, "true", values["memory_pressure"])
	require.Equal(t, "1024", values["resident_bytes"])
}

func TestBuildOmitsResidentBytesWhenUnavailable(t *testing.T) {
	r := New()
	snap := r.Build(0, false, 0, false, nil)
	values := toMap(snap)
	_, ok := values["resident_bytes"]
	require.False(t, ok)
}

func TestBuildCacheInfoLines(t *testing.T) {
	r := New()
	caches := []CacheInfo{
		{Name: "pattern", Info: matcher.Info{Hits: 3, Misses: 1, Size: 4, Capacity: 10}},
	}
	snap := r.Build(0, false, 0, false, caches)
	values := toMap(snap)
	require.Equal(t, "3", values["cache_pattern_hits"])
	require.Equal(t, "1", values["cache_pattern_misses"])
	require.Equal(t, "4", values["cache_pattern_size"])
	require.Equal(t, "0.7500", values["cache_pattern_hit_rate"])
}

func toMap(snap Snapshot) map[string]string {
	m := make(map[string]string, len(snap.Lines))
	for _, kv := range snap.Lines {
		m[kv.Key] = kv.Value
	}
	return m
}
